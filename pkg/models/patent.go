package models

import "time"

// PromptResult is the model's answer to one prompt of the catalog.
type PromptResult struct {
	Name     string        `json:"name"`     // Prompt name from the catalog
	Response string        `json:"response"` // Model output, or "Error: <err>" when every attempt failed
	Failed   bool          `json:"failed"`   // True when Response carries an error
	Attempts int           `json:"attempts"` // Completion requests made, including the successful one
	Duration time.Duration `json:"duration"` // Wall time across all attempts
}

type PatentAnalysis struct {
	// Source document
	FileName       string `json:"file_name"`       // Base name of the analysed PDF
	TotalPages     int    `json:"total_pages"`     // Page count of the PDF
	ExtractionPath string `json:"extraction_path"` // "embedded-text" or "ocr"
	ClaimCount     int    `json:"claim_count"`     // Number of claims found in the claims block

	// Dispatch
	Model     string         `json:"model"`
	Results   []PromptResult `json:"results"` // In catalog order
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// Responses maps prompt name to response text.
func (a *PatentAnalysis) Responses() map[string]string {
	out := make(map[string]string, len(a.Results))
	for _, r := range a.Results {
		out[r.Name] = r.Response
	}
	return out
}

// FailedCount returns how many prompts ended in an error response.
func (a *PatentAnalysis) FailedCount() int {
	n := 0
	for _, r := range a.Results {
		if r.Failed {
			n++
		}
	}
	return n
}
