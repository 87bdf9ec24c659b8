package claims

import (
	"regexp"
	"strings"
)

// Metadata holds the bibliographic fields printed on a patent's front page,
// keyed by their INID codes (WIPO ST.9). Missing fields are empty.
//
// Front pages are laid out in columns and text extraction often misaligns them,
// so values are best effort.
type Metadata struct {
	Title             string `json:"title"`              // (54)
	Abstract          string `json:"abstract"`           // (57)
	PatentNumber      string `json:"patent_number"`      // (11)
	ApplicationNumber string `json:"application_number"` // (21)
	PriorityClaim     string `json:"priority_claim"`     // (30)
	IssueDate         string `json:"issue_date"`         // (45)
	Inventor          string `json:"inventor"`           // (72)
	Assignee          string `json:"assignee"`           // (71)
}

var (
	titleRe       = regexp.MustCompile(`\(54\)\s*(.*)`)
	abstractRe    = regexp.MustCompile(`\(57\)\s*(.*)`)
	patentNumRe   = regexp.MustCompile(`\(11\)\s*(.*)`)
	applicationRe = regexp.MustCompile(`\(21\)\s*(.*)`)
	priorityRe    = regexp.MustCompile(`\(30\)\s*(.*?)(?:\n\(|$)`)
	issueDateRe   = regexp.MustCompile(`\(45\)\s*(.*)`)
	inventorRe    = regexp.MustCompile(`\(72\)\s*(.*)`)
	assigneeRe    = regexp.MustCompile(`\(71\)\s*(.*)`)
)

// ParseINID extracts Metadata from the text of a patent's first page. Each field
// takes the rest of the line after its code; the priority claim only matches when
// it is followed by another "(NN)" line or the end of the text.
func ParseINID(firstPage string) Metadata {
	return Metadata{
		Title:             firstMatch(titleRe, firstPage),
		Abstract:          firstMatch(abstractRe, firstPage),
		PatentNumber:      firstMatch(patentNumRe, firstPage),
		ApplicationNumber: firstMatch(applicationRe, firstPage),
		PriorityClaim:     firstMatch(priorityRe, firstPage),
		IssueDate:         firstMatch(issueDateRe, firstPage),
		Inventor:          firstMatch(inventorRe, firstPage),
		Assignee:          firstMatch(assigneeRe, firstPage),
	}
}

func firstMatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
