// Package claims locates and normalizes the claims block of a patent's text.
//
// Extract finds the last numbered list that starts at "1." and returns it to the
// end of the text. An empty result means no claims list was found; it is not an
// error. Split and Normalize break a claims block into one line per claim.
package claims

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	lineNumberRe = regexp.MustCompile(`(?m)^\s*\d+\s+`)
	listStartRe  = regexp.MustCompile(`\n\s*1\.\s+`)
	claimStartRe = regexp.MustCompile(`\n\d+\.`)
	leadingNumRe = regexp.MustCompile(`^(\d+)\.`)
)

// Claim is one numbered claim joined onto a single line.
type Claim struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// RemoveLineNumbers strips the leading digit run, and the whitespace around it,
// from every line. Patent layouts number their lines in the margin and the
// numbers end up inline in the extracted text.
func RemoveLineNumbers(text string) string {
	return lineNumberRe.ReplaceAllString(text, "")
}

// Extract returns the claims block of fullText: line numbers are removed, then
// everything from the last "\n 1. " occurrence to the end, trimmed. It returns
// "" when no such list exists.
func Extract(fullText string) string {
	text := RemoveLineNumbers(fullText)
	matches := listStartRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return ""
	}
	start := matches[len(matches)-1][0]
	return strings.TrimSpace(text[start:])
}

// Split breaks a claims block before every line that starts with "<digits>.".
// Each claim, with its sub-clauses, is joined onto one line and runs of
// whitespace collapse to single spaces. Empty chunks are skipped.
func Split(block string) []Claim {
	text := strings.TrimSpace(block)
	if text == "" {
		return nil
	}

	cuts := []int{0}
	for _, m := range claimStartRe.FindAllStringIndex(text, -1) {
		if m[0] > 0 {
			cuts = append(cuts, m[0])
		}
	}
	cuts = append(cuts, len(text))

	var out []Claim
	for i := 0; i+1 < len(cuts); i++ {
		joined := strings.Join(strings.Fields(text[cuts[i]:cuts[i+1]]), " ")
		if joined == "" {
			continue
		}
		c := Claim{Text: joined}
		if m := leadingNumRe.FindStringSubmatch(joined); m != nil {
			c.Number, _ = strconv.Atoi(m[1])
		}
		out = append(out, c)
	}
	return out
}

// Join renders claims one per line.
func Join(claims []Claim) string {
	lines := make([]string, len(claims))
	for i, c := range claims {
		lines[i] = c.Text
	}
	return strings.Join(lines, "\n")
}

// Normalize is Join(Split(block)).
func Normalize(block string) string {
	return Join(Split(block))
}
