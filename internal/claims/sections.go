package claims

import (
	"regexp"
	"strings"
)

// Canonical section names returned by Sections.
const (
	SectionBackground          = "Background of the Invention"
	SectionSummary             = "Summary of the Invention"
	SectionBriefDescription    = "Brief Description of the Invention"
	SectionBriefFigures        = "Brief Description of the Figures"
	SectionDetailedDescription = "Detailed Description of the Invention"
)

// SectionNames lists the canonical section names in document order.
var SectionNames = []string{
	SectionBackground,
	SectionSummary,
	SectionBriefDescription,
	SectionBriefFigures,
	SectionDetailedDescription,
}

type sectionHeading struct {
	canonical string
	variants  []string
}

// Longer variants come first so "BACKGROUND OF THE INVENTION" is not cut short
// at "BACKGROUND".
var sectionHeadings = []sectionHeading{
	{SectionBackground, []string{"BACKGROUND OF THE INVENTION", "BACKGROUND"}},
	{SectionSummary, []string{"SUMMARY OF THE INVENTION", "SUMMARY"}},
	{SectionBriefDescription, []string{"BRIEF DESCRIPTION OF THE INVENTION"}},
	{SectionBriefFigures, []string{"BRIEF DESCRIPTION OF THE DRAWINGS", "BRIEF DESCRIPTION OF THE FIGURES"}},
	{SectionDetailedDescription, []string{"DETAILED DESCRIPTION OF THE INVENTION", "DETAILED DESCRIPTION"}},
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	headingRe    = buildHeadingRe()
	headingIndex = buildHeadingIndex()
)

func buildHeadingRe() *regexp.Regexp {
	var alts []string
	for _, h := range sectionHeadings {
		for _, v := range h.variants {
			alts = append(alts, regexp.QuoteMeta(v))
		}
	}
	return regexp.MustCompile(strings.Join(alts, "|"))
}

func buildHeadingIndex() map[string]string {
	idx := make(map[string]string)
	for _, h := range sectionHeadings {
		for _, v := range h.variants {
			idx[v] = h.canonical
		}
	}
	return idx
}

// Sections splits fullText on the upper-case section headings patents use and
// returns the body of each section found, keyed by its canonical name. Whitespace
// is collapsed first so headings broken across lines still match. Text before the
// first heading is dropped, and a repeated heading restarts its section.
func Sections(fullText string) map[string]string {
	text := whitespaceRe.ReplaceAllString(fullText, " ")

	bodies := make(map[string]*strings.Builder)
	var current string
	appendBody := func(part string) {
		part = strings.TrimSpace(part)
		if current == "" || part == "" {
			return
		}
		b := bodies[current]
		b.WriteString(part)
		b.WriteByte(' ')
	}

	pos := 0
	for _, m := range headingRe.FindAllStringIndex(text, -1) {
		appendBody(text[pos:m[0]])
		current = headingIndex[text[m[0]:m[1]]]
		bodies[current] = &strings.Builder{}
		pos = m[1]
	}
	appendBody(text[pos:])

	out := make(map[string]string, len(bodies))
	for name, b := range bodies {
		out[name] = strings.TrimSpace(b.String())
	}
	return out
}
