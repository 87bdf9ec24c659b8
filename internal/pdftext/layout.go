package pdftext

import (
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// rowTolerance is how far apart, in points, two glyph baselines may be and
	// still belong to the same line.
	rowTolerance = 3.0

	// wordSpaceRatio of the font size is the horizontal gap that reads as a space.
	wordSpaceRatio = 0.3

	defaultFontSize = 10.0
)

// pageLines rebuilds the lines of a page from its positioned glyphs. Glyphs are
// bucketed into rows by baseline, rows run top to bottom and glyphs left to
// right. Gaps wider than a word space become a single space.
func pageLines(texts []pdf.Text) string {
	rows := groupRows(filterGlyphs(texts))

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, rowText(row))
	}
	return strings.Join(lines, "\n")
}

func filterGlyphs(texts []pdf.Text) []pdf.Text {
	out := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S == "" || t.S == "\n" || t.S == "\r" {
			continue
		}
		out = append(out, t)
	}
	return out
}

type row struct {
	yMin, yMax float64
	glyphs     []pdf.Text
}

func groupRows(texts []pdf.Text) []row {
	var rows []row
	for _, t := range texts {
		found := false
		for i := range rows {
			if t.Y >= rows[i].yMin-rowTolerance && t.Y <= rows[i].yMax+rowTolerance {
				rows[i].glyphs = append(rows[i].glyphs, t)
				rows[i].yMin = min(rows[i].yMin, t.Y)
				rows[i].yMax = max(rows[i].yMax, t.Y)
				found = true
				break
			}
		}
		if !found {
			rows = append(rows, row{yMin: t.Y, yMax: t.Y, glyphs: []pdf.Text{t}})
		}
	}

	// PDF user space grows upwards
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].yMax > rows[j].yMax })
	return rows
}

func rowText(r row) string {
	glyphs := r.glyphs
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

	var b strings.Builder
	for i, g := range glyphs {
		if i > 0 {
			prev := glyphs[i-1]
			size := prev.FontSize
			if size <= 0 {
				size = defaultFontSize
			}
			gap := g.X - (prev.X + prev.W)
			if gap > wordSpaceRatio*size && !isBlank(prev.S) && !isBlank(g.S) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.S)
	}
	return strings.TrimRight(b.String(), " \t")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
