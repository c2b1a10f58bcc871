package domain

import (
	"fmt"
	"strings"
)

// apaMaxListed is the largest author list APA prints in full.
const apaMaxListed = 20

// FormatAuthorsAPA joins author names the APA way: two authors with
// ", &", up to twenty with "&" before the last, and beyond that the first
// nineteen, an ellipsis and the last author.
func FormatAuthorsAPA(authors []string) string {
	switch n := len(authors); {
	case n == 0:
		return ""
	case n == 1:
		return authors[0]
	case n <= apaMaxListed:
		return strings.Join(authors[:n-1], ", ") + ", & " + authors[n-1]
	default:
		return strings.Join(authors[:apaMaxListed-1], ", ") + ", ... " + authors[n-1]
	}
}

// FormatAPA renders an APA reference for a paper.
func FormatAPA(doc *Document) string {
	var parts []string
	if len(doc.Authors) > 0 {
		parts = append(parts, FormatAuthorsAPA(doc.Authors))
	}
	if doc.Year > 0 {
		parts = append(parts, fmt.Sprintf("(%d)", doc.Year))
	}
	parts = append(parts, doc.Title)
	if doc.Venue != "" {
		parts = append(parts, doc.Venue)
	}
	return strings.Join(parts, ". ") + "."
}

// FormatBibTeX renders a BibTeX @article entry keyed by the paper's UniqueID.
func FormatBibTeX(doc *Document) string {
	lines := []string{
		fmt.Sprintf("@article{%s,", doc.UniqueID),
		fmt.Sprintf("  title = {%s},", doc.Title),
	}
	if len(doc.Authors) > 0 {
		lines = append(lines, fmt.Sprintf("  author = {%s},", strings.Join(doc.Authors, " and ")))
	}
	if doc.Year > 0 {
		lines = append(lines, fmt.Sprintf("  year = {%d},", doc.Year))
	}
	if doc.Venue != "" {
		lines = append(lines, fmt.Sprintf("  journal = {%s},", doc.Venue))
	}
	last := len(lines) - 1
	lines[last] = strings.TrimSuffix(lines[last], ",")
	lines = append(lines, "}")
	return strings.Join(lines, "\n")
}
