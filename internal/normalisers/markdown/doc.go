// Package markdown loads papers that the PDF conversion step emitted as
// markdown, segmenting them into abstract, body, table and figure caption
// sections with page numbers.
package markdown
