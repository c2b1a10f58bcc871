// Package normalisers turns the PDF conversion step's output files into
// documents. Each subpackage handles a file format; the Registry picks one
// by extension.
//
// Build the registry once at startup with DefaultRegistry.
package normalisers
