// Package html provides a Normaliser for HTML renditions of papers.
// It strips tags, scripts and styles, pulls tables and figure captions into
// their own sections, and reads citation meta tags for bibliographic fields.
package html
