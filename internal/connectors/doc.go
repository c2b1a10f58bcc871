// Package connectors holds the sources papers are read from before they are
// normalised. Only the local filesystem is supported: the filesystem
// subpackage scans and watches an inbox of converted papers.
package connectors
