// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants list collections, search papers and ask questions
// answered from retrieved passages.
package mcp

import "errors"

var (
	// ErrMissingRetrievalService is returned when the retrieval service is not provided.
	ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

	// ErrMissingCollectionService is returned when the collection service is not provided.
	ErrMissingCollectionService = errors.New("mcp: collection service is required")
)
