package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for scholar resources.
	uriScheme = "scholar://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "collections",
		Name:        "collections",
		Description: "All paper collections",
		MIMEType:    "application/json",
	}, s.handleCollectionsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "collections/{collectionId}",
		Name:        "collection-status",
		Description: "Index status of one collection, including papers needing reindex",
		MIMEType:    "application/json",
	}, s.handleCollectionResource)
}

// collectionStatus is the resource body for one collection.
type collectionStatus struct {
	CollectionOutput
	IndexPresent bool     `json:"index_present"`
	NeedsReindex []string `json:"needs_reindex,omitempty"`
	StrayPapers  []string `json:"stray_papers,omitempty"`
}

// handleCollectionsResource returns a list of all collections.
func (s *Server) handleCollectionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	_, output, err := s.handleListCollections(ctx, nil, ListCollectionsInput{})
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return jsonResource(req.Params.URI, output.Collections)
}

// handleCollectionResource returns the status of one collection.
func (s *Server) handleCollectionResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractCollectionID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	c, err := s.ports.Collections.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting collection: %w", err)
	}

	return jsonResource(req.Params.URI, collectionStatus{
		CollectionOutput: CollectionOutput{
			ID:            c.ID,
			Name:          c.Name,
			Description:   c.Description,
			SearchType:    string(c.SearchType),
			PaperCount:    c.PaperCount,
			IndexedPapers: c.IndexedPapers,
			Consistent:    c.Consistent(),
		},
		IndexPresent: c.IndexPresent,
		NeedsReindex: c.NeedsReindex,
		StrayPapers:  c.StrayPapers,
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractCollectionID extracts the id from a URI like scholar://collections/{collectionId}.
func extractCollectionID(uri string) string {
	const prefix = uriScheme + "collections/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
