package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

func TestExtractCollectionID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid collection URI",
			uri:      "scholar://collections/ml",
			expected: "ml",
		},
		{
			name:     "invalid prefix",
			uri:      "file://collections/ml",
			expected: "",
		},
		{
			name:     "nested path",
			uri:      "scholar://collections/ml/papers",
			expected: "",
		},
		{
			name:     "collections root",
			uri:      "scholar://collections",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractCollectionID(tt.uri))
		})
	}
}

// makeReadResourceRequest creates a ReadResourceRequest for testing.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleCollectionsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns collections", func(t *testing.T) {
		server := newTestServer(t, &Ports{
			Collections: &mockCollectionService{
				collections: []domain.Collection{{ID: "ml", Name: "ML", SearchType: domain.SearchTypeHybrid}},
			},
		})

		result, err := server.handleCollectionsResource(ctx, makeReadResourceRequest("scholar://collections"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, `"collection_id": "ml"`)
		assert.Contains(t, result.Contents[0].Text, `"search_type": "hybrid"`)
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{
			Collections: &mockCollectionService{err: errors.New("disk error")},
		})

		_, err := server.handleCollectionsResource(ctx, makeReadResourceRequest("scholar://collections"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing collections")
	})
}

func TestServer_handleCollectionResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns collection status", func(t *testing.T) {
		server := newTestServer(t, &Ports{
			Collections: &mockCollectionService{
				collection: &domain.Collection{
					ID:           "ml",
					Name:         "ML",
					SearchType:   domain.SearchTypeDense,
					PaperCount:   2,
					IndexPresent: true,
					NeedsReindex: []string{"p2"},
				},
			},
		})

		result, err := server.handleCollectionResource(ctx, makeReadResourceRequest("scholar://collections/ml"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		text := result.Contents[0].Text
		assert.Contains(t, text, `"index_present": true`)
		assert.Contains(t, text, `"p2"`)
		assert.Contains(t, text, `"consistent": false`)
	})

	t.Run("unknown collection is not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{
			Collections: &mockCollectionService{err: domain.ErrNotFound},
		})

		_, err := server.handleCollectionResource(ctx, makeReadResourceRequest("scholar://collections/nope"))
		require.Error(t, err)
	})

	t.Run("malformed URI is not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{})

		_, err := server.handleCollectionResource(ctx, makeReadResourceRequest("scholar://collections/a/b"))
		require.Error(t, err)
	})

	t.Run("returns error on get failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{
			Collections: &mockCollectionService{err: errors.New("index down")},
		})

		_, err := server.handleCollectionResource(ctx, makeReadResourceRequest("scholar://collections/ml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting collection")
	})
}
