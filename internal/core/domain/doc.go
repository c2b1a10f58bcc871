// Package domain defines the core business entities for Scholar.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A converted paper with bibliographic metadata and sections
//   - Chunk: A searchable unit within a paper
//   - Collection: An isolated, independently searchable corpus
//   - Point: A chunk with its dense and sparse embeddings
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
