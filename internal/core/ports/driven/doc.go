// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: Dense embeddings for chunks and queries
//   - VectorIndex: Per-collection vector storage and search
//   - CollectionStore: Collection directories and paper records on disk
//   - PostProcessorPipeline: Turns a document into ordered chunks
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SparseEmbeddingService: Only needed by hybrid collections.
//   - IngestJournal: Without it ingestion state is only logged.
//   - LLMService: Without it answer generation is disabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
