// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentSource: Lists documents from a corpus location
//   - DocumentStore: Document and chunk persistence
//   - EmbeddingProvider: Generates vector embeddings
//   - VectorIndex: Vector storage and top-k similarity search
//   - GenerationService: Single-shot grounded answer generation
//
// # Optional Interfaces
//
//   - PromptStore: User-customisable prompt templates; falls back to
//     embedded defaults when nil.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
