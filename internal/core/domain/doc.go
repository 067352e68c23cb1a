// Package domain defines the core business entities for BenefitsFlow.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A governed source document, versioned by URI
//   - Chunk: An overlap-aware segment of a document, the unit of retrieval
//   - IndexRecord: The persisted unit in the vector index
//   - Evidence: A retrieved chunk plus its ranking score
//   - Answer: A grounded answer with citations and matched programs
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
