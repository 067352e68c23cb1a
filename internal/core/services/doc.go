// Package services implements the core pipeline of the BenefitsFlow RAG
// system: the embedding gateway, the retrieval engine, the answer
// synthesizer, the ingest orchestrator and the chat session service.
//
// Services depend only on domain types and driven ports. They hold no
// per-query mutable state and are safe to share across sessions; the one
// exception is ChatService, which owns the session registry.
package services
