// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the OCR engine, the embedding model, the
// LLM providers, the vector store, the artifact store and the catalog.
// The pipeline core depends on these interfaces only; concrete adapters
// live under internal/adapters/driven.
package driven
