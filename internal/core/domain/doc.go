// Package domain contains the core business entities for the corpus
// pipeline: collections, documents, chunks, embedding records and the
// outcomes of the retrieval-and-answer flow. It has no dependencies on
// adapters or infrastructure.
package domain
