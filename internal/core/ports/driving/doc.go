// Package driving provides interfaces for external actors
// (primary/inbound ports). The CLI drives the pipeline and the
// retrieval-and-answer flow through these interfaces.
package driving
