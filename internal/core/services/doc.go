// Package services implements the driving port interfaces.
// Services contain the pipeline and answering logic and orchestrate
// calls to driven ports (adapters).
package services
