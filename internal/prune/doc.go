// Package prune wires the retention engine to the GHCR client and the CLI.
//
// It provides CommandBuilder for assembling the Cobra command, PruneService
// for executing the list-select-delete flow with reporting, configuration
// helpers, and token resolution utilities for GHCR credentials.
package prune
