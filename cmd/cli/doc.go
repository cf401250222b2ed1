// Package cli assembles the ghcr-prune command-line application.
//
// It wires the prune command builder to configuration loading and
// structured logging, and exposes Execute as the process entrypoint.
package cli
