package main

import (
	"fmt"
	"os"

	"github.com/temirov/ghcr-prune/cmd/cli"
	"github.com/temirov/ghcr-prune/internal/utils"
)

const (
	exitErrorTemplateConstant = "%s\n"
)

// main executes the ghcr-prune command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, utils.SimplifyErrorMessage(executionError))
		os.Exit(1)
	}
}
