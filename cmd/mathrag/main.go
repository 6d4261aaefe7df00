// Package main provides the entry point for the mathrag CLI.
package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/mathmentor/mathrag/cmd/mathrag/cmd"
	"github.com/mathmentor/mathrag/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var coded *errors.Error
		if stderrors.As(err, &coded) && coded.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", coded.Suggestion)
		}
		// Fatal errors (missing knowledge base, dimension mismatch) exit
		// with a distinct code so scripts can tell them from soft failures.
		if errors.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
