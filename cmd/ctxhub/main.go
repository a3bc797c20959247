// Package main provides the entry point for the ctxhub CLI.
package main

import (
	"fmt"
	"os"

	"github.com/ctxhub-ai/ctxhub/cmd/ctxhub/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
