// Package main is the sqlscope command.
package main

import (
	"os"

	"github.com/leapstack-labs/sqlscope/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
