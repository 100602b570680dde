// Package main is the entry point for the ledgermail CLI.
package main

import (
	"os"

	"github.com/mailfin/ledgermail/cmd/ledgermail/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
