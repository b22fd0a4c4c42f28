// Package main provides the entry point for the hoopla CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/hoopla/cmd/hoopla/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
