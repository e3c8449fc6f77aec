package main

import (
	"os"

	"finctl/cmd/finctl-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
