// Command nanodm inspects and maintains nanodm file stores.
// Build with: go build -o bin/nanodm ./cmd/nanodm
// Usage: nanodm --store data.json <command> [options]
package main

import (
	"fmt"
	"os"
)

func main() {
	cli := NewCLI()
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
