// Command display runs the search-results display service and its tooling.
//
// Usage:
//
//	go run ./cmd/display serve [--config configs/display.yaml]
//	go run ./cmd/display terms 't="the Lord" in (KJV)'
//	go run ./cmd/display classify 'oh*=H157 in (OSMHB)'
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/cmd/display/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
