// Package main provides the entry point for gearstream.
// gearstream is a tick-level model of a stream width gearbox with an
// optional zero run-length encoder, built on Akita.
//
// For the full CLI, use: go run ./cmd/gearsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("gearstream - stream gearbox and zero run-length encoder simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: gearsim [options] <words.txt>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to a JSON, TOML or YAML run configuration")
	fmt.Println("  -out       Write output words to a file")
	fmt.Println("  -verify    Decode the output and compare it with the input")
	fmt.Println("  -engine    Drive the run with the Akita serial engine")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/gearsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/gearsim' instead.")
	}
}
