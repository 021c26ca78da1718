// Package main is the entry point for the rota server and its maintenance
// commands.
package main

import (
	"fmt"
	"os"
)

// version is set at build time using -ldflags.
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
