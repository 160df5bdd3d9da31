// Package main is the tabletracer CLI entry point.
package main

import (
	"os"

	"github.com/TongWu/tabletracer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
