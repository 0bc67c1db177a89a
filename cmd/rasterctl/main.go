// Package main is the entry point for rasterctl.
package main

import (
	"os"

	"github.com/dalemusser/rasterhub/internal/cli"
)

// version is injected via ldflags at build time.
var version = "dev"

func main() {
	cli.SetVersion(version)
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
