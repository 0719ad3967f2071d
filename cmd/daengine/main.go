package main

import (
	"os"

	"github.com/daengine/daengine/pkg/cli"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0"

func main() {
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
