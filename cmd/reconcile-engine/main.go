package main

import (
	"os"

	"github.com/finlab/reconcile-engine/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
