package main

import (
	"os"

	"github.com/ejames/nowcast/cmd/nowcast/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
