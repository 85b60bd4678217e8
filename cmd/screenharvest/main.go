// Package main is the entry point for the screenharvest CLI.
package main

import (
	"errors"
	"os"

	"github.com/jmylchreest/screenharvest/cmd/screenharvest/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		var exit *commands.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		os.Exit(1)
	}
}
