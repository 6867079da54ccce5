package main

import (
	"os"

	"github.com/pact-foundation/pactengine/cmd/pactengine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
