package main

import (
	"os"

	"github.com/rustyeddy/crowding/cmd/crowding/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
