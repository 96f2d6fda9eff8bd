package main

import (
	"os"

	"github.com/bananagame/banago/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
