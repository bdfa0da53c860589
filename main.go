package main

import (
	"os"

	"github.com/attacklens/attacklens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
