package main

import (
	"os"

	"github.com/sweetpotato0/agentgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
