package main

import (
	"os"

	"github.com/bianoble/sfsync/cmd/sfsync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
