package main

import (
	"os"

	"github.com/solatis/condengine/cmd/condengine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
