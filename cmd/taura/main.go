package main

import (
	"os"

	"taura/cmd/taura/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
