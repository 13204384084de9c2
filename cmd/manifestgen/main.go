package main

import (
	"os"

	"github.com/pbar1/ssh-benchmark/cmd/manifestgen/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
