package main

import (
	"os"

	"github.com/agilefinance/boletoflow/cmd/boletoctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
