package main

import (
	"os"

	"github.com/Rohianon/multicurrency-checkout/cmd/checkout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
