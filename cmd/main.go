package main

import (
	"os"

	"github.com/soundprediction/recall/cmd/recall"
)

func main() {
	if err := recall.Execute(); err != nil {
		os.Exit(1)
	}
}
