package main

import (
	"os"

	"github.com/hakim/reconsweep/internal/console"
)

func main() {
	if err := Execute(); err != nil {
		console.New(os.Stderr, false).Errorf("%v", err)
		os.Exit(1)
	}
}
