package main

import (
	"os"

	"github.com/itsrohit2904/Quiz-App/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
