package main

import (
	"os"

	"github.com/solatis/packkeeper/cmd/packkeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
