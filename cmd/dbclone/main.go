package main

import (
	"os"

	"github.com/dbclone/dbclone/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
