package main

import (
	"os"

	"alongc/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
