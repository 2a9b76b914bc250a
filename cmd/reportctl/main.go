package main

import (
	"fmt"
	"os"

	"report_catalog/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.OpenFromConfig).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
