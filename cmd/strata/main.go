// Command strata manages district timelines of state years.
package main

import (
	"os"

	"github.com/roach88/strata/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
