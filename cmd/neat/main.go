// Command neat is the semantic data model toolkit CLI.
package main

import (
	"os"

	"github.com/neatkit/neat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
