// Command pagelayer runs the page layer editor.
package main

import (
	"os"

	"github.com/zot/pagelayer/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
