// Command nlds runs one consumer of the NLDS bus-driven workflow engine
// per invocation; see cli.RootCmd for the full subcommand tree.
package main

import (
	"log"
	"os"

	"github.com/nlds-io/nlds/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
