// Command coursechat is the entry point for the course documentation
// assistant. It provides a CLI interface (via Cobra) for content ingestion,
// one-shot questions, and the HTTP chat API.
package main

import (
	"fmt"
	"os"

	"github.com/robolearn/coursechat/cmd/coursechat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
