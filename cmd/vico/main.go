// Command vico is the locally-hosted conversational assistant's entry
// point: it wires the memory store, research corpus, cache registry,
// provider registry, and orchestrator collaborators together and serves
// the HTTP surface. The composition root itself lives in
// commands/serve.go.
package main

import (
	"fmt"
	"os"

	"github.com/vico-ai/vico/cmd/vico/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
