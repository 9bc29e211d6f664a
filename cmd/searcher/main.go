// Command searcher serves one shard's search and retrieve RPCs and,
// when configured, joins the cluster's gossip membership as a
// Searcher service, per spec.md §6.
package main

import (
	"fmt"
	"os"

	"github.com/stract-search/searchcore/cmd/searcher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cmd.ExitCode(err))
	}
}
