// Command ormq translates, inspects and runs queries against a schema.
package main

import (
	"context"
	"os"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gs := newGlobalState(ctx, os.Stdout, os.Stderr, os.Environ())
	if err := newRootCommand(gs).Execute(); err != nil {
		os.Exit(1)
	}
}
