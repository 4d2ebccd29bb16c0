package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"heartguard/consensus"
)

var modelsCmd = &cli.Command{
	Name:   "models",
	Usage:  "Loads the artifacts and reports which models are available",
	Action: cmdModels,
}

func cmdModels(ctx context.Context, cmd *cli.Command) error {
	set := models.Get()
	defer closeModels(set)

	fmt.Printf("artifact dir: %s\n", loader.Dir)
	for _, name := range set.Names() {
		fmt.Printf("  %-24s loaded\n", name)
	}
	printDiagnostics(os.Stdout, set.Diagnostics())

	if set.Empty() {
		return consensus.ErrNoModels
	}
	return nil
}
