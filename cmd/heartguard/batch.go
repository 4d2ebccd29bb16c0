package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"heartguard/consensus"
	"heartguard/patient"
)

var outFlag = &cli.StringFlag{
	Name:  "out",
	Usage: "Output CSV path, or - for stdout",
	Value: "batch_report.csv",
}

var batchCmd = &cli.Command{
	Name:      "batch",
	Usage:     "Labels every row of a patient CSV with each loaded model",
	ArgsUsage: "<input.csv>",
	Flags:     []cli.Flag{outFlag},
	Action:    cmdBatch,
}

func cmdBatch(ctx context.Context, cmd *cli.Command) error {
	in := cmd.Args().First()
	if in == "" {
		return errors.New("input CSV is required")
	}

	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	table, err := patient.ReadTable(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", in, err)
	}

	set := models.Get()
	defer closeModels(set)

	engine, err := consensus.NewEngine(set, 0, logger)
	if err != nil {
		return err
	}
	if engine.Set().Empty() {
		printDiagnostics(os.Stderr, engine.Set().Diagnostics())
	}

	out, err := engine.Batch(ctx, table)
	if err != nil {
		return fmt.Errorf("labelling %s: %w", in, err)
	}

	dst := cmd.String(outFlag.Name)
	if dst == "-" {
		return out.WriteCSV(os.Stdout)
	}
	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := out.WriteCSV(w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	logger.Info("batch report written",
		zap.String("path", dst),
		zap.Int("rows", len(out.Rows)),
		zap.Strings("models", engine.Set().Names()))
	return nil
}
