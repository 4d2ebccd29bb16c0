package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"heartguard/consensus"
	"heartguard/patient"
	"heartguard/registry"
)

var (
	recordFlag = &cli.StringFlag{
		Name:  "record",
		Usage: "Path to a JSON record, or - for stdin (optional, defaults to the form defaults)",
	}

	fieldFlag = &cli.StringSliceFlag{
		Name:  "set",
		Usage: "Field override as name=value; categorical fields take their labels, e.g. --set 'ChestPainType=Asymptomatic'",
	}
)

var predictCmd = &cli.Command{
	Name:   "predict",
	Usage:  "Assesses a single patient record and prints the consensus as JSON",
	Flags:  []cli.Flag{recordFlag, fieldFlag},
	Action: cmdPredict,
}

func cmdPredict(ctx context.Context, cmd *cli.Command) error {
	v, err := readRecord(cmd.String(recordFlag.Name), cmd.StringSlice(fieldFlag.Name))
	if err != nil {
		return err
	}

	set := models.Get()
	defer closeModels(set)

	engine, err := consensus.NewEngine(set, 0, logger)
	if err != nil {
		return err
	}

	a, err := engine.Assess(v)
	if err != nil {
		var noModels *consensus.NoModelsError
		if errors.As(err, &noModels) {
			printDiagnostics(os.Stderr, noModels.Diagnostics)
		}
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

func readRecord(path string, overrides []string) (patient.FeatureVector, error) {
	if len(overrides) > 0 {
		if path != "" {
			return patient.FeatureVector{}, errors.New("--record and --set are mutually exclusive")
		}
		form := url.Values{}
		for _, kv := range overrides {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return patient.FeatureVector{}, fmt.Errorf("invalid --set %q, want name=value", kv)
			}
			form.Set(name, value)
		}
		return patient.FromForm(form)
	}

	v := patient.Default()
	if path == "" {
		return v, nil
	}

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return v, err
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("decoding record: %w", err)
	}
	return v, v.Validate()
}

func printDiagnostics(w io.Writer, diagnostics []registry.Diagnostic) {
	for _, d := range diagnostics {
		fmt.Fprintf(w, "%s: %s\n", d.Name, d.Message)
	}
}
