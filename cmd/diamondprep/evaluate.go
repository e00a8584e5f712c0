package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diamondprep/diamonds"
	"github.com/YuminosukeSato/diamondprep/evaluate"
	"github.com/YuminosukeSato/diamondprep/pkg/log"
)

func newEvaluateCommand(stdout, stderr io.Writer) *cobra.Command {
	var (
		labelsPath string
		predsPath  string
		column     string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score predictions against diamond_prices.csv",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := log.SetupLogger("info", stderr); err != nil {
				return err
			}
			scores, err := scoreFiles(labelsPath, predsPath, column)
			if err != nil {
				slog.Error("evaluation failed", log.ErrAttr(err), slog.String(log.PhaseKey, log.PhaseEvaluate))
				return err
			}
			if asJSON {
				return json.NewEncoder(stdout).Encode(scores)
			}
			_, err = fmt.Fprintln(stdout, scores)
			return err
		},
	}
	cmd.Flags().StringVar(&labelsPath, "labels", diamonds.LabelsArtifact, "CSV with the true prices")
	cmd.Flags().StringVar(&predsPath, "predictions", "", "CSV with the predicted prices")
	cmd.Flags().StringVar(&column, "column", "", "prediction column (default: first column)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print scores as JSON")
	_ = cmd.MarkFlagRequired("predictions")
	return cmd
}

func scoreFiles(labelsPath, predsPath, column string) (evaluate.Scores, error) {
	yTrue, err := readColumnFile(labelsPath, diamonds.Target)
	if err != nil {
		return evaluate.Scores{}, err
	}
	yPred, err := readColumnFile(predsPath, column)
	if err != nil {
		return evaluate.Scores{}, err
	}
	return evaluate.Compare(yTrue, yPred)
}

func readColumnFile(path, column string) (*mat.VecDense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return evaluate.ReadColumn(f, column)
}
