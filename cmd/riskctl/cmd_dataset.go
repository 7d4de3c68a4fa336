// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/ingredientrisk/pkg/ux"
	"github.com/AleutianAI/ingredientrisk/services/dataset"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/spf13/cobra"
)

const (
	formatCSV  = "csv"
	formatXLSX = "xlsx"
)

type generateOptions struct {
	cfg    dataset.Config
	out    string
	format string
}

// checkMismatch is one row whose stored level differs from a fresh label.
type checkMismatch struct {
	Row      int                    `json:"row"`
	Text     string                 `json:"text"`
	Stored   risk_labeler.RiskLevel `json:"stored_level"`
	Computed risk_labeler.RiskLevel `json:"computed_level,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func newDatasetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Generate and check labeled training data",
	}

	gen := &generateOptions{}
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Sample ingredient lists from the catalog and label them",
		Example: `  riskctl dataset generate --rows 1000 --seed 7 --out train.csv
  riskctl dataset generate --per-level 200 --out balanced.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, a, gen)
		},
	}
	f := generate.Flags()
	f.IntVar(&gen.cfg.Rows, "rows", 1000, "Number of rows (ignored with --per-level)")
	f.IntVar(&gen.cfg.PerLevel, "per-level", 0, "Rows per risk level for a balanced dataset")
	f.IntVar(&gen.cfg.MinItems, "min-items", 1, "Minimum ingredients per row")
	f.IntVar(&gen.cfg.MaxItems, "max-items", 12, "Maximum ingredients per row")
	f.Uint64Var(&gen.cfg.Seed, "seed", 1, "Random seed")
	f.StringVarP(&gen.out, "out", "o", "-", `Output file, or "-" for stdout`)
	f.StringVar(&gen.format, "format", "", "csv or xlsx (default: from the --out extension, csv for stdout)")

	var checkFormat string
	var checkJSON bool
	check := &cobra.Command{
		Use:   "check <file>",
		Short: "Re-label every row of a dataset and report disagreements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, a, args[0], checkFormat, checkJSON)
		},
	}
	check.Flags().StringVar(&checkFormat, "format", "", "csv or xlsx (default: from the file extension)")
	check.Flags().BoolVar(&checkJSON, "json", false, "Output mismatches as JSON")

	cmd.AddCommand(generate, check)
	return cmd
}

func runGenerate(cmd *cobra.Command, a *app, opts *generateOptions) error {
	format, err := resolveFormat(opts.format, opts.out)
	if err != nil {
		return err
	}
	if format == formatXLSX && opts.out == "-" {
		return fmt.Errorf("xlsx output needs a file; pass --out")
	}

	labeler, err := a.labeler()
	if err != nil {
		return err
	}
	cat, closeFn, err := a.catalog()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := commandContext(cmd)
	entries, err := cat.List(ctx)
	if err != nil {
		return err
	}
	g, err := dataset.NewGenerator(entries, labeler, opts.cfg, a.logger)
	if err != nil {
		return err
	}
	rows, err := g.Generate(ctx)
	if err != nil {
		return err
	}

	if opts.out == "-" {
		return writeRows(cmd.OutOrStdout(), format, rows)
	}
	file, err := os.Create(opts.out)
	if err != nil {
		return err
	}
	if err := writeRows(file, format, rows); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	printDistribution(a.printer, rows)
	a.printer.Success(fmt.Sprintf("wrote %d rows to %s", len(rows), opts.out))
	return nil
}

func runCheck(cmd *cobra.Command, a *app, path, format string, jsonOut bool) error {
	format, err := resolveFormat(format, path)
	if err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var rows []dataset.Row
	if format == formatXLSX {
		rows, err = dataset.ReadXLSX(file)
	} else {
		rows, err = dataset.ReadCSV(file)
	}
	if err != nil {
		return err
	}

	as, closeFn, err := a.assessor()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := commandContext(cmd)
	var mismatches []checkMismatch
	for i, row := range rows {
		report, err := as.Assess(ctx, row.Text)
		switch {
		case err != nil:
			mismatches = append(mismatches, checkMismatch{Row: i + 1, Text: row.Text, Stored: row.Level, Error: err.Error()})
		case report.Level != row.Level:
			mismatches = append(mismatches, checkMismatch{Row: i + 1, Text: row.Text, Stored: row.Level, Computed: report.Level})
		}
	}

	if jsonOut {
		if mismatches == nil {
			mismatches = []checkMismatch{}
		}
		if err := outputJSON(cmd.OutOrStdout(), mismatches); err != nil {
			return err
		}
	} else {
		p := a.printer
		printDistribution(p, rows)
		for _, m := range mismatches {
			if m.Error != "" {
				p.Error(fmt.Sprintf("row %d: %s", m.Row, m.Error))
				continue
			}
			p.Warning(fmt.Sprintf("row %d: stored %d, rules say %d: %s", m.Row, m.Stored, m.Computed, m.Text))
		}
		if len(mismatches) == 0 {
			p.Success(fmt.Sprintf("all %d rows agree with the rules", len(rows)))
		}
	}

	if len(mismatches) > 0 {
		return findings(fmt.Sprintf("%d of %d rows disagree with the rules", len(mismatches), len(rows)))
	}
	return nil
}

func resolveFormat(format, path string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			format = formatXLSX
		default:
			format = formatCSV
		}
	}
	switch format {
	case formatCSV, formatXLSX:
		return format, nil
	default:
		return "", fmt.Errorf("unknown dataset format %q (want csv or xlsx)", format)
	}
}

func writeRows(w io.Writer, format string, rows []dataset.Row) error {
	if format == formatXLSX {
		return dataset.WriteXLSX(w, rows)
	}
	return dataset.WriteCSV(w, rows)
}

func printDistribution(p *ux.Printer, rows []dataset.Row) {
	counts := dataset.Counts(rows)
	p.Title("Level distribution")
	for _, level := range risk_labeler.AllLevels {
		p.Field(fmt.Sprintf("%-12s", level), fmt.Sprintf("%s %d", p.Bar(counts[level], len(rows), 30), counts[level]))
	}
}
