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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AleutianAI/ingredientrisk/pkg/ux"
	"github.com/AleutianAI/ingredientrisk/services/assessor"
	"github.com/AleutianAI/ingredientrisk/services/explainer"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/spf13/cobra"
)

type classifyOptions struct {
	json    bool
	file    string
	explain bool
	failAt  int
}

// classifyResult is the --json output of classify.
type classifyResult struct {
	*assessor.Report
	Explanation string `json:"explanation,omitempty"`
}

func newClassifyCmd(a *app) *cobra.Command {
	opts := &classifyOptions{}
	cmd := &cobra.Command{
		Use:   "classify [label text...]",
		Short: "Assign a risk level to an ingredient list",
		Long: `Classify parses an ingredient list, resolves each ingredient through
the catalog and the additive registry, and prints the risk level of the
riskiest one. Text comes from the arguments, or from --file ("-" for stdin).`,
		Example: `  riskctl classify "Wheat flour, sugar, emulsifier (INS 471)"
  cat label.txt | riskctl classify --file - --json
  riskctl classify --fail-at 5 "water, aspartame"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, a, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output the full report as JSON")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", `Read the label text from a file ("-" for stdin)`)
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Add a plain-language explanation")
	cmd.Flags().IntVar(&opts.failAt, "fail-at", 0, "Exit with status 1 when the level is at least this value (1-5)")
	return cmd
}

func runClassify(cmd *cobra.Command, a *app, opts *classifyOptions, args []string) error {
	if opts.failAt != 0 && !risk_labeler.RiskLevel(opts.failAt).Valid() {
		return fmt.Errorf("--fail-at must be between 1 and 5, got %d", opts.failAt)
	}
	text, err := classifyInput(cmd.InOrStdin(), opts.file, args)
	if err != nil {
		return err
	}

	as, closeCatalog, err := a.assessor()
	if err != nil {
		return err
	}
	defer closeCatalog()

	ctx := commandContext(cmd)
	report, err := as.Assess(ctx, text)
	if err != nil {
		var unresolved *assessor.UnresolvedError
		if errors.As(err, &unresolved) {
			return fmt.Errorf("%w (add them to the catalog or pass --catalog)", err)
		}
		return err
	}

	result := classifyResult{Report: report}
	if opts.explain {
		rules, err := a.rules()
		if err != nil {
			return err
		}
		result.Explanation, err = explainer.NewTemplateExplainer(rules).Explain(ctx, report)
		if err != nil {
			return err
		}
	}

	if opts.json {
		if err := outputJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		printReport(a.printer, result)
	}

	if opts.failAt != 0 && int(report.Level) >= opts.failAt {
		return findings(fmt.Sprintf("risk level %d reached threshold %d", report.Level, opts.failAt))
	}
	return nil
}

func classifyInput(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case file == "-":
		data, err := io.ReadAll(stdin)
		return string(data), err
	case file != "":
		data, err := os.ReadFile(file)
		return string(data), err
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", errors.New("no label text: pass it as arguments or use --file")
	}
}

func printReport(p *ux.Printer, r classifyResult) {
	if p.Mode() == ux.ModeMachine {
		p.Field("risk_level", int(r.Level))
		p.Field("risk_category", r.Category)
		for _, it := range r.Items {
			p.Field("ingredient", fmt.Sprintf("%s\t%d\t%s", it.Ingredient.Name, int(it.Level), it.Rule))
		}
		if r.Explanation != "" {
			p.Box("explanation", r.Explanation)
		}
		return
	}

	p.Title(fmt.Sprintf("Risk level %s", p.RiskBadge(r.Level)))
	for i, it := range r.Items {
		marker := " "
		if i == r.Driver {
			marker = string(ux.IconBullet)
		}
		name := it.Ingredient.Name
		if it.Ingredient.HasAdditive() {
			name += " (" + it.Ingredient.AdditiveCode.String() + ")"
		}
		p.Field(fmt.Sprintf("%s %-40s", marker, name), fmt.Sprintf("%s %s", p.RiskBadge(it.Level), it.Rule))
	}
	if r.Explanation != "" {
		p.Box("Explanation", r.Explanation)
	}
}
