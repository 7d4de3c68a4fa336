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

	"github.com/AleutianAI/ingredientrisk/pkg/validation"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/spf13/cobra"
)

// rulesVerifyResult is the --json output of rules verify.
type rulesVerifyResult struct {
	Valid            bool   `json:"valid"`
	Version          string `json:"version"`
	Hash             string `json:"hash"`
	ByteSize         int    `json:"byte_size"`
	HarmfulAdditives int    `json:"harmful_additives"`
	Additives        int    `json:"additives"`
	RefinedNames     int    `json:"refined_ingredients"`
}

// rulesDump is the --json output of rules dump.
type rulesDump struct {
	Version            string                      `json:"version"`
	Hash               string                      `json:"hash"`
	HarmfulAdditives   []risk_labeler.AdditiveCode `json:"harmful_additives"`
	Additives          []risk_labeler.Additive     `json:"additives"`
	RefinedIngredients []string                    `json:"refined_ingredients"`
}

func newRulesCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the labeling rules",
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Validate the rules and print their fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := a.rules()
			if err != nil {
				return err
			}
			res := rulesVerifyResult{
				Valid:            true,
				Version:          rules.Version(),
				Hash:             rules.Hash(),
				ByteSize:         len(rules.Raw()),
				HarmfulAdditives: len(rules.HarmfulCodes()),
				Additives:        len(rules.Additives()),
				RefinedNames:     len(rules.RefinedNames()),
			}
			if jsonOut {
				return outputJSON(cmd.OutOrStdout(), res)
			}
			p := a.printer
			p.Title("Labeling rules")
			p.Field("version", res.Version)
			p.Field("sha256", res.Hash)
			p.Field("bytes", res.ByteSize)
			p.Field("harmful additives", res.HarmfulAdditives)
			p.Field("registry entries", res.Additives)
			p.Field("refined ingredients", res.RefinedNames)
			p.Success("rules are valid")
			return nil
		},
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the rules document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := a.rules()
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(cmd.OutOrStdout(), rulesDump{
					Version:            rules.Version(),
					Hash:               rules.Hash(),
					HarmfulAdditives:   rules.HarmfulCodes(),
					Additives:          rules.Additives(),
					RefinedIngredients: rules.RefinedNames(),
				})
			}
			_, err = cmd.OutOrStdout().Write(rules.Raw())
			return err
		},
	}

	additive := &cobra.Command{
		Use:     "additive <code>",
		Short:   "Look up an additive code in the registry",
		Example: "  riskctl rules additive 211\n  riskctl rules additive E102",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := parseAdditiveCode(args[0])
			if err != nil {
				return err
			}
			rules, err := a.rules()
			if err != nil {
				return err
			}
			add, known := rules.Additive(code)
			group, harmful := rules.HarmfulGroup(code)
			if jsonOut {
				return outputJSON(cmd.OutOrStdout(), struct {
					Code    risk_labeler.AdditiveCode `json:"code"`
					Known   bool                      `json:"known"`
					Entry   *risk_labeler.Additive    `json:"entry,omitempty"`
					Harmful bool                      `json:"harmful"`
					Group   string                    `json:"group,omitempty"`
				}{code, known, entryOrNil(add, known), harmful, group})
			}
			p := a.printer
			p.Title(code.String())
			if known {
				p.Field("name", add.Name)
				p.Field("class", add.Class)
				p.Field("synthetic", add.Synthetic)
			} else {
				p.Warning("not in the additive registry; labels treat it as synthetic")
			}
			if harmful {
				p.Error("on the harmful list (" + group + ")")
			} else {
				p.Success("not on the harmful list")
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.AddCommand(verify, dump, additive)
	return cmd
}

// parseAdditiveCode accepts "211", "E211" and "INS 211".
func parseAdditiveCode(s string) (risk_labeler.AdditiveCode, error) {
	n, err := validation.ParseAdditiveCode(s)
	if err != nil {
		return 0, err
	}
	code := risk_labeler.AdditiveCode(n)
	if !code.Valid() {
		return 0, fmt.Errorf("additive code %d is outside the INS range", n)
	}
	return code, nil
}

func entryOrNil(a risk_labeler.Additive, ok bool) *risk_labeler.Additive {
	if !ok {
		return nil
	}
	return &a
}
