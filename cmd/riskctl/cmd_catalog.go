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
	"strings"

	"github.com/AleutianAI/ingredientrisk/services/catalog"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/spf13/cobra"
)

// lookupResult is one row of catalog lookup --json.
type lookupResult struct {
	Query      string                   `json:"query"`
	Found      bool                     `json:"found"`
	Ingredient *risk_labeler.Ingredient `json:"ingredient,omitempty"`
	Level      risk_labeler.RiskLevel   `json:"risk_level,omitempty"`
	Rule       risk_labeler.Rule        `json:"rule,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

func newCatalogCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query and maintain the ingredient catalog",
	}
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	lookup := &cobra.Command{
		Use:   "lookup <name>...",
		Short: "Resolve names through the catalog and label them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			results := make([]lookupResult, 0, len(args))
			missing := 0
			for _, name := range args {
				res := lookupResult{Query: name}
				ing, err := cat.GetIngredient(ctx, name)
				switch {
				case errors.Is(err, catalog.ErrNotFound):
					missing++
				case err != nil:
					return err
				default:
					res.Found = true
					res.Ingredient = &ing
					if as, err := labeler.Assess(ing); err != nil {
						res.Error = err.Error()
					} else {
						res.Level, res.Rule = as.Level, as.Rule
					}
				}
				results = append(results, res)
			}

			if jsonOut {
				if err := outputJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				p := a.printer
				for _, r := range results {
					switch {
					case !r.Found:
						p.Warning(fmt.Sprintf("%s: not in catalog", r.Query))
					case r.Error != "":
						p.Error(fmt.Sprintf("%s: %s", r.Query, r.Error))
					default:
						p.Field(r.Query, fmt.Sprintf("%s %s %s", r.Ingredient.Name, p.RiskBadge(r.Level), r.Rule))
					}
				}
			}
			if missing > 0 {
				return findings(fmt.Sprintf("%d of %d names not found", missing, len(args)))
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, closeFn, err := a.catalog()
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := cat.List(commandContext(cmd))
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(cmd.OutOrStdout(), entries)
			}
			p := a.printer
			p.Title(fmt.Sprintf("%d catalog entries", len(entries)))
			for _, e := range entries {
				p.Field(e.Name, describeEntry(e))
			}
			return nil
		},
	}

	var importFrom string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Copy a YAML catalog into the BadgerDB catalog",
		Long: `Import writes every entry of --from (default: the embedded seed catalog)
into the database named by --catalog-db. Existing entries with the same
name are replaced.`,
		Example: "  riskctl catalog import --catalog-db ./catalog.db --from ./catalog.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.fileCatalog(importFrom)
			if err != nil {
				return err
			}
			db, closeFn, err := a.database()
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := db.Import(commandContext(cmd), src)
			if err != nil {
				return fmt.Errorf("import stopped after %d entries: %w", n, err)
			}
			a.printer.Success(fmt.Sprintf("imported %d entries; database now holds %d", n, db.Len()))
			return nil
		},
	}
	importCmd.Flags().StringVar(&importFrom, "from", "", "YAML catalog to import (default: embedded seed)")

	var (
		add     catalog.Entry
		code    int
		aliases []string
	)
	put := &cobra.Command{
		Use:     "put <name>",
		Short:   "Add or replace one entry in the BadgerDB catalog",
		Example: `  riskctl catalog put "beetroot red" --processed --code 162 --alias "beet red"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeFn, err := a.database()
			if err != nil {
				return err
			}
			defer closeFn()

			add.Name = args[0]
			add.AdditiveCode = risk_labeler.AdditiveCode(code)
			add.Aliases = aliases
			if err := db.Put(commandContext(cmd), add); err != nil {
				return err
			}
			a.printer.Success(fmt.Sprintf("stored %s", risk_labeler.NormalizeName(add.Name)))
			return nil
		},
	}
	put.Flags().BoolVar(&add.IsArtificial, "artificial", false, "Ingredient is artificial")
	put.Flags().BoolVar(&add.IsProcessed, "processed", false, "Ingredient is processed")
	put.Flags().IntVar(&code, "code", 0, "INS additive code")
	put.Flags().StringSliceVar(&aliases, "alias", nil, "Alternative label name (repeatable)")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove an entry and its aliases from the BadgerDB catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeFn, err := a.database()
			if err != nil {
				return err
			}
			defer closeFn()
			if err := db.Delete(commandContext(cmd), args[0]); err != nil {
				return err
			}
			a.printer.Success(fmt.Sprintf("deleted %s", args[0]))
			return nil
		},
	}

	cmd.AddCommand(lookup, list, importCmd, put, del)
	return cmd
}

func (a *app) database() (*catalog.BadgerCatalog, func(), error) {
	if a.cfg.CatalogDB == "" {
		return nil, func() {}, errors.New("this command needs --catalog-db (or catalog_db in riskctl.yaml)")
	}
	cat, closeFn, err := a.catalog()
	if err != nil {
		return nil, closeFn, err
	}
	db, ok := cat.(*catalog.BadgerCatalog)
	if !ok {
		closeFn()
		return nil, func() {}, errors.New("catalog is not a database")
	}
	return db, closeFn, nil
}

func describeEntry(e catalog.Entry) string {
	var attrs []string
	if e.IsArtificial {
		attrs = append(attrs, "artificial")
	}
	if e.IsProcessed {
		attrs = append(attrs, "processed")
	}
	if e.HasAdditive() {
		attrs = append(attrs, e.AdditiveCode.String())
	}
	if len(attrs) == 0 {
		attrs = append(attrs, "whole")
	}
	s := strings.Join(attrs, ", ")
	if len(e.Aliases) > 0 {
		s += " (aka " + strings.Join(e.Aliases, "; ") + ")"
	}
	return s
}
