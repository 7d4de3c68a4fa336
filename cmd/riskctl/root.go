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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/AleutianAI/ingredientrisk/pkg/logging"
	"github.com/AleutianAI/ingredientrisk/pkg/ux"
	"github.com/AleutianAI/ingredientrisk/services/assessor"
	"github.com/AleutianAI/ingredientrisk/services/catalog"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "riskctl.yaml"

// fileConfig is the optional riskctl.yaml. Flags override it.
type fileConfig struct {
	RulesPath   string `yaml:"rules_path"`
	CatalogPath string `yaml:"catalog_path"`
	CatalogDB   string `yaml:"catalog_db"`
	LogLevel    string `yaml:"log_level"`
	Output      string `yaml:"output"`
}

// app holds state shared by every subcommand of one invocation.
type app struct {
	configPath string
	cfg        fileConfig
	flags      fileConfig

	logger  *slog.Logger
	logs    *logging.Logger
	printer *ux.Printer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "riskctl",
		Short: "Label ingredient lists and manage risk labeling data",
		Long: `riskctl assigns a 1-5 risk level to food ingredient lists using the
same rules, catalog and additive registry as the risk API.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logs != nil {
				return a.logs.Close()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", defaultConfigPath, "Path to riskctl.yaml")
	pf.StringVar(&a.flags.RulesPath, "rules", "", "Labeling rules YAML (default: embedded rules)")
	pf.StringVar(&a.flags.CatalogPath, "catalog", "", "Ingredient catalog YAML (default: embedded seed)")
	pf.StringVar(&a.flags.CatalogDB, "catalog-db", "", "BadgerDB catalog directory; takes precedence over --catalog")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error (default: warn)")
	pf.StringVar(&a.flags.Output, "output", "", "Output style: rich, plain or machine (default: detect)")

	root.AddCommand(
		newClassifyCmd(a),
		newRulesCmd(a),
		newCatalogCmd(a),
		newDatasetCmd(a),
	)
	return root
}

// setup loads riskctl.yaml, applies flag overrides and builds the logger
// and printer. A missing default config file is not an error.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(a.configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &a.cfg); err != nil {
			return fmt.Errorf("parse %s: %w", a.configPath, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
	default:
		return fmt.Errorf("read %s: %w", a.configPath, err)
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, val string) {
		if flags.Changed(name) {
			*dst = val
		}
	}
	override("rules", &a.cfg.RulesPath, a.flags.RulesPath)
	override("catalog", &a.cfg.CatalogPath, a.flags.CatalogPath)
	override("catalog-db", &a.cfg.CatalogDB, a.flags.CatalogDB)
	override("log-level", &a.cfg.LogLevel, a.flags.LogLevel)
	override("output", &a.cfg.Output, a.flags.Output)

	level := logging.LevelWarn
	if a.cfg.LogLevel != "" {
		if level, err = logging.ParseLevel(a.cfg.LogLevel); err != nil {
			return err
		}
	}
	a.logs, err = logging.New(logging.Config{Level: level, Service: "riskctl", Output: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	a.logger = a.logs.Slog()

	mode := ux.DetectMode(cmd.OutOrStdout())
	if a.cfg.Output != "" {
		mode = ux.ParseMode(a.cfg.Output)
	}
	a.printer = ux.NewPrinter(cmd.OutOrStdout(), mode)
	return nil
}

func (a *app) rules() (*risk_labeler.Rules, error) {
	if a.cfg.RulesPath == "" {
		return risk_labeler.DefaultRules()
	}
	data, err := os.ReadFile(a.cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return risk_labeler.LoadRules(data)
}

func (a *app) labeler() (*risk_labeler.RiskLabeler, error) {
	rules, err := a.rules()
	if err != nil {
		return nil, err
	}
	return risk_labeler.NewRiskLabeler(rules, risk_labeler.WithLogger(a.logger))
}

// listingCatalog is a catalog that can also enumerate its entries.
type listingCatalog interface {
	catalog.Catalog
	catalog.Lister
}

// catalog opens the configured catalog. The close function is never nil.
func (a *app) catalog() (listingCatalog, func(), error) {
	if a.cfg.CatalogDB != "" {
		cfg := catalog.DefaultBadgerConfig(a.cfg.CatalogDB)
		cfg.Logger = a.logger
		cfg.GCInterval = 0
		db, err := catalog.OpenBadger(cfg)
		if err != nil {
			return nil, func() {}, err
		}
		return db, func() {
			if err := db.Close(); err != nil {
				a.logger.Warn("Failed to close catalog database", "error", err)
			}
		}, nil
	}
	mc, err := a.fileCatalog(a.cfg.CatalogPath)
	return mc, func() {}, err
}

func (a *app) fileCatalog(path string) (*catalog.MemoryCatalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

func (a *app) assessor() (*assessor.Assessor, func(), error) {
	labeler, err := a.labeler()
	if err != nil {
		return nil, func() {}, err
	}
	cat, closeFn, err := a.catalog()
	if err != nil {
		return nil, closeFn, err
	}
	as, err := assessor.New(cat, labeler, a.logger)
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return as, closeFn, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
