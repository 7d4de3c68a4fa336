// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command riskctl labels ingredient lists and manages the data behind the
// risk API: labeling rules, the ingredient catalog and training datasets.
//
// # Usage
//
//	riskctl classify "Refined wheat flour, sugar, colour (INS 133)"
//	riskctl rules verify --json
//	riskctl catalog import --db ./catalog.db --from ./catalog.yaml
//	riskctl dataset generate --per-level 200 --out train.xlsx
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.msg != "" {
				fmt.Fprintln(os.Stderr, exit.msg)
			}
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(CLIExitError)
	}
}
