// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package enforcement bakes the labeling rules file into the binary so the rules a
deployed classifier applies can be fingerprinted and cannot drift from the build.
*/
package enforcement

import (
	_ "embed"
)

// LabelingRules holds the raw bytes of labeling_rules.yaml.
//
// Usage:
//
//	rules, err := risk_labeler.LoadRules(enforcement.LabelingRules)
//
//go:embed labeling_rules.yaml
var LabelingRules []byte
