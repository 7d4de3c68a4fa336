// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package label_parser turns free ingredient-label text into structured
// entries: a name, parenthesised qualifiers and an optional INS/E code.
//
//	"edible vegetable oil (palmolein), emulsifier (322, 471), colour (INS 133)"
//
// parses to four entries: the oil qualified by "palmolein", two emulsifier
// entries (INS 322 and INS 471) and a colour entry carrying INS 133.
package label_parser

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
)

// ErrEmptyText is returned when the text contains no ingredient entries.
var ErrEmptyText = errors.New("ingredient text is empty")

// Entry is one ingredient as written on a label.
type Entry struct {
	// Raw is the trimmed source segment the entry came from.
	Raw string `json:"raw"`

	// Name is the normalized ingredient name outside any parentheses.
	Name string `json:"name"`

	// Qualifiers are the normalized non-code items found in parentheses.
	Qualifiers []string `json:"qualifiers,omitempty"`

	// AdditiveCode is the INS/E number attached to the entry, if any.
	AdditiveCode risk_labeler.AdditiveCode `json:"additive_code,omitempty"`
}

var (
	prefixRe   = regexp.MustCompile(`(?i)^\s*ingredients?\s*[:\-]\s*`)
	percentRe  = regexp.MustCompile(`\d+(?:[.,]\d+)?\s*%`)
	insRe      = regexp.MustCompile(`(?i)\b(?:ins\s*-?\s*|e-?)(\d{3,4})(?:[a-z]\b|\((?:i|ii|iii|iv|v|vi)\))?`)
	bareRe     = regexp.MustCompile(`(?i)^(\d{3,4})[a-z]?$`)
	trailingRe = regexp.MustCompile(`(?i)\s(\d{3,4})[a-z]?\s*$`)
	romanRe    = regexp.MustCompile(`(?i)^(?:i|ii|iii|iv|v|vi)$`)
	trimSet    = " \t\r\n.:*-_&"
)

// Parse splits label text into entries.
//
// Top-level commas and semicolons separate entries; separators inside
// parentheses or brackets do not. Percentages are discarded. Fragments
// shorter than two characters or made only of digits are dropped. A group
// listing several additive codes yields one entry per code.
//
// Groups nest: "oil (palmolein (antioxidant 319))" qualifies the oil with
// palmolein and yields a separate "antioxidant" entry for INS 319. Inside a
// group a trailing bare number is read as that item's additive code.
func Parse(text string) ([]Entry, error) {
	text = prefixRe.ReplaceAllString(strings.TrimSpace(text), "")
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var entries []Entry
	for _, seg := range splitTopLevel(text) {
		entries = append(entries, parseSegment(seg)...)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyText
	}
	return entries, nil
}

// Names returns just the entry names of text, in order.
func Names(text string) ([]string, error) {
	entries, err := Parse(text)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out, nil
}

func splitTopLevel(text string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range text {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',', ';':
			if depth == 0 {
				parts = append(parts, text[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, text[start:])
}

// splitGroups separates a segment into the text outside brackets and the
// raw contents of each outermost bracketed group. Nested brackets stay in
// the group text.
func splitGroups(seg string) (string, []string) {
	var (
		outside strings.Builder
		groups  []string
		depth   int
		start   int
	)
	for i, r := range seg {
		switch r {
		case '(', '[', '{':
			if depth == 0 {
				start = i + 1
			}
			depth++
			continue
		case ')', ']', '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				groups = append(groups, seg[start:i])
				outside.WriteRune(' ')
			}
			continue
		}
		if depth == 0 {
			outside.WriteRune(r)
		}
	}
	if depth > 0 {
		groups = append(groups, seg[start:])
	}
	return outside.String(), groups
}

// node is one ingredient and everything bracketed under it.
type node struct {
	name       string
	qualifiers []string
	codes      []risk_labeler.AdditiveCode

	// nested holds entries for coded items found in deeper groups.
	nested []Entry
}

func parseNode(seg string, inGroup bool) node {
	outside, groups := splitGroups(seg)
	name, codes := extractCodes(outside, nil)
	if inGroup {
		name, codes = extractTrailingCode(name, codes)
	}
	n := node{name: clean(name), codes: codes}

	for _, g := range groups {
		for _, item := range splitTopLevel(g) {
			if code, ok := bareCode(item); ok {
				n.codes = append(n.codes, code)
				continue
			}
			child := parseNode(item, true)
			switch {
			case !keep(child.name):
				n.codes = append(n.codes, child.codes...)
				n.qualifiers = append(n.qualifiers, child.qualifiers...)
			case len(child.codes) > 0:
				n.nested = append(n.nested, child.entries()...)
			default:
				n.qualifiers = append(n.qualifiers, child.name)
				n.qualifiers = append(n.qualifiers, child.qualifiers...)
			}
			n.nested = append(n.nested, child.nested...)
		}
	}
	return n
}

// entries expands the node into one entry per distinct code, or a single
// uncoded entry. Nested entries are not included.
func (n node) entries() []Entry {
	qualifiers := n.qualifiers
	if len(qualifiers) == 0 {
		qualifiers = nil
	}
	if len(n.codes) == 0 {
		return []Entry{{Name: n.name, Qualifiers: qualifiers}}
	}
	out := make([]Entry, 0, len(n.codes))
	seen := make(map[risk_labeler.AdditiveCode]bool, len(n.codes))
	for _, c := range n.codes {
		if seen[c] {
			continue
		}
		seen[c] = true
		name := n.name
		if name == "" {
			name = risk_labeler.NormalizeName(c.String())
		}
		out = append(out, Entry{Name: name, Qualifiers: qualifiers, AdditiveCode: c})
	}
	return out
}

func parseSegment(seg string) []Entry {
	raw := strings.TrimSpace(seg)
	n := parseNode(percentRe.ReplaceAllString(raw, " "), false)

	var out []Entry
	if !keep(n.name) {
		switch {
		case len(n.codes) > 0:
			n.name = ""
		case len(n.qualifiers) > 0:
			n.name, n.qualifiers = n.qualifiers[0], n.qualifiers[1:]
		}
	}
	if keep(n.name) || len(n.codes) > 0 {
		out = n.entries()
	}
	out = append(out, n.nested...)
	for i := range out {
		out[i].Raw = raw
	}
	return out
}

// extractCodes removes every INS/E reference from s and appends the valid
// codes it found.
func extractCodes(s string, codes []risk_labeler.AdditiveCode) (string, []risk_labeler.AdditiveCode) {
	for _, m := range insRe.FindAllStringSubmatch(s, -1) {
		if code, ok := toCode(m[1]); ok {
			codes = append(codes, code)
		}
	}
	return insRe.ReplaceAllString(s, " "), codes
}

// extractTrailingCode reads "antioxidant 319" as a class name followed by
// its code.
func extractTrailingCode(s string, codes []risk_labeler.AdditiveCode) (string, []risk_labeler.AdditiveCode) {
	m := trailingRe.FindStringSubmatchIndex(s)
	if m == nil {
		return s, codes
	}
	code, ok := toCode(s[m[2]:m[3]])
	if !ok {
		return s, codes
	}
	return s[:m[0]], append(codes, code)
}

func bareCode(item string) (risk_labeler.AdditiveCode, bool) {
	m := bareRe.FindStringSubmatch(strings.TrimSpace(item))
	if m == nil {
		return 0, false
	}
	return toCode(m[1])
}

func toCode(digits string) (risk_labeler.AdditiveCode, bool) {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	code := risk_labeler.AdditiveCode(n)
	return code, code.Present() && code.Valid()
}

func clean(s string) string {
	return risk_labeler.NormalizeName(strings.Trim(strings.TrimSpace(s), trimSet))
}

func keep(s string) bool {
	if len([]rune(s)) < 2 || romanRe.MatchString(s) {
		return false
	}
	return strings.TrimFunc(s, func(r rune) bool { return (r >= '0' && r <= '9') || r == ' ' || r == '.' }) != ""
}
