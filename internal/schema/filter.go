// Package schema exports plain-SQL schema dumps and strips statement
// categories the caller opted out of.
package schema

import (
	"regexp"
	"strings"
)

// FilterOptions selects which statement categories survive filtering. All
// flags default to true via AllIncluded; the filter only removes, never adds.
type FilterOptions struct {
	IncludeComments    bool `json:"includeComments"`
	IncludeIndexes     bool `json:"includeIndexes"`
	IncludeConstraints bool `json:"includeConstraints"`
	IncludeTriggers    bool `json:"includeTriggers"`
	IncludeSequences   bool `json:"includeSequences"`
	IncludeTypes       bool `json:"includeTypes"`
	IncludeFunctions   bool `json:"includeFunctions"`
	IncludeViews       bool `json:"includeViews"`
}

// AllIncluded returns options that keep every category.
func AllIncluded() FilterOptions {
	return FilterOptions{
		IncludeComments:    true,
		IncludeIndexes:     true,
		IncludeConstraints: true,
		IncludeTriggers:    true,
		IncludeSequences:   true,
		IncludeTypes:       true,
		IncludeFunctions:   true,
		IncludeViews:       true,
	}
}

// filterState tracks statement boundaries across lines. Function bodies get
// their own state because dollar-quoted bodies contain inner semicolons that
// must not terminate the statement.
type filterState int

const (
	stateIdle filterState = iota
	stateInStatement
	stateInFunctionBody
)

// dollarTagRe matches a dollar-quote delimiter like $$ or $body$.
var dollarTagRe = regexp.MustCompile(`\$[A-Za-z0-9_]*\$`)

// Filter removes whole statements belonging to disabled categories from a
// plain-text schema dump. It returns the filtered text and the number of
// statements removed. With all categories enabled the input passes through
// unchanged.
//
// pg_dump has no per-category exclusion flags for most of these object
// kinds; this filter compensates after the fact.
func Filter(input string, opts FilterOptions) (string, int) {
	if opts == AllIncluded() {
		return input, 0
	}

	lines := strings.Split(input, "\n")
	out := make([]string, 0, len(lines))
	excluded := 0

	state := stateIdle
	var stmt []string // accumulated lines of the current statement
	parenDepth := 0
	dollarTag := ""     // open function-body delimiter, "" when none
	seenDollar := false // the body used dollar quoting at least once

	flush := func() {
		if dropStatement(strings.Join(stmt, "\n"), opts) {
			excluded++
		} else {
			out = append(out, stmt...)
		}
		stmt = stmt[:0]
		state = stateIdle
		parenDepth = 0
		dollarTag = ""
		seenDollar = false
	}

	// functionLine advances the dollar-quote tracking for one line of a
	// function/procedure statement. Inside the body a bare ";" does not
	// terminate; only after the closing delimiter does a trailing ";" end the
	// statement. Single-quoted bodies (no dollar quoting) end on "';".
	functionLine := func(trimmed, line string) {
		tag, closed := scanDollarQuotes(line, dollarTag)
		if tag != "" || closed {
			seenDollar = true
		}
		dollarTag = tag
		switch {
		case closed && dollarTag == "" && strings.HasSuffix(trimmed, ";"):
			flush()
		case !seenDollar && strings.HasSuffix(trimmed, "';"):
			flush()
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch state {
		case stateIdle:
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				out = append(out, line)
				continue
			}
			stmt = append(stmt, line)
			if isFunctionStart(trimmed) {
				state = stateInFunctionBody
				functionLine(trimmed, line)
				continue
			}
			parenDepth = strings.Count(line, "(") - strings.Count(line, ")")
			if strings.HasSuffix(trimmed, ";") && parenDepth <= 0 {
				flush()
			} else {
				state = stateInStatement
			}

		case stateInStatement:
			stmt = append(stmt, line)
			parenDepth += strings.Count(line, "(") - strings.Count(line, ")")
			if strings.HasSuffix(trimmed, ";") && parenDepth <= 0 {
				flush()
			}

		case stateInFunctionBody:
			stmt = append(stmt, line)
			functionLine(trimmed, line)
		}
	}
	// unterminated trailing statement: keep boundary behavior conservative
	if len(stmt) > 0 {
		flush()
	}

	return strings.Join(out, "\n"), excluded
}

// scanDollarQuotes walks the dollar-quote delimiters on one line. openTag is
// the currently open delimiter ("" if none). It returns the delimiter still
// open after the line and whether a close happened on this line.
func scanDollarQuotes(line, openTag string) (string, bool) {
	closedAny := false
	rest := line
	for {
		if openTag == "" {
			loc := dollarTagRe.FindStringIndex(rest)
			if loc == nil {
				return "", closedAny
			}
			openTag = rest[loc[0]:loc[1]]
			rest = rest[loc[1]:]
			continue
		}
		i := strings.Index(rest, openTag)
		if i < 0 {
			return openTag, closedAny
		}
		rest = rest[i+len(openTag):]
		openTag = ""
		closedAny = true
	}
}

func isFunctionStart(trimmed string) bool {
	up := strings.ToUpper(trimmed)
	for _, p := range []string{
		"CREATE FUNCTION",
		"CREATE OR REPLACE FUNCTION",
		"CREATE PROCEDURE",
		"CREATE OR REPLACE PROCEDURE",
	} {
		if strings.HasPrefix(up, p) {
			return true
		}
	}
	return false
}

// dropStatement decides whether a complete statement belongs to a disabled
// category. Prefix checks run against the first line; FOREIGN KEY and
// setval( are matched anywhere because pg_dump splits those across lines.
func dropStatement(stmt string, opts FilterOptions) bool {
	head := strings.ToUpper(strings.TrimSpace(strings.SplitN(stmt, "\n", 2)[0]))
	up := strings.ToUpper(stmt)

	switch {
	case strings.HasPrefix(head, "COMMENT ON"):
		return !opts.IncludeComments
	case strings.HasPrefix(head, "CREATE INDEX"), strings.HasPrefix(head, "CREATE UNIQUE INDEX"):
		return !opts.IncludeIndexes
	case strings.HasPrefix(head, "CREATE SEQUENCE"), strings.HasPrefix(head, "ALTER SEQUENCE"):
		return !opts.IncludeSequences
	case strings.HasPrefix(head, "CREATE TYPE"):
		return !opts.IncludeTypes
	case isFunctionStart(head):
		return !opts.IncludeFunctions
	case strings.HasPrefix(head, "CREATE VIEW"), strings.HasPrefix(head, "CREATE OR REPLACE VIEW"):
		return !opts.IncludeViews
	case strings.HasPrefix(head, "CREATE TRIGGER"):
		return !opts.IncludeTriggers
	}

	if strings.HasPrefix(head, "ALTER TABLE") && strings.Contains(up, "ADD CONSTRAINT") {
		return !opts.IncludeConstraints
	}
	if strings.Contains(up, "FOREIGN KEY") {
		return !opts.IncludeConstraints
	}
	if strings.Contains(stmt, "setval(") {
		return !opts.IncludeSequences
	}
	return false
}
