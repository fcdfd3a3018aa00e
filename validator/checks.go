package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dolthub/vitess/go/vt/sqlparser"
)

// tableMatchCutoff/columnMatchCutoff mirror the original system's
// difflib.get_close_matches cutoffs (0.5 for tables, 0.4 for columns): below
// these ratios a candidate is not considered a plausible typo.
const (
	tableMatchCutoff  = 0.5
	columnMatchCutoff = 0.4
	maxSuggestions    = 3
)

func (v *Validator) checkTables(tablesUsed []string) []string {
	valid := v.reg.GetValidTables()
	validSet := toSet(valid)

	var errs []string
	for _, t := range tablesUsed {
		if _, ok := validSet[strings.ToLower(t)]; ok {
			continue
		}
		if _, ok := validSet[t]; ok {
			continue
		}

		suggestions := closeMatches(t, valid, tableMatchCutoff, maxSuggestions)
		if len(suggestions) == 0 && len(valid) > 0 {
			n := 5
			if len(valid) < n {
				n = len(valid)
			}
			suggestions = append([]string(nil), valid[:n]...)
		}

		msg := fmt.Sprintf("table %q does not exist in the schema", t)
		if len(suggestions) > 0 {
			msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(suggestions, ", "))
		}
		errs = append(errs, msg)
	}

	return errs
}

func toSet(ss []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		m[strings.ToLower(s)] = struct{}{}
		m[s] = struct{}{}
	}
	return m
}

func (v *Validator) checkColumns(stmt sqlparser.SelectStatement, tablesUsed []string, aliases map[string]struct{}) []string {
	valid := map[string]struct{}{}
	var validList []string
	for _, t := range tablesUsed {
		for _, c := range v.reg.GetValidColumns(t) {
			key := strings.ToLower(c)
			if _, ok := valid[key]; !ok {
				valid[key] = struct{}{}
				validList = append(validList, c)
			}
		}
	}
	sort.Strings(validList)

	var errs []string
	seen := map[string]struct{}{}

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		col, ok := node.(*sqlparser.ColName)
		if !ok {
			return true, nil
		}

		name := col.Name.String()
		if name == "*" || name == "" {
			return true, nil
		}
		if _, isAlias := aliases[name]; isAlias {
			return true, nil
		}
		if _, already := seen[name]; already {
			return true, nil
		}
		seen[name] = struct{}{}

		if _, ok := valid[strings.ToLower(name)]; ok {
			return true, nil
		}
		if len(validList) == 0 {
			// No column schema known for the referenced tables (e.g. table check
			// already failed); don't pile on with column errors too.
			return true, nil
		}

		suggestions := closeMatches(name, validList, columnMatchCutoff, maxSuggestions)
		for i, s := range suggestions {
			if needsQuoting(s) {
				suggestions[i] = `"` + s + `"`
			}
		}

		msg := fmt.Sprintf("column %q does not exist in the referenced tables", name)
		if len(suggestions) > 0 {
			msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(suggestions, ", "))
		}
		errs = append(errs, msg)

		return true, nil
	}, stmt)

	return errs
}

func needsQuoting(identifier string) bool {
	return strings.ContainsAny(identifier, "- ")
}

var limitRe = regexp.MustCompile(`(?is)\blimit\s+\d+\s*$`)

// enforceLimit rewrites sql so that it always carries a LIMIT clause no
// greater than MaxLimit, appending DefaultLimit if none was present.
func (v *Validator) enforceLimit(sql string, stmt sqlparser.SelectStatement) (corrected string, warning string) {
	if sel, ok := stmt.(*sqlparser.Select); ok && sel.Limit != nil && sel.Limit.Rowcount != nil {
		if lit, ok := sel.Limit.Rowcount.(*sqlparser.Literal); ok {
			if n, err := strconv.Atoi(string(lit.Val)); err == nil {
				if n > v.cfg.MaxLimit {
					replaced := limitRe.ReplaceAllString(strings.TrimRight(sql, "; \n\t"),
						fmt.Sprintf("LIMIT %d", v.cfg.MaxLimit))
					if !limitRe.MatchString(strings.TrimRight(sql, "; \n\t")) {
						replaced = fmt.Sprintf("%s LIMIT %d", strings.TrimRight(sql, "; \n\t"), v.cfg.MaxLimit)
					}
					return replaced, fmt.Sprintf("requested limit %d exceeded maximum %d; capped", n, v.cfg.MaxLimit)
				}
				return sql, ""
			}
		}
		return sql, ""
	}

	// No LIMIT present at all (plain Select with nil Limit, or a Union where
	// per-branch LIMIT handling does not apply): append the default.
	trimmed := strings.TrimRight(sql, "; \n\t")
	return fmt.Sprintf("%s LIMIT %d", trimmed, v.cfg.DefaultLimit), fmt.Sprintf("no LIMIT clause present; defaulted to %d", v.cfg.DefaultLimit)
}
