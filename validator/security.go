package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dolthub/vitess/go/vt/sqlparser"
)

var dangerousWordRe = regexp.MustCompile(`(?i)\b(` + strings.Join(dangerousKeywords, "|") + `)\b`)

// checkSecurity rejects anything that is not structurally a read-only
// statement, using both the parsed statement type and, as defense-in-depth
// for constructs the parser represents loosely, a keyword scan over the raw text.
func checkSecurity(raw string, stmt sqlparser.Statement) []string {
	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union, *sqlparser.ParenSelect, *sqlparser.With:
		// structurally a read; fall through to the keyword scan for smuggled sub-statements.
	default:
		return []string{fmt.Sprintf("statement type %T is not allowed, only SELECT queries are permitted", stmt)}
	}

	if m := dangerousWordRe.FindString(raw); m != "" {
		return []string{fmt.Sprintf("query contains disallowed keyword %q", strings.ToUpper(m))}
	}

	return nil
}

// selectLike is satisfied by every AST node checkSelectOnly accepts as a
// read-only query: a plain SELECT, a set operation over SELECTs, or either
// wrapped in parentheses/a WITH clause.
type selectLike interface {
	sqlparser.SelectStatement
}

// checkSelectOnly unwraps CTEs and parens down to the underlying
// SelectStatement (Select or Union), rejecting anything else.
func checkSelectOnly(stmt sqlparser.Statement) (sqlparser.SelectStatement, []string) {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		return s, nil
	case *sqlparser.Union:
		return s, nil
	case *sqlparser.ParenSelect:
		return checkSelectOnly(s.Select)
	case *sqlparser.With:
		return checkSelectOnly(s.Select)
	default:
		return nil, []string{fmt.Sprintf("statement type %T is not allowed, only SELECT queries are permitted", stmt)}
	}
}

// extractTablesAndAliases walks the AST collecting every referenced table
// name and every column alias introduced by the query (SELECT ... AS alias),
// the latter used later to exclude computed-column aliases from the
// "column must exist in schema" check.
func extractTablesAndAliases(stmt sqlparser.SelectStatement) (tables []string, aliases map[string]struct{}) {
	seenTables := map[string]struct{}{}
	aliases = map[string]struct{}{}

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case sqlparser.TableName:
			if n.Name.String() != "" {
				if _, ok := seenTables[n.Name.String()]; !ok {
					seenTables[n.Name.String()] = struct{}{}
					tables = append(tables, n.Name.String())
				}
			}
		case *sqlparser.AliasedExpr:
			if !n.As.IsEmpty() {
				aliases[n.As.String()] = struct{}{}
			}
		}
		return true, nil
	}, stmt)

	return tables, aliases
}
