// Package routing maps product codes to key pools and notification
// templates. The table is built once from configuration at startup and is
// read-only afterward.
package routing

import (
	"fmt"
	"path"

	"github.com/footbar/fulfillment/internal/config"
)

// Rule is one resolved route: which pool serves a sku and which email
// template announces the key.
type Rule struct {
	Pool     string
	Template string
}

// Table resolves skus to rules. Exact entries win over patterns; patterns
// are tried in declared order and the first match is used.
type Table struct {
	exact    map[string]Rule
	patterns []patternRule
}

type patternRule struct {
	pattern string
	rule    Rule
}

// New builds a Table from route configuration. Patterns use shell-style
// wildcards ("METEOR-*"); malformed patterns are rejected here rather
// than at lookup time.
func New(routes []config.RouteConfig) (*Table, error) {
	t := &Table{exact: make(map[string]Rule)}
	for i, r := range routes {
		rule := Rule{Pool: r.Pool, Template: r.Template}
		if r.Sku != "" {
			if _, dup := t.exact[r.Sku]; dup {
				return nil, fmt.Errorf("route %d: duplicate sku %q", i, r.Sku)
			}
			t.exact[r.Sku] = rule
			continue
		}
		if _, err := path.Match(r.Pattern, ""); err != nil {
			return nil, fmt.Errorf("route %d: bad pattern %q: %w", i, r.Pattern, err)
		}
		t.patterns = append(t.patterns, patternRule{pattern: r.Pattern, rule: rule})
	}
	return t, nil
}

// Resolve returns the rule for a sku. Exact match first, then the first
// matching pattern in declared order. ok is false when no rule applies;
// the caller records the sku as skipped and moves on.
func (t *Table) Resolve(sku string) (Rule, bool) {
	if rule, ok := t.exact[sku]; ok {
		return rule, true
	}
	for _, p := range t.patterns {
		if matched, _ := path.Match(p.pattern, sku); matched {
			return p.rule, true
		}
	}
	return Rule{}, false
}
