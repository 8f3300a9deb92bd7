package dbgateway

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/fanatid/telescope/internal/errs"
)

// namedQueries is group -> ordered (name, query) pairs. Order within a group
// is insertion order, which matters for the "create" group (DDL runs in
// declaration order).
type namedQueries struct {
	groups map[string]*queryGroup
	order  []string // group names, in first-seen order
}

type queryGroup struct {
	names   []string
	queries map[string]string
}

func newNamedQueries() *namedQueries {
	return &namedQueries{groups: map[string]*queryGroup{}}
}

func (n *namedQueries) group(name string) (*queryGroup, bool) {
	g, ok := n.groups[name]
	return g, ok
}

func (n *namedQueries) addGroup(name string) (*queryGroup, error) {
	if _, exists := n.groups[name]; exists {
		return nil, errs.New(errs.KindConfiguration, "duplicate query group %q", name)
	}
	g := &queryGroup{queries: map[string]string{}}
	n.groups[name] = g
	n.order = append(n.order, name)
	return g, nil
}

func (g *queryGroup) add(name, query string) {
	if _, exists := g.queries[name]; !exists {
		g.names = append(g.names, name)
	}
	g.queries[name] = query
}

// ordered returns (name, query) pairs in insertion order.
func (g *queryGroup) ordered() []struct{ Name, Query string } {
	out := make([]struct{ Name, Query string }, len(g.names))
	for i, name := range g.names {
		out[i] = struct{ Name, Query string }{name, g.queries[name]}
	}
	return out
}

var nameTagRE = regexp.MustCompile(`^\s*--\s*name\s*:\s*(.+?)\s*$`)

// loadGroup parses one SQL file's content into a queryGroup. Multi-line
// /* ... */ comments are stripped first; "-- name: foo" starts a new query;
// consecutive non-empty, non-tag lines are joined with single spaces.
func loadGroup(groupName, content string) (*queryGroup, error) {
	content = stripBlockComments(content)

	g := &queryGroup{queries: map[string]string{}}
	var currentName string
	var currentBody []string
	haveTag := false

	flush := func() error {
		if !haveTag {
			return nil
		}
		body := strings.TrimSpace(strings.Join(currentBody, " "))
		if body == "" {
			return errs.New(errs.KindConfiguration, "query tag %q in group %q has no body", currentName, groupName)
		}
		g.add(currentName, body)
		return nil
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if m := nameTagRE.FindStringSubmatch(line); m != nil {
			if haveTag && len(currentBody) == 0 {
				return nil, errs.New(errs.KindConfiguration, "two consecutive name tags in group %q (%q then %q)", groupName, currentName, m[1])
			}
			if err := flush(); err != nil {
				return nil, err
			}
			currentName = m[1]
			currentBody = nil
			haveTag = true
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !haveTag {
			return nil, errs.New(errs.KindConfiguration, "query body with no preceding name tag in group %q: %q", groupName, trimmed)
		}
		currentBody = append(currentBody, trimmed)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, err, "scanning group %q", groupName)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return g, nil
}

var blockCommentRE = regexp.MustCompile(`(?s)/\*.*?\*/`)

func stripBlockComments(s string) string {
	return blockCommentRE.ReplaceAllString(s, "")
}

// substituteSchema replaces the literal "{SCHEMA}" placeholder in every
// query of every group with the configured schema identifier.
func (n *namedQueries) substituteSchema(schema string) {
	for _, g := range n.groups {
		for name, q := range g.queries {
			g.queries[name] = strings.ReplaceAll(q, "{SCHEMA}", schema)
		}
	}
}

func (n *namedQueries) mustQuery(group, name string) string {
	g, ok := n.groups[group]
	if !ok {
		panic(fmt.Sprintf("dbgateway: unknown query group %q", group))
	}
	q, ok := g.queries[name]
	if !ok {
		panic(fmt.Sprintf("dbgateway: unknown query %q in group %q", name, group))
	}
	return q
}
