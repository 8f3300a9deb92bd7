package dbgateway

import (
	"embed"
	"strings"

	"github.com/fanatid/telescope/internal/errs"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// loadQueries reads every sql/<group>.sql file into a namedQueries set and
// substitutes the schema placeholder.
func loadQueries(schema string) (*namedQueries, error) {
	entries, err := sqlFiles.ReadDir("sql")
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, err, "reading embedded sql directory")
	}

	n := newNamedQueries()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		groupName := strings.TrimSuffix(name, ".sql")
		content, err := sqlFiles.ReadFile("sql/" + name)
		if err != nil {
			return nil, errs.Wrap(errs.KindConfiguration, err, "reading sql/%s", name)
		}
		g, err := loadGroup(groupName, string(content))
		if err != nil {
			return nil, err
		}
		if _, exists := n.groups[groupName]; exists {
			return nil, errs.New(errs.KindConfiguration, "duplicate query group %q", groupName)
		}
		n.groups[groupName] = g
		n.order = append(n.order, groupName)
	}

	n.substituteSchema(schema)
	return n, nil
}
