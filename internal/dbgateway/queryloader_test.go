package dbgateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadGroupJoinsBodyLines(t *testing.T) {
	content := `
-- name: selectFoo
select *
from {SCHEMA}.foo
where id = $1
`
	g, err := loadGroup("g", content)
	require.NoError(t, err)
	require.Equal(t, "select * from {SCHEMA}.foo where id = $1", g.queries["selectFoo"])
}

func TestLoadGroupStripsBlockComments(t *testing.T) {
	content := `
/* this whole
   block is a comment */
-- name: selectBar
select 1
`
	g, err := loadGroup("g", content)
	require.NoError(t, err)
	require.Equal(t, "select 1", g.queries["selectBar"])
}

func TestLoadGroupConsecutiveTagsIsFatal(t *testing.T) {
	content := `
-- name: a
-- name: b
select 1
`
	_, err := loadGroup("g", content)
	require.Error(t, err)
}

func TestLoadGroupBodyWithoutTagIsFatal(t *testing.T) {
	content := `select 1`
	_, err := loadGroup("g", content)
	require.Error(t, err)
}

func TestLoadGroupPreservesInsertionOrder(t *testing.T) {
	content := `
-- name: first
select 1
-- name: second
select 2
-- name: third
select 3
`
	g, err := loadGroup("g", content)
	require.NoError(t, err)
	ordered := g.ordered()
	require.Len(t, ordered, 3)
	require.Equal(t, "first", ordered[0].Name)
	require.Equal(t, "second", ordered[1].Name)
	require.Equal(t, "third", ordered[2].Name)
}

func TestNamedQueriesDuplicateGroupIsFatal(t *testing.T) {
	n := newNamedQueries()
	_, err := n.addGroup("create")
	require.NoError(t, err)
	_, err = n.addGroup("create")
	require.Error(t, err)
}

func TestSubstituteSchemaReplacesPlaceholder(t *testing.T) {
	n := newNamedQueries()
	g, err := n.addGroup("g")
	require.NoError(t, err)
	g.add("q", "select * from {SCHEMA}.foo")
	n.substituteSchema("telescope")
	require.Equal(t, "select * from telescope.foo", g.queries["q"])
}

func TestLoadQueriesFromEmbeddedFiles(t *testing.T) {
	n, err := loadQueries("telescope")
	require.NoError(t, err)

	_, ok := n.group("create")
	require.True(t, ok, "expected embedded \"create\" group")
	_, ok = n.group("shared")
	require.True(t, ok, "expected embedded \"shared\" group")
	_, ok = n.group("bootstrap")
	require.True(t, ok, "expected embedded \"bootstrap\" group")

	createGroup, _ := n.group("create")
	require.Equal(t, "createBlocks", createGroup.names[0])
}
