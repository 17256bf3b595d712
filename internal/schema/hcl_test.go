package schema

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestLoadDir_Valid(t *testing.T) {
	reg, err := LoadDir(filepath.Join("testdata", "valid"))
	require.NoError(t, err)

	item := reg.GetType("Item")
	require.NotNil(t, item)
	require.Equal(t, KindNode, item.Kind)
	require.Equal(t, "Anything a root can own", item.Description)

	prio := reg.FieldDef("Item", "priority")
	require.NotNil(t, prio)
	require.Equal(t, cty.Number, prio.Type)
	require.True(t, prio.Default.Equals(cty.NumberIntVal(0)).True())

	task := reg.GetType("Task")
	require.Equal(t, "Item", task.Extends)
	require.True(t, reg.FieldDef("Task", "done").Default.False())
	require.Len(t, task.Abilities, 1)
	require.Equal(t, DirExit, task.Abilities[0].Direction)
	require.Equal(t, TriggerAny, task.Abilities[0].Trigger.Mode)

	owns := reg.GetType("Owns")
	require.Equal(t, KindEdge, owns.Kind)
	require.Equal(t, []string{"Root"}, owns.From)
	require.Equal(t, []string{"Item"}, owns.To)

	auditor := reg.GetType("Auditor")
	require.Equal(t, KindWalker, auditor.Kind)
	require.Equal(t, Trigger{Mode: TriggerUnion, Types: []string{"Item"}}, auditor.Abilities[0].Trigger)
	require.Equal(t, Trigger{Mode: TriggerAll, Types: []string{"Auditor", "Task"}}, auditor.Abilities[1].Trigger)
}

func TestLoadDir_Errors(t *testing.T) {
	_, err := LoadDir(filepath.Join("testdata", "nope"))
	require.ErrorContains(t, err, "reading declaration dir")

	_, err = LoadDir(t.TempDir())
	require.ErrorContains(t, err, "no .hcl declaration files")

	_, err = LoadDir(filepath.Join("testdata", "bad_syntax"))
	require.ErrorContains(t, err, "parsing")

	_, err = LoadDir(filepath.Join("testdata", "bad_fieldtype"))
	require.ErrorContains(t, err, "simple keyword")

	_, err = LoadDir(filepath.Join("testdata", "bad_direction"))
	require.ErrorContains(t, err, `direction must be "entry" or "exit"`)

	_, err = LoadDir(filepath.Join("testdata", "bad_ref"))
	require.ErrorContains(t, err, "extends unknown type")
}
