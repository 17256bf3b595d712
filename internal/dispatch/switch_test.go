package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSwitch(t *testing.T) {
	reg := dispatchRegistry(t)
	ctx := context.Background()

	var ran []string
	branch := func(name string) func(context.Context) error {
		return func(context.Context) error {
			ran = append(ran, name)
			return nil
		}
	}

	// Branches are tried in order; the first conforming one wins, so a
	// supertype branch ahead of the exact type shadows it.
	cases := []Case{
		{Type: "Item", Run: branch("item")},
		{Type: "Task", Run: branch("task")},
	}
	require.NoError(t, Switch(ctx, reg, "Task", cases, branch("default")))
	require.Equal(t, []string{"item"}, ran)

	ran = nil
	require.NoError(t, Switch(ctx, reg, "City", cases, branch("default")))
	require.Equal(t, []string{"default"}, ran)

	// No match, no default: a no-op.
	ran = nil
	require.NoError(t, Switch(ctx, reg, "City", cases, nil))
	require.Empty(t, ran)

	boom := errors.New("boom")
	err := Switch(ctx, reg, "Task", []Case{
		{Type: "Task", Run: func(context.Context) error { return boom }},
	}, nil)
	require.ErrorIs(t, err, boom)
}
