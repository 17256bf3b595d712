package walker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/topograph/internal/eventbus"
	"github.com/hanpama/topograph/internal/events"
)

func TestSpawn_PublishesTraversalEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	var starts []events.SpawnStart
	var visits []events.VisitFinish
	var finishes []events.SpawnFinish
	defer eventbus.Subscribe(func(ctx context.Context, e events.SpawnStart) { starts = append(starts, e) })()
	defer eventbus.Subscribe(func(ctx context.Context, e events.VisitFinish) { visits = append(visits, e) })()
	defer eventbus.Subscribe(func(ctx context.Context, e events.SpawnFinish) { finishes = append(finishes, e) })()

	f := newFx(t, "1>2", "1>3")
	f.collectInto(t, -1, false)
	_, err := f.eng.Spawn(context.Background(), f.ids["1"], "Collector", nil, nil)
	require.NoError(t, err)

	require.Len(t, starts, 1)
	require.Equal(t, "Collector", starts[0].WalkerType)
	require.Equal(t, uint64(f.ids["1"]), starts[0].Origin)

	require.Len(t, visits, 3)
	for _, v := range visits {
		require.Equal(t, "Spot", v.LocationType)
		require.Equal(t, 1, v.Abilities)
	}

	require.Len(t, finishes, 1)
	require.Equal(t, string(StatusCompleted), finishes[0].Status)
	require.Equal(t, 3, finishes[0].Reports)
	require.NoError(t, finishes[0].Err)
}
