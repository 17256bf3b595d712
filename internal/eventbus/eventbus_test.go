package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ N int }
type pong struct{ N int }

func TestPublishRoutesByType(t *testing.T) {
	Use(New())
	defer Use(nil)

	var pings, pongs []int
	defer Subscribe(func(_ context.Context, e ping) { pings = append(pings, e.N) })()
	defer Subscribe(func(_ context.Context, e pong) { pongs = append(pongs, e.N) })()

	ctx := context.Background()
	Publish(ctx, ping{1})
	Publish(ctx, pong{2})
	Publish(ctx, ping{3})

	require.Equal(t, []int{1, 3}, pings)
	require.Equal(t, []int{2}, pongs)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	Use(New())
	defer Use(nil)

	var got int
	unsubscribe := Subscribe(func(_ context.Context, e ping) { got += e.N })

	ctx := context.Background()
	Publish(ctx, ping{1})
	unsubscribe()
	Publish(ctx, ping{1})
	require.Equal(t, 1, got)
}

func TestNoBusIsANoOp(t *testing.T) {
	Use(nil)
	unsubscribe := Subscribe(func(context.Context, ping) { t.Fatal("handler ran without a bus") })
	Publish(context.Background(), ping{1})
	unsubscribe()
}
