package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	eventbus "github.com/hanpama/topograph/internal/eventbus"
	events "github.com/hanpama/topograph/internal/events"
	walkid "github.com/hanpama/topograph/internal/walkid"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := &subscriber{tracer: otel.Tracer("topograph")}
	sub.register()

	return tp.Shutdown, nil
}

type subscriber struct {
	tracer     trace.Tracer
	spawnSpans sync.Map // walker id -> trace.Span
	visitSpans sync.Map // walker id -> trace.Span (visits are sequential per walker)
	checkpoint sync.Map // struct{}{} -> trace.Span
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.SpawnStart) {
		wid, _ := walkid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "walker.spawn")
		span.SetAttributes(
			attribute.String("walker.type", e.WalkerType),
			attribute.Int64("walker.origin", int64(e.Origin)),
			attribute.String("walker.id", wid.String()),
		)
		s.spawnSpans.Store(wid, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.SpawnFinish) {
		wid, _ := walkid.FromContext(ctx)
		v, ok := s.spawnSpans.LoadAndDelete(wid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(
			attribute.String("walker.status", e.Status),
			attribute.Int("walker.reports", e.Reports),
		)
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.VisitStart) {
		wid, _ := walkid.FromContext(ctx)
		parent := ctx
		if v, ok := s.spawnSpans.Load(wid); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "walker.visit")
		span.SetAttributes(
			attribute.String("location.type", e.LocationType),
			attribute.Int64("location.node", int64(e.Node)),
			attribute.Int64("location.edge", int64(e.Edge)),
		)
		s.visitSpans.Store(wid, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.VisitFinish) {
		wid, _ := walkid.FromContext(ctx)
		v, ok := s.visitSpans.LoadAndDelete(wid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("visit.abilities", e.Abilities))
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.CheckpointStart) {
		_, span := s.tracer.Start(ctx, "graph.checkpoint")
		s.checkpoint.Store(struct{}{}, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.CheckpointFinish) {
		v, ok := s.checkpoint.LoadAndDelete(struct{}{})
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(
			attribute.Int("checkpoint.nodes", e.Nodes),
			attribute.Int("checkpoint.edges", e.Edges),
			attribute.Int("checkpoint.reclaimed_nodes", e.ReclaimedNodes),
			attribute.Int("checkpoint.reclaimed_edges", e.ReclaimedEdges),
		)
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})
}
