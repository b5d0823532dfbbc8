package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ripple-dev/ripple/pkg/ripple"
	"github.com/ripple-dev/ripple/pkg/telemetry"
)

// Traced should run the function with a span context and hand its error
// back unchanged.
func TestTracedPassesThrough(t *testing.T) {
	tr := telemetry.NewTracer(telemetry.WithTracerName("test"))

	calls := 0
	err := tr.Traced(context.Background(), "op", func(ctx context.Context) error {
		require.NotNil(t, ctx)
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	err = tr.Traced(context.Background(), "op", func(context.Context) error {
		return boom
	})
	assert.Equal(t, boom, err)
}

// A filtered-out operation should still run, but without attribute
// extraction.
func TestTracedFilter(t *testing.T) {
	extracted := 0
	tr := telemetry.NewTracer(
		telemetry.WithTracerName("test"),
		telemetry.WithTraceFilter(func(name string) bool { return name != "skip" }),
		telemetry.WithTraceAttributes(func(name string) []attribute.KeyValue {
			extracted++
			return []attribute.KeyValue{attribute.String("test.op", name)}
		}),
	)

	ran := 0
	require.NoError(t, tr.Traced(context.Background(), "skip", func(context.Context) error {
		ran++
		return nil
	}))
	assert.Equal(t, 1, ran)
	assert.Equal(t, 0, extracted)

	require.NoError(t, tr.Traced(context.Background(), "keep", func(context.Context) error {
		ran++
		return nil
	}))
	assert.Equal(t, 2, ran)
	assert.Equal(t, 1, extracted)
}

// TracedBatch should coalesce the writes into one notification per
// listener.
func TestTracedBatchCoalescesWrites(t *testing.T) {
	tr := telemetry.NewTracer(telemetry.WithTracerName("test"))

	a := ripple.New(0)
	b := ripple.New(0)
	notifications := 0
	offA := a.On(func() { notifications++ })
	defer offA()
	offB := b.On(func() { notifications++ })
	defer offB()

	err := tr.TracedBatch(context.Background(), "update", func() error {
		a.Set(1)
		a.Set(2)
		b.Set(3)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, notifications)
	v, ok := a.Value()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

// TracedBatch should propagate the function's error.
func TestTracedBatchError(t *testing.T) {
	tr := telemetry.NewTracer(telemetry.WithTracerName("test"))

	boom := errors.New("boom")
	err := tr.TracedBatch(context.Background(), "update", func() error { return boom })
	assert.Equal(t, boom, err)
}
