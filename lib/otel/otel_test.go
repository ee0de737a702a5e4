package otel

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabled(t *testing.T) {
	provider, shutdown, err := Init(context.Background(), Config{Enabled: false, ServiceName: "devattach"})
	require.NoError(t, err)
	require.NotNil(t, provider)

	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.LogHandler)
	assert.NotNil(t, provider.TracerFor("attach"))
	assert.NotNil(t, provider.MeterFor("attach"))

	require.NoError(t, shutdown(context.Background()))
}

func TestShutdownStackOrder(t *testing.T) {
	var order []string
	var stack shutdownStack
	stack.push(func(context.Context) error { order = append(order, "first"); return nil })
	stack.push(wrapShutdown("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("boom")
	}))

	err := stack.shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown second: boom")
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestGlobalLogHandler(t *testing.T) {
	prev := GetGlobalLogHandler()
	t.Cleanup(func() { SetGlobalLogHandler(prev) })

	h := slog.NewTextHandler(nil, nil)
	SetGlobalLogHandler(h)
	assert.Same(t, h, GetGlobalLogHandler())
}

func TestGoVersion(t *testing.T) {
	assert.NotEmpty(t, GoVersion())
}
