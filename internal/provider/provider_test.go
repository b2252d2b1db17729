// Copyright 2025 James Ross
package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/asyncforge/contentcore/internal/breaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeEmbedIsDeterministic(t *testing.T) {
	f := NewFake()
	a, err := f.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := f.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := f.Embed(context.Background(), "something else")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestRegistryFallsBackWhenLabelUnknown(t *testing.T) {
	fallback := NewFake()
	fallback.ForceComplete = "fallback-response"
	reg := NewRegistry(fallback)

	other := NewFake()
	other.ForceComplete = "openai-response"
	reg.Register("openai", other)

	out, err := reg.Resolve("openai").Complete(context.Background(), "p", CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "openai-response", out)

	out, err = reg.Resolve("unknown-label").Complete(context.Background(), "p", CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "fallback-response", out)
}

func TestGuardedTripsCircuitAfterRepeatedFailures(t *testing.T) {
	inner := NewFake()
	inner.FailComplete = errors.New("upstream down")
	cb := breaker.New(time.Minute, time.Minute, 0.5, 2)
	g := NewGuarded("openai", inner, cb)

	for i := 0; i < 3; i++ {
		_, err := g.Complete(context.Background(), "p", CompletionOptions{})
		assert.Error(t, err)
	}

	_, err := g.Complete(context.Background(), "p", CompletionOptions{})
	var transient *TransientError
	require.ErrorAs(t, err, &transient)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
