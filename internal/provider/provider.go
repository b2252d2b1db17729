// Copyright 2025 James Ross
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/asyncforge/contentcore/internal/breaker"
	"github.com/asyncforge/contentcore/internal/obs"
)

// CompletionOptions parameterizes a Complete call. Workers name the model
// family they want; the provider implements the mapping (spec.md §9
// "Duck-typed LLM provider").
type CompletionOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Capability is the opaque LLM/embedding surface workers depend on. The
// concrete client implementations (OpenAI/Anthropic/Gemini wire protocols)
// are explicitly out of scope (spec.md §1 Non-goals): this package defines
// only the interface workers call through, plus the reliability wrapper
// every concrete implementation is expected to sit behind.
type Capability interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// TransientError marks a failure the broker should retry with backoff
// (spec.md §7 "External-provider transient").
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("provider %s: transient: %v", e.Provider, e.Err)
}
func (e *TransientError) Unwrap() error { return e.Err }

// DeterministicError marks a structured response that could not be parsed:
// the worker must fall back to its rule-based path rather than retry
// (spec.md §7 "External-provider deterministic").
type DeterministicError struct {
	Provider string
	Err      error
}

func (e *DeterministicError) Error() string {
	return fmt.Sprintf("provider %s: deterministic: %v", e.Provider, e.Err)
}
func (e *DeterministicError) Unwrap() error { return e.Err }

// ErrCircuitOpen is returned by a Guarded capability when its breaker has
// tripped; callers treat it as a TransientError.
var ErrCircuitOpen = errors.New("provider circuit open")

// Registry resolves a provider label (openai|anthropic|gemini, per
// spec.md §9) to the Capability a worker should call. Workers never import
// a concrete provider package directly.
type Registry struct {
	capabilities map[string]Capability
	fallback     Capability
}

func NewRegistry(fallback Capability) *Registry {
	return &Registry{capabilities: make(map[string]Capability), fallback: fallback}
}

func (r *Registry) Register(label string, c Capability) {
	r.capabilities[label] = c
}

func (r *Registry) Resolve(label string) Capability {
	if c, ok := r.capabilities[label]; ok {
		return c
	}
	return r.fallback
}

// Guarded wraps a Capability with a circuit breaker (internal/breaker),
// so repeated provider failures fail fast instead of piling up retries
// against an unreachable upstream. Grounded on the teacher's worker.go use
// of breaker.CircuitBreaker to gate dequeue under load.
type Guarded struct {
	label string
	inner Capability
	cb    *breaker.CircuitBreaker
}

// NewGuarded wraps inner behind a breaker using the same window/cooldown
// shape as the teacher's worker-level breaker configuration.
func NewGuarded(label string, inner Capability, cb *breaker.CircuitBreaker) *Guarded {
	return &Guarded{label: label, inner: inner, cb: cb}
}

func (g *Guarded) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	if !g.cb.Allow() {
		obs.CircuitBreakerState.Set(float64(g.cb.State()))
		return "", &TransientError{Provider: g.label, Err: ErrCircuitOpen}
	}
	out, err := g.inner.Complete(ctx, prompt, opts)
	g.recordOutcome(err == nil)
	return out, err
}

func (g *Guarded) Embed(ctx context.Context, text string) ([]float64, error) {
	if !g.cb.Allow() {
		obs.CircuitBreakerState.Set(float64(g.cb.State()))
		return nil, &TransientError{Provider: g.label, Err: ErrCircuitOpen}
	}
	out, err := g.inner.Embed(ctx, text)
	g.recordOutcome(err == nil)
	return out, err
}

// recordOutcome feeds the breaker and keeps the Prometheus gauge/counter in
// sync with its state (spec.md's ambient observability stack): the gauge
// always reflects the current state, and the counter ticks on every
// Closed/HalfOpen→Open transition.
func (g *Guarded) recordOutcome(ok bool) {
	before := g.cb.State()
	g.cb.Record(ok)
	after := g.cb.State()
	obs.CircuitBreakerState.Set(float64(after))
	if after == breaker.Open && before != breaker.Open {
		obs.CircuitBreakerTrips.Inc()
	}
}
