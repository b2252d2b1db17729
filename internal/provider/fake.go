// Copyright 2025 James Ross
package provider

import (
	"context"
	"errors"
	"hash/fnv"
)

// Fake is a deterministic in-process Capability used where no external
// LLM/embedding client is wired (dev, tests, and the deterministic-failure
// scenario in spec.md §8 scenario 5). It never calls out over the network;
// Embed derives a stable low-dimensional vector from the input text so
// similarity/clustering workers can be exercised without a real model.
type Fake struct {
	// ForceComplete, when set, is returned verbatim by Complete instead of
	// the canned response, letting tests exercise a specific downstream
	// parse path.
	ForceComplete string
	// FailComplete/FailEmbed, while non-nil, make every Complete/Embed call
	// fail with the given error, simulating an upstream outage or malformed
	// response.
	FailComplete error
	FailEmbed    error
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Complete(_ context.Context, prompt string, opts CompletionOptions) (string, error) {
	if f.FailComplete != nil {
		return "", f.FailComplete
	}
	if f.ForceComplete != "" {
		return f.ForceComplete, nil
	}
	return "{}", nil
}

func (f *Fake) Embed(_ context.Context, text string) ([]float64, error) {
	if f.FailEmbed != nil {
		return nil, f.FailEmbed
	}
	return deterministicVector(text, 8), nil
}

// deterministicVector hashes text into a fixed-length unit-ish vector so
// two calls with the same input always yield the same embedding, and
// distinct inputs yield distinct vectors without any external dependency.
func deterministicVector(text string, dims int) []float64 {
	out := make([]float64, dims)
	h := fnv.New64a()
	for i := 0; i < dims; i++ {
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		sum := h.Sum64()
		out[i] = float64(sum%1000) / 1000.0
	}
	return out
}

// ErrMalformedResponse simulates a provider returning a structured payload
// the worker cannot parse (spec.md §7 "External-provider deterministic").
var ErrMalformedResponse = errors.New("provider returned an unparseable response")
