// Package cascade runs ordered extraction strategies and layered fallbacks.
//
// A strategy chain stops at the first strategy that yields a value. A layer
// chain keeps going while each layer's output is below a quality bar, and
// reports which layer produced the final result.
package cascade

import (
	"context"
	"unicode/utf8"
)

// Strategy is one named extraction attempt over an input of type C.
type Strategy[C, V any] struct {
	Name string
	Fn   func(C) (V, bool)
}

// FirstMatch evaluates chain in order and returns the first value found along
// with the name of the strategy that produced it. Later strategies are not run.
func FirstMatch[C, V any](input C, chain []Strategy[C, V]) (V, string, bool) {
	for _, s := range chain {
		if v, ok := s.Fn(input); ok {
			return v, s.Name, true
		}
	}
	var zero V
	return zero, "", false
}

// Output is what a layer produced.
type Output struct {
	Content  string
	Fallback bool // set by last-resort layers whose output is low confidence
}

// Layer is one tier of a fallback chain.
type Layer struct {
	Name string
	Run  func(ctx context.Context) (Output, error)
}

// Attempt records how one layer fared.
type Attempt struct {
	Layer  string
	Length int
	Err    error
}

// Result is the outcome of a layer chain.
type Result struct {
	Output
	Layer    string
	Attempts []Attempt
}

// Usable reports whether the result met the quality bar.
func (r Result) Usable(minLen int) bool {
	return Len(r.Content) >= minLen
}

// Len counts characters rather than bytes so Korean text is measured fairly.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Run tries each layer until one returns content of at least minLen
// characters. Layers that fail or fall short are recorded in Attempts. When
// nothing passes, the longest non-empty output wins so callers always get the
// best effort available. A cancelled context stops the chain.
func Run(ctx context.Context, minLen int, layers ...Layer) Result {
	var res Result
	var best *Result

	for _, l := range layers {
		if ctx.Err() != nil {
			res.Attempts = append(res.Attempts, Attempt{Layer: l.Name, Err: ctx.Err()})
			break
		}

		out, err := l.Run(ctx)
		res.Attempts = append(res.Attempts, Attempt{Layer: l.Name, Length: Len(out.Content), Err: err})
		if err != nil {
			continue
		}

		if Len(out.Content) >= minLen {
			res.Output = out
			res.Layer = l.Name
			return res
		}
		if out.Content != "" && (best == nil || Len(out.Content) > Len(best.Content)) {
			best = &Result{Output: out, Layer: l.Name}
		}
	}

	if best != nil {
		res.Output = best.Output
		res.Layer = best.Layer
	}
	return res
}
