// Package transformer holds the per-chunk transforms of the court-opinion
// pipeline. Each constructor binds its reference tables by closure and
// returns a Func the chunk processor applies to every chunk.
package transformer

import "courtetl/internal/frame"

// Func transforms one chunk. It must not retain or mutate its input.
type Func func(chunk *frame.Frame) (*frame.Frame, error)

// Chain is an ordered list of transforms.
type Chain []Func

// Apply runs each transform on the previous one's output.
func (c Chain) Apply(in *frame.Frame) (*frame.Frame, error) {
	out := in
	for _, fn := range c {
		var err error
		if out, err = fn(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Func adapts the chain to a single transform.
func (c Chain) Func() Func { return c.Apply }
