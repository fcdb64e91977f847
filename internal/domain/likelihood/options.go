// Package likelihood turns per-event amplitudes into the likelihood scalar.
package likelihood

// Option applies a configuration option to the Reducer.
type Option func(*Reducer)

// WithPolicy sets how zero-magnitude amplitudes are handled.
func WithPolicy(p Policy) Option {
	return func(r *Reducer) {
		r.policy = p
	}
}

// WithBlockSize sets the number of events per reduction block.
func WithBlockSize(size int) Option {
	return func(r *Reducer) {
		if size > 0 {
			r.blockSize = size
		}
	}
}
