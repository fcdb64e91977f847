// Package events holds the event store and the sources that populate it.
package events

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithCapacity sets the maximum number of events the store accepts.
func WithCapacity(capacity int) Option {
	return func(s *Store) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// RandomOption applies a configuration option to the RandomSource.
type RandomOption func(*RandomSource)

// WithSeed sets the generator seed.
func WithSeed(seed int64) RandomOption {
	return func(r *RandomSource) {
		r.seed = seed
	}
}

// WithSRange sets the interval s is drawn from.
func WithSRange(minS, maxS float64) RandomOption {
	return func(r *RandomSource) {
		if maxS > minS {
			r.sMin, r.sMax = minS, maxS
		}
	}
}

// WithTFraction bounds t to (-frac*s, 0]. frac must lie in (0, 1].
func WithTFraction(frac float64) RandomOption {
	return func(r *RandomSource) {
		if frac > 0 && frac <= 1 {
			r.tFrac = frac
		}
	}
}

// WithMassSum sets s+t+u for generated events.
func WithMassSum(sum float64) RandomOption {
	return func(r *RandomSource) {
		r.massSum = sum
	}
}

// WithParam sets the per-event parameter column written on every event.
func WithParam(p float64) RandomOption {
	return func(r *RandomSource) {
		r.param = p
	}
}
