package gen

// Generation constants.
const (
	// chunkSize is the number of events drawn from one seeded source. The
	// output depends on the seed only, never on the worker count.
	chunkSize = 4096

	// chunkSeedStride separates the seeds of consecutive chunks.
	chunkSeedStride = 1_000_003

	filePermission = 0o600
)
