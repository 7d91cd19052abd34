package contour

import "errors"

// Sentinel errors returned by this package.
var (
	// ErrTooFewSeedNodes indicates NewManager was asked for fewer than
	// one initial node.
	ErrTooFewSeedNodes = errors.New("contour: NumInitialNodes must be >= 1")

	// ErrNoMeasurements indicates NextFrame was called with an empty
	// measurement set, which leaves every segment without support and
	// is almost certainly a caller mistake rather than a valid frame.
	ErrNoMeasurements = errors.New("contour: NextFrame requires at least one measurement")
)
