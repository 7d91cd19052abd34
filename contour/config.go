package contour

// Config holds the dynamic topology manager's tuning constants. All
// fields have defaults matching DefaultConfig; construct via
// NewManager's functional options rather than a Config literal.
type Config struct {
	// TransitionNoise (τ) is added as τ·I to every surviving node's
	// belief precision between frames (VariableNode.Reset), leaving η
	// unchanged, before the next frame's measurements are fit.
	TransitionNoise float64

	// LineFactorHuberDistance is the Huber Mahalanobis-distance
	// threshold (ε_h) used specifically by line-measurement factors,
	// distinct from fgraph's global DefaultHuberThreshold so the
	// contour domain can tune outlier rejection independently of any
	// other factor type sharing the same graph.
	LineFactorHuberDistance float64

	// BirthLineVariance is the per-segment residual-variance threshold
	// above which a new interpolated node is inserted into that
	// segment.
	BirthLineVariance float64

	// DeathNodeSigma is the posterior-covariance-norm threshold above
	// which a node is killed for carrying too little information.
	DeathNodeSigma float64

	// LineMeasurementNoise is the scalar measurement variance (R) every
	// line-measurement factor is constructed with.
	LineMeasurementNoise float64

	// LineMergeResidual bounds how close to exactly collinear a
	// (v_{i-1}, v_i, v_{i+1}) triplet must be before v_i is merged away.
	LineMergeResidual float64

	// MaxIterationsPerMeasurement caps the synchronous rounds any
	// single Fit call (within one topology configuration) may run.
	MaxIterationsPerMeasurement int

	// NumInitialNodes is the node count NewManager seeds the very first
	// frame's graph with, interpolated between the two seed points
	// passed to NewManager. A value of 1 seeds the single-node
	// degenerate-start path, which splits perpendicular to the
	// prior→posterior displacement on the first birth check.
	NumInitialNodes int

	// UseHuber enables adaptive Huber reweighting on every factor this
	// package constructs.
	UseHuber bool

	// frameCap bounds the manager's own birth/kill/merge-then-refit
	// loop within a single NextFrame call. Unexported; tunable via
	// WithFrameCap for tests that want a tighter bound than the
	// default.
	frameCap int
}

// Option is a functional option for NewManager.
type Option func(*Config)

// DefaultConfig returns the tuning defaults.
func DefaultConfig() Config {
	return Config{
		TransitionNoise:             0.1,
		LineFactorHuberDistance:     0.05,
		BirthLineVariance:           0.1,
		DeathNodeSigma:              0.08,
		LineMeasurementNoise:        0.1,
		LineMergeResidual:           0.05,
		MaxIterationsPerMeasurement: 500,
		NumInitialNodes:             2,
		UseHuber:                    true,
		frameCap:                    10,
	}
}

func WithTransitionNoise(v float64) Option { return func(c *Config) { c.TransitionNoise = v } }

func WithLineFactorHuberDistance(v float64) Option {
	return func(c *Config) { c.LineFactorHuberDistance = v }
}

func WithBirthLineVariance(v float64) Option { return func(c *Config) { c.BirthLineVariance = v } }

func WithDeathNodeSigma(v float64) Option { return func(c *Config) { c.DeathNodeSigma = v } }

func WithLineMeasurementNoise(v float64) Option {
	return func(c *Config) { c.LineMeasurementNoise = v }
}

func WithLineMergeResidual(v float64) Option { return func(c *Config) { c.LineMergeResidual = v } }

func WithMaxIterationsPerMeasurement(n int) Option {
	return func(c *Config) { c.MaxIterationsPerMeasurement = n }
}

func WithNumInitialNodes(n int) Option { return func(c *Config) { c.NumInitialNodes = n } }

func WithUseHuber(enabled bool) Option { return func(c *Config) { c.UseHuber = enabled } }

func WithFrameCap(n int) Option { return func(c *Config) { c.frameCap = n } }
