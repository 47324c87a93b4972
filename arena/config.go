package arena

// Config holds world physics and player movement tuning.
type Config struct {
	Gravity    float64
	WalkSpeed  float64
	RunSpeed   float64
	JumpHeight float64

	// GroundProbe is how far above the ground a body may be and still count as grounded.
	GroundProbe float64
	// GroundDrag is the per-second horizontal velocity loss of a grounded rigid body.
	GroundDrag       float64
	StoppingDistance float64
	// NavMargin keeps navigable ground away from pit rims.
	NavMargin        float64
	PitTriggerHeight float64
}

func DefaultConfig() Config {
	return Config{
		Gravity:          -9.81,
		WalkSpeed:        5,
		RunSpeed:         10,
		JumpHeight:       2,
		GroundProbe:      0.3,
		GroundDrag:       3,
		StoppingDistance: 0.2,
		NavMargin:        0.5,
		PitTriggerHeight: 0.5,
	}
}

const (
	characterRadius = 0.4
	animalRadius    = 0.3

	bodyColliderHeight   = 0.9
	headColliderHeight   = 1.6
	animalColliderHeight = 0.5

	// rimTolerance is how far below the rim a body must be before pit walls hold it.
	rimTolerance = 0.1
)
