package motion

import "time"

// Config holds the herding and handoff tuning of one animal.
type Config struct {
	BaseSpeed         float64
	SlowMultiplier    float64
	InfluenceRadius   float64
	AlignAngleDegrees float64
	WanderRadius      float64
	WanderInterval    time.Duration

	ImpulseStrength           float64
	ImpulseCooldown           time.Duration
	PhysicsReenableCooldown   time.Duration
	ReenableVelocityThreshold float64

	StuckRepathTime time.Duration
	MinMoveDistance float64

	AssistWindow time.Duration

	// RequirePlayerRoot ignores overlapping colliders whose root is not a player-controlled entity.
	RequirePlayerRoot bool
}

func DefaultConfig() Config {
	return Config{
		BaseSpeed:                 3,
		SlowMultiplier:            0.3,
		InfluenceRadius:           6,
		AlignAngleDegrees:         120,
		WanderRadius:              15,
		WanderInterval:            3 * time.Second,
		ImpulseStrength:           6,
		ImpulseCooldown:           350 * time.Millisecond,
		PhysicsReenableCooldown:   500 * time.Millisecond,
		ReenableVelocityThreshold: 0.1,
		StuckRepathTime:           3 * time.Second,
		MinMoveDistance:           0.2,
		AssistWindow:              5 * time.Second,
		RequirePlayerRoot:         true,
	}
}

const (
	// NavMeshSnap is how far a position may be from walkable ground and still hand back to navigation.
	NavMeshSnap = 0.25

	steerStep        = 2.0
	steerSampleRange = 2.0
	wanderSample     = 3.0
	wanderAttempts   = 5

	degeneratePushSqr = 0.01
	negligibleSumSqr  = 0.001
)
