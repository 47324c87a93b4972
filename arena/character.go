package arena

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/wfunc/herdparty/replicated"
)

// Input is the latest movement intent of a player.
type Input struct {
	MoveX float64 `json:"move_x"`
	MoveZ float64 `json:"move_z"`
	Run   bool    `json:"run"`
	Jump  bool    `json:"jump"`
}

// Character is the kinematic body of a connected player.
type Character struct {
	id       uint64
	owner    replicated.ClientID
	pos      mgl64.Vec3
	vel      mgl64.Vec3
	input    Input
	grounded bool
}

func (c *Character) EntityID() uint64           { return c.id }
func (c *Character) Owner() replicated.ClientID { return c.owner }
func (c *Character) Position() mgl64.Vec3       { return c.pos }
func (c *Character) Velocity() mgl64.Vec3       { return c.vel }
func (c *Character) Grounded() bool             { return c.grounded }

// SetInput replaces the movement intent. A jump request survives until the next step consumes it.
func (c *Character) SetInput(in Input) {
	jump := c.input.Jump || in.Jump
	c.input = in
	c.input.Jump = jump
}

func (c *Character) step(cfg Config, dt float64) {
	move := mgl64.Vec3{c.input.MoveX, 0, c.input.MoveZ}
	if l := move.Len(); l > 1 {
		move = move.Mul(1 / l)
	}
	speed := cfg.WalkSpeed
	if c.input.Run {
		speed = cfg.RunSpeed
	}
	c.vel[0], c.vel[2] = move[0]*speed, move[2]*speed

	if c.input.Jump && c.grounded {
		c.vel[1] = math.Sqrt(2 * cfg.JumpHeight * -cfg.Gravity)
		c.grounded = false
	}
	c.input.Jump = false
	c.vel[1] += cfg.Gravity * dt
	c.pos = c.pos.Add(c.vel.Mul(dt))
}
