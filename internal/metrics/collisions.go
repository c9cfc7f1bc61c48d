package metrics

import "github.com/san-kum/dsmcsim/internal/dynamo"

type CollisionCount struct {
	count int
}

func NewCollisionCount() *CollisionCount { return &CollisionCount{} }

func (c *CollisionCount) Name() string { return "collisions" }

func (c *CollisionCount) Observe(_ dynamo.ParticleState, collided bool) {
	if collided {
		c.count++
	}
}

func (c *CollisionCount) Value() float64 { return float64(c.count) }
func (c *CollisionCount) Reset()         { c.count = 0 }

// CollisionRate is the fraction of steps that ended in a collision.
type CollisionRate struct {
	collisions int
	samples    int
}

func NewCollisionRate() *CollisionRate { return &CollisionRate{} }

func (c *CollisionRate) Name() string { return "collision_rate" }

func (c *CollisionRate) Observe(_ dynamo.ParticleState, collided bool) {
	c.samples++
	if collided {
		c.collisions++
	}
}

func (c *CollisionRate) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return float64(c.collisions) / float64(c.samples)
}

func (c *CollisionRate) Reset() {
	c.collisions = 0
	c.samples = 0
}
