package gamification

import (
	"fmt"
	"math"
)

// Curve is the level progression curve. Reaching level n+1 costs
// floor(Base * (n+1)^Exponent) more experience than reaching level n, and
// level 2 starts at Base.
type Curve struct {
	Base     int64
	Exponent float64
}

// DefaultCurve is the dashboard's stock curve
var DefaultCurve = Curve{Base: 1000, Exponent: 1.5}

// Progress is a position on the curve
type Progress struct {
	Experience         int64 `json:"experience"`
	Level              int   `json:"level"`
	LevelStart         int64 `json:"level_start"`
	NextLevelThreshold int64 `json:"next_level_threshold"`
}

// Fraction is how far Experience is between LevelStart and
// NextLevelThreshold, in [0, 1)
func (p Progress) Fraction() float64 {
	span := p.NextLevelThreshold - p.LevelStart
	if span <= 0 {
		return 1
	}
	return float64(p.Experience-p.LevelStart) / float64(span)
}

// Validate rejects curves whose increments could fail to grow
func (c Curve) Validate() error {
	if c.Base < 1 {
		return fmt.Errorf("%w: level base must be at least 1, got %d", ErrInvalidInput, c.Base)
	}
	if math.IsNaN(c.Exponent) || math.IsInf(c.Exponent, 0) || c.Exponent < 0 {
		return fmt.Errorf("%w: level exponent must be a finite non-negative number, got %v", ErrInvalidInput, c.Exponent)
	}
	return nil
}

// increment is the experience needed to go from level-1 to level
func (c Curve) increment(level int) int64 {
	v := math.Floor(float64(c.Base) * math.Pow(float64(level), c.Exponent))
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// Progress maps cumulative experience to a level and the threshold of the
// next level. Near the top of the int64 range the threshold saturates at
// math.MaxInt64.
func (c Curve) Progress(experience int64) (Progress, error) {
	if err := c.Validate(); err != nil {
		return Progress{}, err
	}
	if experience < 0 {
		return Progress{}, fmt.Errorf("%w: experience must be non-negative, got %d", ErrInvalidInput, experience)
	}

	level := 1
	var start int64
	threshold := c.increment(1)

	for experience >= threshold {
		inc := c.increment(level + 1)
		if inc > math.MaxInt64-threshold {
			return Progress{
				Experience:         experience,
				Level:              level + 1,
				LevelStart:         threshold,
				NextLevelThreshold: math.MaxInt64,
			}, nil
		}
		level++
		start = threshold
		threshold += inc
	}

	return Progress{
		Experience:         experience,
		Level:              level,
		LevelStart:         start,
		NextLevelThreshold: threshold,
	}, nil
}

// Level is shorthand for Progress(experience).Level
func (c Curve) Level(experience int64) (int, error) {
	p, err := c.Progress(experience)
	if err != nil {
		return 0, err
	}
	return p.Level, nil
}
