package gamification

import (
	"errors"
	"math"
	"testing"

	"github.com/bmizerany/assert"
)

func TestCurveBoundaries(t *testing.T) {
	cases := []struct {
		experience int64
		level      int
		start      int64
		threshold  int64
	}{
		{0, 1, 0, 1000},
		{999, 1, 0, 1000},
		{1000, 2, 1000, 3828}, // 1000 + floor(1000 * 2^1.5)
		{3827, 2, 1000, 3828},
		{3828, 3, 3828, 9024}, // + floor(1000 * 3^1.5) = 5196
		{9024, 4, 9024, 17024},
	}

	for _, c := range cases {
		p, err := DefaultCurve.Progress(c.experience)
		if err != nil {
			t.Fatalf("Progress(%d) error: %v", c.experience, err)
		}
		if p.Level != c.level || p.LevelStart != c.start || p.NextLevelThreshold != c.threshold {
			t.Fatalf("Progress(%d): got level=%d start=%d next=%d want level=%d start=%d next=%d",
				c.experience, p.Level, p.LevelStart, p.NextLevelThreshold, c.level, c.start, c.threshold)
		}
	}
}

func TestCurveRejectsNegativeExperience(t *testing.T) {
	_, err := DefaultCurve.Progress(-1)
	assert.T(t, errors.Is(err, ErrInvalidInput), err)
}

func TestCurveValidate(t *testing.T) {
	bad := []Curve{
		{Base: 0, Exponent: 1.5},
		{Base: -5, Exponent: 1.5},
		{Base: 1000, Exponent: -0.1},
		{Base: 1000, Exponent: math.NaN()},
		{Base: 1000, Exponent: math.Inf(1)},
	}
	for _, c := range bad {
		_, err := c.Progress(10)
		assert.T(t, errors.Is(err, ErrInvalidInput), c)
	}

	flat := Curve{Base: 10, Exponent: 0}
	p, err := flat.Progress(95)
	assert.Equal(t, nil, err)
	assert.Equal(t, 10, p.Level)
	assert.Equal(t, int64(100), p.NextLevelThreshold)
}

func TestCurveMonotonic(t *testing.T) {
	prev := 0
	for e := int64(0); e < 200_000; e += 37 {
		level, err := DefaultCurve.Level(e)
		if err != nil {
			t.Fatalf("Level(%d) error: %v", e, err)
		}
		if level < prev {
			t.Fatalf("level decreased at %d: %d < %d", e, level, prev)
		}
		prev = level
	}
}

func TestCurveThresholdConsistency(t *testing.T) {
	for _, e := range []int64{0, 1, 500, 999, 1000, 4321, 77_777, 1_234_567, 98_765_432} {
		p, err := DefaultCurve.Progress(e)
		assert.Equal(t, nil, err)

		below, err := DefaultCurve.Progress(p.NextLevelThreshold - 1)
		assert.Equal(t, nil, err)
		assert.Equal(t, p.Level, below.Level)

		at, err := DefaultCurve.Progress(p.NextLevelThreshold)
		assert.Equal(t, nil, err)
		assert.Equal(t, p.Level+1, at.Level)
	}
}

func TestCurveTerminatesNearMaxInt(t *testing.T) {
	p, err := DefaultCurve.Progress(math.MaxInt64)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(math.MaxInt64), p.NextLevelThreshold)
	assert.T(t, p.Level > 1000)
}

func TestProgressFraction(t *testing.T) {
	p, err := DefaultCurve.Progress(500)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0.5, p.Fraction())

	p, err = DefaultCurve.Progress(1000)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0.0, p.Fraction())
}
