package neuralnet

import (
	"testing"

	"github.com/pkg/errors"
)

func TestMomentumStep(t *testing.T) {
	const epsilon = 1e-12
	m := Momentum{LearningRate: 0.15, Alpha: 0.5}
	c := &Connection{Weight: 1.0, Momentum: 0.1}

	delta := m.Step(c, 0.8, 0.2)

	want := 0.15*0.8*0.2 + 0.5*0.1
	if diff := delta - want; diff < -epsilon || diff > epsilon {
		t.Errorf("delta = %v; want %v", delta, want)
	}
	if diff := c.Momentum - want; diff < -epsilon || diff > epsilon {
		t.Errorf("momentum = %v; want %v", c.Momentum, want)
	}
	if diff := c.Weight - (1.0 + want); diff < -epsilon || diff > epsilon {
		t.Errorf("weight = %v; want %v", c.Weight, 1.0+want)
	}
}

func TestMomentumAccumulates(t *testing.T) {
	m := Momentum{LearningRate: 0.15, Alpha: 0.5}
	c := &Connection{}
	first := m.Step(c, 1, 0.1)
	second := m.Step(c, 1, 0.1)
	if second <= first {
		t.Errorf("second delta %v not larger than first %v", second, first)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("DefaultParams().Validate() = %v", err)
	}
	bad := []Params{
		{Optimizer: Momentum{LearningRate: 0, Alpha: 0.5}, InitMax: 1},
		{Optimizer: Momentum{LearningRate: 0.1, Alpha: 1}, InitMax: 1},
		{Optimizer: Momentum{LearningRate: 0.1, Alpha: -0.1}, InitMax: 1},
		{Optimizer: Momentum{LearningRate: 0.1, Alpha: 0.5}, InitMin: 1, InitMax: 1},
	}
	for i, p := range bad {
		if err := p.Validate(); !errors.Is(err, ErrParams) {
			t.Errorf("case %d: Validate() = %v; want ErrParams", i, err)
		}
	}
}
