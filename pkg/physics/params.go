package physics

import (
	"errors"
	"fmt"
	"math"
)

// Params are the tunable constants of a layout tick.
type Params struct {
	Repulsion    float64 `koanf:"repulsion" json:"repulsion"`
	Spring       float64 `koanf:"spring" json:"spring"`
	RestLength   float64 `koanf:"rest_length" json:"restLength"`
	Gravity      float64 `koanf:"gravity" json:"gravity"`
	Damping      float64 `koanf:"damping" json:"damping"`
	Margin       float64 `koanf:"margin" json:"margin"`
	MinDistance2 float64 `koanf:"min_distance2" json:"minDistance2"`
}

// DefaultParams returns the stock tuning for an 800x600 surface
func DefaultParams() Params {
	return Params{
		Repulsion:    500,
		Spring:       0.05,
		RestLength:   100,
		Gravity:      0.01,
		Damping:      0.9,
		Margin:       20,
		MinDistance2: 1,
	}
}

// Validate checks that the parameters describe a dissipative system
func (p Params) Validate() error {
	var errs []error
	for name, v := range map[string]float64{
		"repulsion":     p.Repulsion,
		"spring":        p.Spring,
		"rest_length":   p.RestLength,
		"gravity":       p.Gravity,
		"damping":       p.Damping,
		"margin":        p.Margin,
		"min_distance2": p.MinDistance2,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be finite, got %v", name, v))
		}
	}
	if p.Damping <= 0 || p.Damping >= 1 {
		errs = append(errs, fmt.Errorf("damping must be in (0, 1), got %v", p.Damping))
	}
	if p.MinDistance2 <= 0 {
		errs = append(errs, fmt.Errorf("min_distance2 must be positive, got %v", p.MinDistance2))
	}
	if p.RestLength < 0 {
		errs = append(errs, fmt.Errorf("rest_length must not be negative, got %v", p.RestLength))
	}
	if p.Margin < 0 {
		errs = append(errs, fmt.Errorf("margin must not be negative, got %v", p.Margin))
	}
	if p.Repulsion < 0 || p.Spring < 0 || p.Gravity < 0 {
		errs = append(errs, errors.New("repulsion, spring and gravity must not be negative"))
	}
	return errors.Join(errs...)
}

// EadesParams tune the gonum-backed simulator
type EadesParams struct {
	Repulsion float64 `koanf:"repulsion" json:"repulsion"`
	Rate      float64 `koanf:"rate" json:"rate"`
	Theta     float64 `koanf:"theta" json:"theta"`
}

// DefaultEadesParams returns the EadesR2 defaults suggested for small graphs
func DefaultEadesParams() EadesParams {
	return EadesParams{Repulsion: 1, Rate: 0.05, Theta: 0.2}
}

// Validate rejects non-positive rates
func (p EadesParams) Validate() error {
	if p.Rate <= 0 {
		return fmt.Errorf("eades rate must be positive, got %v", p.Rate)
	}
	if p.Repulsion < 0 || p.Theta < 0 {
		return fmt.Errorf("eades repulsion and theta must not be negative")
	}
	return nil
}
