// Package units converts between storage units (kg, cm) and the
// display units chosen in the settings (kg/lb, cm/in).
// All persisted values are metric; conversion only happens at the edges.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	lbPerKg = 2.20462
	cmPerIn = 2.54
)

var ErrInvalidNumber = errors.New("invalid number")

type WeightUnit string

const (
	Kilograms WeightUnit = "kg"
	Pounds    WeightUnit = "lb"
)

type HeightUnit string

const (
	Centimeters HeightUnit = "cm"
	Inches      HeightUnit = "in"
)

func (u WeightUnit) IsValid() bool {
	return u == Kilograms || u == Pounds
}

func (u HeightUnit) IsValid() bool {
	return u == Centimeters || u == Inches
}

func ParseWeightUnit(s string) (WeightUnit, error) {
	u := WeightUnit(strings.ToLower(strings.TrimSpace(s)))
	if !u.IsValid() {
		return "", fmt.Errorf("unknown weight unit: %q", s)
	}
	return u, nil
}

func ParseHeightUnit(s string) (HeightUnit, error) {
	u := HeightUnit(strings.ToLower(strings.TrimSpace(s)))
	if !u.IsValid() {
		return "", fmt.Errorf("unknown height unit: %q", s)
	}
	return u, nil
}

func KgToLb(kg float64) float64 {
	return kg * lbPerKg
}

func LbToKg(lb float64) float64 {
	return lb / lbPerKg
}

func CmToIn(cm float64) float64 {
	return cm / cmPerIn
}

func InToCm(in float64) float64 {
	return in * cmPerIn
}

// ToDisplayWeight converts a stored kg value into the display unit, unformatted.
func ToDisplayWeight(kg float64, unit WeightUnit) float64 {
	if unit == Pounds {
		return KgToLb(kg)
	}
	return kg
}

// ToDisplayHeight converts a stored cm value into the display unit, unformatted.
func ToDisplayHeight(cm float64, unit HeightUnit) float64 {
	if unit == Inches {
		return CmToIn(cm)
	}
	return cm
}

// DisplayWeight formats kg in the display unit with 2 decimals.
func DisplayWeight(kg float64, unit WeightUnit) string {
	return strconv.FormatFloat(ToDisplayWeight(kg, unit), 'f', 2, 64)
}

// DisplayHeight formats cm in the display unit with 1 decimal.
func DisplayHeight(cm float64, unit HeightUnit) string {
	return strconv.FormatFloat(ToDisplayHeight(cm, unit), 'f', 1, 64)
}

// ParseWeight maps a display-unit value back to kg.
func ParseWeight(value float64, unit WeightUnit) float64 {
	if unit == Pounds {
		return LbToKg(value)
	}
	return value
}

// ParseHeight maps a display-unit value back to cm.
func ParseHeight(value float64, unit HeightUnit) float64 {
	if unit == Inches {
		return InToCm(value)
	}
	return value
}

// ParseWeightInput parses user input typed in the display unit and returns kg.
// Empty input means "not recorded" and yields 0.
func ParseWeightInput(s string, unit WeightUnit) (float64, error) {
	v, err := ParseNumber(s)
	if err != nil {
		return 0, fmt.Errorf("weight: %w", err)
	}
	return ParseWeight(v, unit), nil
}

// ParseHeightInput parses user input typed in the display unit and returns cm.
// Empty input means "not recorded" and yields 0.
func ParseHeightInput(s string, unit HeightUnit) (float64, error) {
	v, err := ParseNumber(s)
	if err != nil {
		return 0, fmt.Errorf("height: %w", err)
	}
	return ParseHeight(v, unit), nil
}

// ParseNumber parses a non-negative number as typed by the user. Empty input
// yields 0.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	// decimal comma, as typed with es/fr/de keyboards
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return v, nil
}

func WeightLabel(unit WeightUnit) string {
	if unit == Pounds {
		return "lb"
	}
	return "kg"
}

func HeightLabel(unit HeightUnit) string {
	if unit == Inches {
		return "in"
	}
	return "cm"
}
