package units

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxUnitsPerFloor is bounded by the two-digit per-floor index in upper floor labels.
const MaxUnitsPerFloor = 99

var (
	ErrInvalidLayout   = errors.New("invalid unit layout")
	ErrInvalidLabel    = errors.New("invalid unit label")
	ErrLabelOutOfRange = errors.New("unit label outside property layout")
)

// Layout describes how the units of a property are spread over its floors.
// Floors counts the ground floor, so a layout with Floors=3 has G, 1xx and 2xx units.
type Layout struct {
	Floors        int `json:"num_floors"`
	UnitsPerFloor int `json:"units_per_floor"`
	// GroundUnits overrides the unit count of floor 0. Zero means UnitsPerFloor.
	GroundUnits int `json:"ground_units"`
}

// Position identifies a unit by floor index and 1-based position on that floor.
type Position struct {
	Floor    int    `json:"floor"`
	Position int    `json:"position"`
	Label    string `json:"label"`
}

// SingleStorey is the layout used for bungalows: every unit sits on the ground floor.
func SingleStorey(numUnits int) Layout {
	return Layout{Floors: 1, UnitsPerFloor: numUnits}
}

// Validate checks that the layout can produce labels.
func (l Layout) Validate() error {
	if l.Floors < 1 {
		return fmt.Errorf("%w: at least one floor is required", ErrInvalidLayout)
	}
	if l.UnitsPerFloor < 1 || l.UnitsPerFloor > MaxUnitsPerFloor {
		return fmt.Errorf("%w: units per floor must be between 1 and %d", ErrInvalidLayout, MaxUnitsPerFloor)
	}
	if l.GroundUnits < 0 || l.GroundUnits > MaxUnitsPerFloor {
		return fmt.Errorf("%w: ground units must be between 0 and %d", ErrInvalidLayout, MaxUnitsPerFloor)
	}
	return nil
}

// UnitsOnFloor returns how many units the given floor holds, or 0 when the floor
// does not exist in the layout.
func (l Layout) UnitsOnFloor(floor int) int {
	switch {
	case floor < 0 || floor >= l.Floors:
		return 0
	case floor == 0 && l.GroundUnits > 0:
		return l.GroundUnits
	default:
		return l.UnitsPerFloor
	}
}

// Total is the number of units the layout generates.
func (l Layout) Total() int {
	total := 0
	for f := 0; f < l.Floors; f++ {
		total += l.UnitsOnFloor(f)
	}
	return total
}

// Generate enumerates every unit of the layout, ground floor first.
func (l Layout) Generate() ([]Position, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	positions := make([]Position, 0, l.Total())
	for f := 0; f < l.Floors; f++ {
		for p := 1; p <= l.UnitsOnFloor(f); p++ {
			positions = append(positions, Position{Floor: f, Position: p, Label: Label(f, p)})
		}
	}
	return positions, nil
}

// Locate resolves a label back to its position, failing when the label is
// malformed or falls outside the layout.
func (l Layout) Locate(label string) (Position, error) {
	floor, pos, err := Parse(label)
	if err != nil {
		return Position{}, err
	}
	if pos > l.UnitsOnFloor(floor) {
		return Position{}, fmt.Errorf("%w: %s", ErrLabelOutOfRange, label)
	}
	return Position{Floor: floor, Position: pos, Label: Label(floor, pos)}, nil
}

// Label renders the display label of a unit. Ground floor units are G1, G2, ...;
// upper floors use the floor number followed by a two-digit position (101, 102, 201).
func Label(floor, position int) string {
	if floor == 0 {
		return "G" + strconv.Itoa(position)
	}
	return fmt.Sprintf("%d%02d", floor, position)
}

// Parse is the inverse of Label. Only canonical labels are accepted, so "G01"
// and "0101" are rejected rather than aliased onto G1 and 101.
func Parse(label string) (floor, position int, err error) {
	normalized := strings.ToUpper(strings.TrimSpace(label))
	floor, position, err = parseParts(normalized)
	if err != nil {
		return 0, 0, err
	}
	if Label(floor, position) != normalized {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return floor, position, nil
}

func parseParts(label string) (floor, position int, err error) {
	if rest, ok := strings.CutPrefix(label, "G"); ok {
		position, err = parsePositive(rest)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
		}
		return 0, position, nil
	}

	if len(label) < 3 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	floor, err = parsePositive(label[:len(label)-2])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	position, err = parsePositive(label[len(label)-2:])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return floor, position, nil
}

// parsePositive accepts only plain decimal digits with a value above zero.
func parsePositive(s string) (int, error) {
	if s == "" {
		return 0, ErrInvalidLabel
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidLabel
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, ErrInvalidLabel
	}
	return n, nil
}
