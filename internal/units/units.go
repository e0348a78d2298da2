// Package units converts human-readable data sizes into byte counts.
package units

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	// ErrInvalidSize is returned when a size string does not look like a
	// number followed by an optional unit suffix.
	ErrInvalidSize = errors.New("invalid size")

	// ErrUnsupportedUnit is returned when the unit suffix is not one of the
	// supported decimal or binary units.
	ErrUnsupportedUnit = errors.New("unsupported unit")
)

// MiB is the allocation granularity used for storage volumes.
const MiB = 1 << 20

// multipliers maps unit suffixes to their byte multiplier. An empty suffix
// means plain bytes.
var multipliers = map[string]uint64{
	"":    1,
	"B":   1,
	"KB":  1e3,
	"MB":  1e6,
	"GB":  1e9,
	"TB":  1e12,
	"PB":  1e15,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
	"PiB": 1 << 50,
}

var sizeRe = regexp.MustCompile(`^(\d+)\s*([iA-Z]{1,3})?$`)

// ParseSize converts a human-readable size like "16GiB" or "500MB" into
// bytes. A bare number is taken as bytes. Whitespace between the number and
// the unit is tolerated.
func ParseSize(s string) (uint64, error) {
	m := sizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	mult, ok := multipliers[m[2]]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedUnit, m[2])
	}

	return n * mult, nil
}

// AlignUp rounds n up to the next multiple of align. A value already on the
// boundary is returned unchanged.
func AlignUp(n, align uint64) uint64 {
	if r := n % align; r != 0 {
		return n + (align - r)
	}
	return n
}
