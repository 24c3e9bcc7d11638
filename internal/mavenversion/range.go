package mavenversion

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errEmptyRange     = errors.New("empty version range")
	errUnbalanced     = errors.New("unbalanced range bracket")
	errSingleVersion  = errors.New("single version must be enclosed in []")
	errInvertedBounds = errors.New("range lower bound is above upper bound")
	errOverlap        = errors.New("ranges overlap")
	errTrailing       = errors.New("unexpected text after range")
)

// Restriction is one interval of a range. Empty bounds are unbounded.
type Restriction struct {
	Lower          string
	LowerInclusive bool
	Upper          string
	UpperInclusive bool
}

// Contains reports whether version lies inside the interval.
func (r Restriction) Contains(version string) bool {
	if r.Lower != "" {
		c := Compare(version, r.Lower)
		if c < 0 || (c == 0 && !r.LowerInclusive) {
			return false
		}
	}

	if r.Upper != "" {
		c := Compare(version, r.Upper)
		if c > 0 || (c == 0 && !r.UpperInclusive) {
			return false
		}
	}

	return true
}

// String renders the interval in range notation.
func (r Restriction) String() string {
	var b strings.Builder

	if r.LowerInclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}

	if r.Lower != "" && r.Lower == r.Upper && r.LowerInclusive && r.UpperInclusive {
		b.WriteString(r.Lower)
		b.WriteByte(']')

		return b.String()
	}

	b.WriteString(r.Lower + "," + r.Upper)

	if r.UpperInclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}

	return b.String()
}

// Range is a union of restrictions. A plain version without brackets is a
// soft requirement: it is recorded as Recommended and matches every version.
type Range struct {
	Recommended  string
	Restrictions []Restriction
}

// AtLeast returns the range "[version,)", or an unbounded range for an empty version.
func AtLeast(version string) Range {
	return Range{Restrictions: []Restriction{{Lower: version, LowerInclusive: version != ""}}}
}

// ParseRange parses Maven range notation, e.g. "[1.0,2.0)", "(,1.0],[1.2,)"
// or "[1.5]".
func ParseRange(spec string) (Range, error) {
	spec = strings.ReplaceAll(strings.TrimSpace(spec), " ", "")
	if spec == "" {
		return Range{}, errEmptyRange
	}

	if !strings.ContainsAny(spec[:1], "[(") {
		if strings.ContainsAny(spec, "[](),") {
			return Range{}, fmt.Errorf("%w: %q", errUnbalanced, spec)
		}

		return Range{Recommended: spec, Restrictions: []Restriction{{}}}, nil
	}

	var (
		result Range
		rest   = spec
	)

	for rest != "" {
		if !strings.ContainsAny(rest[:1], "[(") {
			return Range{}, fmt.Errorf("%w: %q", errTrailing, rest)
		}

		end := strings.IndexAny(rest, "])")
		if end < 0 {
			return Range{}, fmt.Errorf("%w: %q", errUnbalanced, spec)
		}

		restriction, err := parseRestriction(rest[:end+1])
		if err != nil {
			return Range{}, err
		}

		if n := len(result.Restrictions); n > 0 && overlaps(result.Restrictions[n-1], restriction) {
			return Range{}, fmt.Errorf("%w: %q", errOverlap, spec)
		}

		result.Restrictions = append(result.Restrictions, restriction)

		rest = strings.TrimPrefix(rest[end+1:], ",")
	}

	return result, nil
}

func parseRestriction(spec string) (Restriction, error) {
	r := Restriction{
		LowerInclusive: spec[0] == '[',
		UpperInclusive: spec[len(spec)-1] == ']',
	}

	body := spec[1 : len(spec)-1]
	if strings.ContainsAny(body, "[(") {
		return Restriction{}, fmt.Errorf("%w: %q", errUnbalanced, spec)
	}

	lower, upper, hasComma := strings.Cut(body, ",")
	if !hasComma {
		if !r.LowerInclusive || !r.UpperInclusive || body == "" {
			return Restriction{}, fmt.Errorf("%w: %q", errSingleVersion, spec)
		}

		r.Lower, r.Upper = body, body

		return r, nil
	}

	r.Lower, r.Upper = lower, upper

	if r.Lower == "" {
		r.LowerInclusive = false
	}

	if r.Upper == "" {
		r.UpperInclusive = false
	}

	if r.Lower != "" && r.Upper != "" {
		c := Compare(r.Lower, r.Upper)
		if c > 0 || (c == 0 && !(r.LowerInclusive && r.UpperInclusive)) {
			return Restriction{}, fmt.Errorf("%w: %q", errInvertedBounds, spec)
		}
	}

	return r, nil
}

func overlaps(previous, next Restriction) bool {
	if previous.Upper == "" || next.Lower == "" {
		return true
	}

	c := Compare(previous.Upper, next.Lower)

	return c > 0 || (c == 0 && previous.UpperInclusive && next.LowerInclusive)
}

// Contains reports whether version satisfies any restriction.
func (r Range) Contains(version string) bool {
	for _, restriction := range r.Restrictions {
		if restriction.Contains(version) {
			return true
		}
	}

	return false
}

// String renders the range in Maven notation.
func (r Range) String() string {
	if r.Recommended != "" {
		return r.Recommended
	}

	parts := make([]string, len(r.Restrictions))
	for i, restriction := range r.Restrictions {
		parts[i] = restriction.String()
	}

	return strings.Join(parts, ",")
}
