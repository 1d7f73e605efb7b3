// Package position allocates ordering keys for tasks within a board column.
//
// A key is a single tag byte followed by a zero-padded decimal segment, for
// example "a0000001000". Because every key has the same width, lexicographic
// order equals numeric order, so keys can be compared as plain strings and
// sorted by MongoDB without decoding.
//
// New keys are derived from the neighbours a task is dropped between: the
// midpoint when both neighbours are known, or a fixed Step away from the only
// known neighbour at either end of the column. Repeated inserts at one spot
// halve the gap each time, so after roughly log2(Step) inserts the gap closes.
// AllocateChecked reports that as ErrExhausted; callers then rebalance the
// column with Spread.
package position

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// Tag is the format prefix of every key.
	Tag = 'a'
	// Width is the number of decimal digits after the tag.
	Width = 10
	// Step is the distance placed between a new key and its only neighbour.
	Step uint64 = 1000
	// Max is the largest numeric segment a key can hold.
	Max uint64 = 9_999_999_999
)

var (
	// ErrExhausted means no key fits strictly between the requested neighbours.
	ErrExhausted = errors.New("position: no room between neighbours")
	// ErrMalformedKey means a key does not match the tag+digits format.
	ErrMalformedKey = errors.New("position: malformed key")
)

// Initial returns the default key for a task in an empty column.
func Initial() string {
	return Format(0)
}

// Format renders a numeric segment as a key. Values above Max are clamped.
func Format(n uint64) string {
	if n > Max {
		n = Max
	}
	return fmt.Sprintf("%c%0*d", Tag, Width, n)
}

// Parse extracts the numeric segment of a key.
func Parse(key string) (uint64, error) {
	if len(key) != Width+1 || key[0] != Tag {
		return 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	digits := key[1:]
	if strings.TrimLeft(digits, "0123456789") != "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	return n, nil
}

// Allocator computes keys. It logs malformed input rather than failing.
type Allocator struct {
	log *zap.Logger
}

// New returns an Allocator. A nil logger discards log output.
func New(logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{log: logger}
}

// Allocate returns a key for a task placed after before and ahead of after.
// An empty string means that side has no neighbour.
//
// Allocate never fails. When the gap is exhausted it returns a key equal to
// one of the neighbours; use AllocateChecked to detect that.
func (a *Allocator) Allocate(before, after string) string {
	switch {
	case before == "" && after == "":
		return Initial()
	case before == "":
		hi := a.parse(after)
		if hi < Step {
			return Format(0)
		}
		return Format(hi - Step)
	case after == "":
		lo := a.parse(before)
		if lo > Max-Step {
			return Format(Max)
		}
		return Format(lo + Step)
	default:
		lo, hi := a.parse(before), a.parse(after)
		if hi < lo {
			lo, hi = hi, lo
		}
		return Format(lo + (hi-lo)/2)
	}
}

// AllocateChecked is Allocate plus a guarantee: the returned key sorts
// strictly after before (if given) and strictly ahead of after (if given).
// Otherwise it returns ErrExhausted.
func (a *Allocator) AllocateChecked(before, after string) (string, error) {
	key := a.Allocate(before, after)
	if before != "" && key <= before {
		return "", ErrExhausted
	}
	if after != "" && key >= after {
		return "", ErrExhausted
	}
	return key, nil
}

// Spread returns n evenly spaced keys in ascending order, Step apart and
// starting at Step, leaving room to insert at the head of the column.
func Spread(n int) []string {
	if n <= 0 {
		return nil
	}
	keys := make([]string, n)
	for i := range keys {
		keys[i] = Format(uint64(i+1) * Step)
	}
	return keys
}

// parse treats malformed keys as the lowest position.
func (a *Allocator) parse(key string) uint64 {
	n, err := Parse(key)
	if err != nil {
		a.log.Warn("treating malformed position key as lowest", zap.String("key", key), zap.Error(err))
		return 0
	}
	return n
}
