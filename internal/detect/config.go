// Package detect decides whether newly opened documents are big and
// switches configured features off for the ones that are.
//
// The Detector owns the per-document verdicts and the two-phase dispatch:
// immediate disables run while the document is still opening, deferred
// ones wait behind a one-shot subscription until the open completes. The
// Engine wraps a Detector with configuration validation and the bus
// subscription that drives it.
package detect

import (
	"fmt"
	"strings"
)

// Unit is the measure a size threshold is expressed in.
type Unit uint8

// Supported units.
const (
	// UnitBytes compares raw byte counts.
	UnitBytes Unit = iota

	// UnitMiB compares mebibyte counts, rounded half up.
	UnitMiB
)

// String returns the configuration spelling of the unit.
func (u Unit) String() string {
	switch u {
	case UnitBytes:
		return "bytes"
	case UnitMiB:
		return "MiB"
	default:
		return fmt.Sprintf("unit(%d)", uint8(u))
	}
}

// valid reports whether u is one of the declared units.
func (u Unit) valid() bool {
	return u == UnitBytes || u == UnitMiB
}

// ParseUnit converts a configuration string to a Unit.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "b", "byte", "bytes":
		return UnitBytes, nil
	case "mib":
		return UnitMiB, nil
	default:
		return UnitBytes, fmt.Errorf("%q: %w", s, ErrBadUnit)
	}
}

// PredicateFunc decides whether a document is big beyond the plain
// threshold comparison. It receives the document ID and the size already
// converted to the configured unit.
type PredicateFunc func(docID string, sizeInUnit int64) bool

// Config is one detection configuration snapshot. The engine never
// mutates an installed snapshot; reconfiguration swaps the whole value.
type Config struct {
	// Threshold is the size at or above which a document is big,
	// expressed in Unit.
	Threshold int64

	// Unit is the measure Threshold is expressed in.
	Unit Unit

	// Patterns restricts detection to documents whose path matches one
	// of the glob patterns ("*" crosses path separators). Mutually
	// exclusive with Predicate. Empty means every document.
	Patterns []string

	// Predicate supplements the threshold: a document is also big when
	// the predicate accepts it. Mutually exclusive with Patterns.
	Predicate PredicateFunc

	// Features names the features to disable for big documents, in
	// dispatch order.
	Features []string
}

// clone deep-copies the snapshot so later caller mutations cannot reach
// the detector.
func (c Config) clone() *Config {
	out := c
	if c.Patterns != nil {
		out.Patterns = append([]string(nil), c.Patterns...)
	}
	if c.Features != nil {
		out.Features = append([]string(nil), c.Features...)
	}
	return &out
}
