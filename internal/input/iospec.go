// Package input holds the input registry: the stable set of configured
// video/caption/ad-cue sources an operator can select between, plus the
// always-present virtual "clear" input used to blank an output kind.
package input

// ID identifies a configured input. 0 is reserved for the virtual "clear"
// input.
type ID = uint32

// ClearID is the id of the always-present virtual "clear" input.
const ClearID ID = 0

// Spec describes one configured input: its identity and the container
// locations an extractor opens for it.
type Spec struct {
	ID           ID
	Name         string
	Source       string
	Sink         string
	SourceFormat string
	SinkFormat   string
	IsVirtual    bool
}

// Capabilities declares which metadata kinds an input can produce. The
// contract: an input that does not declare a capability still answers
// queries for that kind (via a synthesized fallback), but a selection onto
// it for that kind is logged as a mismatch.
type Capabilities struct {
	SEI  bool
	SCTE bool
}

// Has reports whether the capability set includes kind, selected by name
// for use from the control surface where kinds arrive as strings.
func (c Capabilities) Has(kind string) bool {
	switch kind {
	case "sei":
		return c.SEI
	case "scte":
		return c.SCTE
	default:
		return false
	}
}
