package input

import (
	"github.com/zsiec/metamix/internal/clock"
	"github.com/zsiec/metamix/internal/h264"
	"github.com/zsiec/metamix/internal/metadata"
	"github.com/zsiec/metamix/internal/scte35"
)

// clearName is the reserved name of the virtual "clear" input; configured
// inputs may not use it.
const clearName = "clear"

// Clear is the always-present virtual input (id 0) selected to blank an
// output kind: it never has a backing container, and every query returns a
// freshly synthesized reset payload rather than anything queued.
type Clear struct {
	spec Spec
}

// NewClear returns the singleton-shaped virtual clear input.
func NewClear() *Clear {
	return &Clear{
		spec: Spec{
			ID:        ClearID,
			Name:      clearName,
			IsVirtual: true,
		},
	}
}

func (c *Clear) Spec() Spec { return c.spec }

func (c *Clear) Caps() Capabilities { return Capabilities{SEI: true, SCTE: true} }

// Restart scheduling is meaningless for a virtual input with no backing
// extractor thread; these are permanent no-ops.
func (c *Clear) IsRestartScheduled() bool { return false }
func (c *Clear) ScheduleRestart()         {}
func (c *Clear) ClearRestartScheduled()   {}

func (c *Clear) QuerySEI(since, until clock.TS) []metadata.Metadata[h264.SEIPayload] {
	ts := queryWindowTS(since, until)
	return []metadata.Metadata[h264.SEIPayload]{
		{InputID: c.spec.ID, PTS: ts, DTS: ts, Order: h264.OrderReset, Value: h264.CCResetSEI()},
	}
}

func (c *Clear) QuerySCTE(since, until clock.TS) []metadata.Metadata[scte35.SpliceInfoSection] {
	ts := queryWindowTS(since, until)
	return []metadata.Metadata[scte35.SpliceInfoSection]{
		{
			InputID: c.spec.ID,
			PTS:     ts,
			DTS:     ts,
			Value: scte35.SpliceInfoSection{
				Tier:          0xFFF,
				SpliceCommand: &scte35.SpliceNull{},
			},
		},
	}
}
