package metadata

import (
	"github.com/zsiec/metamix/internal/h264"
	"github.com/zsiec/metamix/internal/scte35"
)

// Group bundles the one queue per metadata kind this system extracts:
// closed-caption SEI payloads and SCTE-35 ad cues. A single Group is shared
// across every input's extractor and the output injector.
type Group struct {
	sei  *Queue[h264.SEIPayload]
	scte *Queue[scte35.SpliceInfoSection]
}

// NewGroup returns an empty Group.
func NewGroup() *Group {
	return &Group{
		sei:  NewQueue[h264.SEIPayload](),
		scte: NewQueue[scte35.SpliceInfoSection](),
	}
}

// SEI returns the closed-caption queue.
func (g *Group) SEI() *Queue[h264.SEIPayload] { return g.sei }

// SCTE returns the ad-cue queue.
func (g *Group) SCTE() *Queue[scte35.SpliceInfoSection] { return g.scte }

// DropID removes every queued item belonging to id across both queues,
// returning the total number removed.
func (g *Group) DropID(id InputID) int {
	return g.sei.DropID(id) + g.scte.DropID(id)
}
