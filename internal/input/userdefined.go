package input

import (
	"sync/atomic"

	"github.com/zsiec/metamix/internal/clock"
	"github.com/zsiec/metamix/internal/h264"
	"github.com/zsiec/metamix/internal/metadata"
	"github.com/zsiec/metamix/internal/scte35"
)

// UserDefined is a configured, real input backed by an extractor thread:
// queries drain whatever that extractor has pushed into the shared queue
// group for this input's id.
type UserDefined struct {
	spec  Spec
	group *metadata.Group

	seiCap  atomic.Bool
	scteCap atomic.Bool

	restartScheduled atomic.Bool
}

// NewUserDefined returns a configured input whose metadata is drained from
// group, the queue group shared with its extractor and the injector.
func NewUserDefined(spec Spec, group *metadata.Group) *UserDefined {
	return &UserDefined{spec: spec, group: group}
}

func (u *UserDefined) Spec() Spec { return u.spec }

// Caps reflects which kinds this input's extractor has classified its
// container as carrying, set via DeclareSEI/DeclareSCTE once the extractor
// has opened the source and classified its streams.
func (u *UserDefined) Caps() Capabilities {
	return Capabilities{SEI: u.seiCap.Load(), SCTE: u.scteCap.Load()}
}

// DeclareSEI marks this input as a source of caption metadata, called once
// by its extractor after stream classification finds a SEI-bearing stream.
func (u *UserDefined) DeclareSEI() { u.seiCap.Store(true) }

// DeclareSCTE marks this input as a source of ad cues, called once by its
// extractor after stream classification finds an SCTE-35 stream.
func (u *UserDefined) DeclareSCTE() { u.scteCap.Store(true) }

func (u *UserDefined) IsRestartScheduled() bool { return u.restartScheduled.Load() }
func (u *UserDefined) ScheduleRestart()         { u.restartScheduled.Store(true) }
func (u *UserDefined) ClearRestartScheduled()   { u.restartScheduled.Store(false) }

func (u *UserDefined) QuerySEI(since, until clock.TS) []metadata.Metadata[h264.SEIPayload] {
	found := u.group.SEI().PopAll(u.spec.ID, since, until)
	if len(found) > 0 {
		return found
	}
	ts := queryWindowTS(since, until)
	return []metadata.Metadata[h264.SEIPayload]{
		{InputID: u.spec.ID, PTS: ts, DTS: ts, Order: h264.OrderPadding, Value: h264.EmptyPaddingSEI()},
	}
}

func (u *UserDefined) QuerySCTE(since, until clock.TS) []metadata.Metadata[scte35.SpliceInfoSection] {
	return u.group.SCTE().PopAll(u.spec.ID, since, until)
}
