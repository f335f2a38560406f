package input

import (
	"github.com/zsiec/metamix/internal/clock"
	"github.com/zsiec/metamix/internal/h264"
	"github.com/zsiec/metamix/internal/metadata"
	"github.com/zsiec/metamix/internal/scte35"
)

// Input is one configured or virtual source of captions and ad cues: the
// injector queries it for metadata in a clock window, the extractor (for
// real, non-virtual inputs) feeds it, and the control surface lists and
// selects it.
type Input interface {
	Spec() Spec
	Caps() Capabilities

	// IsRestartScheduled reports whether ScheduleRestart was called since
	// the last time the extractor observed it. ScheduleRestart marks a
	// pending restart request (from the control surface); the extractor
	// clears it once observed between frames.
	IsRestartScheduled() bool
	ScheduleRestart()
	ClearRestartScheduled()

	// QuerySEI returns every caption payload assigned to this input in
	// [since, until), falling back to a synthesized payload when none is
	// found so the caller always has something to inject.
	QuerySEI(since, until clock.TS) []metadata.Metadata[h264.SEIPayload]

	// QuerySCTE returns every ad cue assigned to this input in
	// [since, until). Unlike QuerySEI there is no synthesized fallback:
	// SCTE-35 is not injected into the output stream, only exposed via the
	// queue and control surface, so an empty result is a valid answer.
	QuerySCTE(since, until clock.TS) []metadata.Metadata[scte35.SpliceInfoSection]
}

// queryWindowTS picks the timestamp a synthesized fallback payload is
// stamped at: the latest point still inside [since, until), so it sorts
// after anything real this window could have contained.
func queryWindowTS(since, until clock.TS) clock.TS {
	if until-1 > since {
		return until - 1
	}
	return since
}
