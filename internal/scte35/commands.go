package scte35

import "github.com/zsiec/metamix/internal/bitio"

// SpliceNull is a no-op command used as a heartbeat / carrier signal.
type SpliceNull struct{}

func (cmd *SpliceNull) Type() uint32            { return SpliceNullType }
func (cmd *SpliceNull) decode(_ *bitio.Reader)  {}
func (cmd *SpliceNull) encode(_ *bitio.Writer)  {}
func (cmd *SpliceNull) commandLength() int      { return 0 }

// BandwidthReservation reserves bandwidth for a future splice_insert without
// describing one; it carries no fields of its own.
type BandwidthReservation struct{}

func (cmd *BandwidthReservation) Type() uint32           { return BandwidthReservationType }
func (cmd *BandwidthReservation) decode(_ *bitio.Reader) {}
func (cmd *BandwidthReservation) encode(_ *bitio.Writer) {}
func (cmd *BandwidthReservation) commandLength() int     { return 0 }

// PrivateCommand carries a vendor-defined identifier plus opaque payload
// bytes that this system does not interpret.
type PrivateCommand struct {
	Identifier uint32
	Data       []byte
}

func (cmd *PrivateCommand) Type() uint32 { return PrivateCommandType }

func (cmd *PrivateCommand) decode(r *bitio.Reader) {
	cmd.Identifier = r.Uint32(32)
	n := r.BitsLeft() / 8
	cmd.Data = r.Bytes(n)
}

func (cmd *PrivateCommand) encode(w *bitio.Writer) {
	w.PutUint32(32, cmd.Identifier)
	w.PutBytes(cmd.Data)
}

func (cmd *PrivateCommand) commandLength() int { return 4 + len(cmd.Data) }

// TimeSignal marks a splice point in time without the avail bookkeeping
// splice_insert carries; segmentation_descriptors attached to the same
// section say what the point means.
type TimeSignal struct {
	SpliceTime SpliceTime
}

func (cmd *TimeSignal) Type() uint32 { return TimeSignalType }

func (cmd *TimeSignal) decode(r *bitio.Reader) {
	cmd.SpliceTime = decodeSpliceTime(r)
}

func (cmd *TimeSignal) encode(w *bitio.Writer) {
	encodeSpliceTime(w, cmd.SpliceTime)
}

func (cmd *TimeSignal) commandLength() int {
	return spliceTimeLength(cmd.SpliceTime) / 8
}

// SpliceInsert signals a splice point in the stream, with enough bookkeeping
// (avail numbering, break duration, return behavior) for traditional linear
// ad insertion.
//
// Encode always emits a component-mode splice (program_splice_flag=0) with
// component_count=0, matching what this system's own splice generator produces; decode accepts
// the full standard layout, including true component-mode sections and
// a program-level pts_time, so the recovered SpliceTime and Components are
// populated even though Encode won't round-trip them back out.
type SpliceInsert struct {
	SpliceEventID              uint32
	SpliceEventCancelIndicator bool
	OutOfNetworkIndicator      bool
	ProgramSpliceFlag          bool
	SpliceImmediateFlag        bool
	SpliceTime                 *SpliceTime
	Components                 []SpliceInsertComponent
	BreakDuration              *BreakDuration
	UniqueProgramID            uint32
	AvailNum                   uint32
	AvailsExpected             uint32
}

// SpliceInsertComponent is one entry of a component-mode splice_insert.
type SpliceInsertComponent struct {
	ComponentTag uint8
	SpliceTime   *SpliceTime
}

func (cmd *SpliceInsert) Type() uint32 { return SpliceInsertType }

func (cmd *SpliceInsert) decode(r *bitio.Reader) {
	cmd.SpliceEventID = r.Uint32(32)
	cmd.SpliceEventCancelIndicator = r.Bit()
	r.Skip(7) // reserved

	if cmd.SpliceEventCancelIndicator {
		return
	}

	cmd.OutOfNetworkIndicator = r.Bit()
	cmd.ProgramSpliceFlag = r.Bit()
	durationFlag := r.Bit()
	cmd.SpliceImmediateFlag = r.Bit()
	r.Skip(4) // reserved

	if cmd.ProgramSpliceFlag {
		if !cmd.SpliceImmediateFlag {
			st := decodeSpliceTime(r)
			cmd.SpliceTime = &st
		}
	} else {
		componentCount := int(r.Uint32(8))
		cmd.Components = make([]SpliceInsertComponent, componentCount)
		for i := range cmd.Components {
			cmd.Components[i].ComponentTag = uint8(r.Uint32(8))
			if !cmd.SpliceImmediateFlag {
				st := decodeSpliceTime(r)
				cmd.Components[i].SpliceTime = &st
			}
		}
	}

	if durationFlag {
		cmd.BreakDuration = decodeBreakDuration(r)
	}

	cmd.UniqueProgramID = r.Uint32(16)
	cmd.AvailNum = r.Uint32(8)
	cmd.AvailsExpected = r.Uint32(8)
}

func (cmd *SpliceInsert) encode(w *bitio.Writer) {
	w.PutUint32(32, cmd.SpliceEventID)
	w.PutBit(cmd.SpliceEventCancelIndicator)
	w.PutUint32(7, 0x7F) // reserved

	if cmd.SpliceEventCancelIndicator {
		return
	}

	w.PutBit(cmd.OutOfNetworkIndicator)
	w.PutBit(false) // program_splice_flag: this encoder always uses component mode with zero components
	w.PutBit(cmd.BreakDuration != nil)
	w.PutBit(cmd.SpliceImmediateFlag)
	w.PutUint32(4, 0x0F) // reserved

	w.PutUint32(8, 0) // component_count = 0

	if cmd.BreakDuration != nil {
		encodeBreakDuration(w, cmd.BreakDuration)
	}
	w.PutUint32(16, cmd.UniqueProgramID)
	w.PutUint32(8, cmd.AvailNum)
	w.PutUint32(8, cmd.AvailsExpected)
}

func (cmd *SpliceInsert) commandLength() int {
	if cmd.SpliceEventCancelIndicator {
		return (32 + 1 + 7) / 8
	}
	bits := 32 + 1 + 7
	bits += 1 + 1 + 1 + 1 + 4 // out_of_network + program_splice + duration_flag + immediate + reserved
	bits += 8                 // component_count

	if cmd.BreakDuration != nil {
		bits += 1 + 6 + 33
	}
	bits += 16 + 8 + 8
	return bits / 8
}

// SpliceScheduleEvent is one entry of a splice_schedule command: a future
// splice point given in UTC wall-clock time rather than stream PTS.
type SpliceScheduleEvent struct {
	SpliceEventID              uint32
	SpliceEventCancelIndicator bool
	OutOfNetworkIndicator      bool
	ProgramSpliceFlag          bool
	UTCSpliceTime              uint32
	Components                 []SpliceScheduleComponent
	BreakDuration              *BreakDuration
	UniqueProgramID            uint32
	AvailNum                   uint32
	AvailsExpected             uint32
}

// SpliceScheduleComponent is one component entry of a component-mode
// splice_schedule event.
type SpliceScheduleComponent struct {
	ComponentTag  uint8
	UTCSpliceTime uint32
}

// SpliceSchedule announces a list of future splice points ahead of time.
type SpliceSchedule struct {
	Events []SpliceScheduleEvent
}

func (cmd *SpliceSchedule) Type() uint32 { return SpliceScheduleType }

func (cmd *SpliceSchedule) decode(r *bitio.Reader) {
	count := int(r.Uint32(8))
	cmd.Events = make([]SpliceScheduleEvent, count)
	for i := range cmd.Events {
		ev := &cmd.Events[i]
		ev.SpliceEventID = r.Uint32(32)
		ev.SpliceEventCancelIndicator = r.Bit()
		r.Skip(7)
		if ev.SpliceEventCancelIndicator {
			continue
		}

		ev.OutOfNetworkIndicator = r.Bit()
		ev.ProgramSpliceFlag = r.Bit()
		durationFlag := r.Bit()
		r.Skip(5)

		if ev.ProgramSpliceFlag {
			ev.UTCSpliceTime = r.Uint32(32)
		} else {
			componentCount := int(r.Uint32(8))
			ev.Components = make([]SpliceScheduleComponent, componentCount)
			for j := range ev.Components {
				ev.Components[j].ComponentTag = uint8(r.Uint32(8))
				ev.Components[j].UTCSpliceTime = r.Uint32(32)
			}
		}

		if durationFlag {
			ev.BreakDuration = decodeBreakDuration(r)
		}

		ev.UniqueProgramID = r.Uint32(16)
		ev.AvailNum = r.Uint32(8)
		ev.AvailsExpected = r.Uint32(8)
	}
}

func (cmd *SpliceSchedule) encode(w *bitio.Writer) {
	w.PutUint32(8, uint32(len(cmd.Events)))
	for _, ev := range cmd.Events {
		w.PutUint32(32, ev.SpliceEventID)
		w.PutBit(ev.SpliceEventCancelIndicator)
		w.PutUint32(7, 0x7F)
		if ev.SpliceEventCancelIndicator {
			continue
		}

		w.PutBit(ev.OutOfNetworkIndicator)
		w.PutBit(ev.ProgramSpliceFlag)
		w.PutBit(ev.BreakDuration != nil)
		w.PutUint32(5, 0x1F)

		if ev.ProgramSpliceFlag {
			w.PutUint32(32, ev.UTCSpliceTime)
		} else {
			w.PutUint32(8, uint32(len(ev.Components)))
			for _, c := range ev.Components {
				w.PutUint32(8, uint32(c.ComponentTag))
				w.PutUint32(32, c.UTCSpliceTime)
			}
		}

		if ev.BreakDuration != nil {
			encodeBreakDuration(w, ev.BreakDuration)
		}

		w.PutUint32(16, ev.UniqueProgramID)
		w.PutUint32(8, ev.AvailNum)
		w.PutUint32(8, ev.AvailsExpected)
	}
}

func (cmd *SpliceSchedule) commandLength() int {
	bits := 8
	for _, ev := range cmd.Events {
		bits += 32 + 1 + 7
		if ev.SpliceEventCancelIndicator {
			continue
		}
		bits += 1 + 1 + 1 + 5
		if ev.ProgramSpliceFlag {
			bits += 32
		} else {
			bits += 8
			bits += len(ev.Components) * (8 + 32)
		}
		if ev.BreakDuration != nil {
			bits += 1 + 6 + 33
		}
		bits += 16 + 8 + 8
	}
	return bits / 8
}
