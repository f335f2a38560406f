// Package scte35 encodes and decodes SCTE-35 splice_info_section messages:
// the ad-insertion cues (splice commands and segmentation descriptors) that
// ride alongside the video essence and tell a downstream splicer where a
// break may be cut in or out.
package scte35

import (
	"fmt"

	"github.com/zsiec/metamix/internal/bitio"
)

const (
	tableID                 = 0xFC
	minSpliceInfoSectionLen = 14
	maxSectionLength        = 4093
	headerLen               = 3 // table_id + section_syntax_indicator/private_indicator/sap_type/section_length

	SpliceNullType             uint32 = 0x00
	SpliceScheduleType         uint32 = 0x04
	SpliceInsertType           uint32 = 0x05
	TimeSignalType             uint32 = 0x06
	BandwidthReservationType   uint32 = 0x07
	PrivateCommandType         uint32 = 0xFF
)

// ParseError reports a splice_info_section that violates one of SCTE-35's
// structural or semantic invariants.
type ParseError struct {
	Op     string
	Reason string
}

func (e *ParseError) Error() string { return fmt.Sprintf("scte35: %s: %s", e.Op, e.Reason) }

// SpliceCommand is the interface implemented by every splice_command body.
type SpliceCommand interface {
	Type() uint32
	decode(r *bitio.Reader)
	encode(w *bitio.Writer)
	commandLength() int
}

// SpliceDescriptor is the interface implemented by every splice_descriptor body.
type SpliceDescriptor interface {
	Tag() uint32
	decode(data []byte) error
	encode() ([]byte, error)
	descriptorLength() int
}

// SpliceDescriptors is an ordered list of splice_descriptor entries.
type SpliceDescriptors []SpliceDescriptor

// SpliceTime carries an optional PTS time; a nil PTSTime means
// time_specified_flag was false (splice on the next opportunity).
type SpliceTime struct {
	PTSTime *uint64
}

func decodeSpliceTime(r *bitio.Reader) SpliceTime {
	if r.Bit() {
		r.Skip(6)
		pts := r.Uint33()
		return SpliceTime{PTSTime: &pts}
	}
	r.Skip(7)
	return SpliceTime{}
}

func encodeSpliceTime(w *bitio.Writer, st SpliceTime) {
	w.PutBit(st.PTSTime != nil)
	if st.PTSTime != nil {
		w.PutUint32(6, 0x3F)
		w.PutUint33(*st.PTSTime)
	} else {
		w.PutUint32(7, 0x7F)
	}
}

func spliceTimeLength(st SpliceTime) int {
	if st.PTSTime != nil {
		return 1 + 6 + 33
	}
	return 1 + 7
}

// BreakDuration specifies the nominal duration of a splice-out/in pair.
type BreakDuration struct {
	AutoReturn bool
	Duration   uint64
}

func decodeBreakDuration(r *bitio.Reader) *BreakDuration {
	bd := &BreakDuration{}
	bd.AutoReturn = r.Bit()
	r.Skip(6)
	bd.Duration = r.Uint33()
	return bd
}

func encodeBreakDuration(w *bitio.Writer, bd *BreakDuration) {
	w.PutBit(bd.AutoReturn)
	w.PutUint32(6, 0x3F)
	w.PutUint33(bd.Duration)
}

// SpliceInfoSection is the top-level SCTE-35 structure: a single splice
// command plus zero or more descriptors, CRC-protected as a whole.
type SpliceInfoSection struct {
	SAPType           uint32
	PTSAdjustment     uint64
	Tier              uint32
	SpliceCommand     SpliceCommand
	SpliceDescriptors SpliceDescriptors
}

// Bound scans the head of data for one complete splice_info_section: it
// tolerates and strips a single leading 0x00 pointer_field byte, then reads
// just far enough to learn section_length, and returns exactly that many
// bytes from the section header onward. It performs no semantic validation
// of the header fields beyond bounds-checking section_length itself; that's
// DecodeBytes's job. Callers that receive a buffer possibly followed by
// more data (or padding) use Bound to frame one section before decoding it.
func Bound(data []byte) ([]byte, error) {
	if len(data) > 0 && data[0] == 0x00 {
		data = data[1:]
	}
	if len(data) < minSpliceInfoSectionLen {
		return nil, &ParseError{Op: "bound", Reason: fmt.Sprintf("section too short: %d bytes", len(data))}
	}

	r := bitio.NewReader(data)
	r.Skip(8) // table_id
	r.Skip(4) // section_syntax_indicator, private_indicator, sap_type
	sectionLength := int(r.Uint32(12))
	if sectionLength > maxSectionLength {
		return nil, &ParseError{Op: "section_length", Reason: fmt.Sprintf("%d exceeds maximum %d", sectionLength, maxSectionLength)}
	}

	total := headerLen + sectionLength
	if total < minSpliceInfoSectionLen {
		return nil, &ParseError{Op: "bound", Reason: fmt.Sprintf("section_length %d yields a section shorter than the minimum %d bytes", sectionLength, minSpliceInfoSectionLen)}
	}
	if total > len(data) {
		return nil, &ParseError{Op: "bound", Reason: fmt.Sprintf("section_length %d needs %d bytes, only %d available", sectionLength, total, len(data))}
	}
	return data[:total], nil
}

// DecodeBytes parses a binary splice_info_section, verifying its CRC32.
func DecodeBytes(data []byte) (*SpliceInfoSection, error) {
	if len(data) < minSpliceInfoSectionLen {
		return nil, fmt.Errorf("scte35: section too short: %d bytes", len(data))
	}
	if err := VerifyCRC32(data); err != nil {
		return nil, err
	}

	sis := &SpliceInfoSection{}
	r := bitio.NewReader(data)

	gotTableID := r.Uint32(8)
	if gotTableID != tableID {
		return nil, &ParseError{Op: "table_id", Reason: fmt.Sprintf("got 0x%02X, want 0x%02X", gotTableID, tableID)}
	}
	if sectionSyntaxIndicator := r.Bit(); sectionSyntaxIndicator {
		return nil, &ParseError{Op: "section_syntax_indicator", Reason: "must be 0"}
	}
	if privateIndicator := r.Bit(); privateIndicator {
		return nil, &ParseError{Op: "private_indicator", Reason: "must be 0"}
	}
	sis.SAPType = r.Uint32(2)
	sectionLength := int(r.Uint32(12))
	if sectionLength > maxSectionLength {
		return nil, &ParseError{Op: "section_length", Reason: fmt.Sprintf("%d exceeds maximum %d", sectionLength, maxSectionLength)}
	}
	if remaining := len(data) - headerLen; sectionLength > remaining {
		return nil, &ParseError{Op: "section_length", Reason: fmt.Sprintf("%d exceeds remaining %d bytes", sectionLength, remaining)}
	}

	if protocolVersion := r.Uint32(8); protocolVersion != 0 {
		return nil, &ParseError{Op: "protocol_version", Reason: fmt.Sprintf("got %d, want 0", protocolVersion)}
	}
	if encryptedPacket := r.Bit(); encryptedPacket {
		return nil, &ParseError{Op: "encrypted_packet", Reason: "encrypted SCTE-35 packets are not supported"}
	}
	r.Skip(6) // encryption_algorithm
	sis.PTSAdjustment = r.Uint33()
	r.Skip(8) // cw_index
	sis.Tier = r.Uint32(12)

	spliceCommandLength := int(r.Uint32(12))
	spliceCommandType := r.Uint32(8)

	var cmdData []byte
	if spliceCommandLength == 0xFFF {
		// Legacy encoders leave splice_command_length unspecified; the
		// command runs until section_length tells us where the
		// descriptor loop begins.
		remaining := sectionLength - 11
		cmdData = r.Bytes(remaining - 4)
	} else {
		cmdData = r.Bytes(spliceCommandLength)
	}
	if r.Err() != nil {
		return sis, r.Err()
	}

	cmd, cmdLen, err := decodeSpliceCommand(spliceCommandType, cmdData)
	if err != nil {
		return sis, fmt.Errorf("scte35: decoding command type 0x%02X: %w", spliceCommandType, err)
	}
	sis.SpliceCommand = cmd

	var descData []byte
	if spliceCommandLength == 0xFFF {
		if cmdLen+2 > len(cmdData) {
			return sis, nil
		}
		descLoopLen := int(cmdData[cmdLen])<<8 | int(cmdData[cmdLen+1])
		descData = cmdData[cmdLen+2:]
		if descLoopLen < len(descData) {
			descData = descData[:descLoopLen]
		}
	} else {
		descriptorLoopLength := int(r.Uint32(16))
		if r.Err() != nil {
			return sis, r.Err()
		}
		descData = r.Bytes(descriptorLoopLength)
		if r.Err() != nil {
			return sis, r.Err()
		}
	}

	descs, err := decodeSpliceDescriptors(descData)
	if err != nil {
		return sis, err
	}
	sis.SpliceDescriptors = descs

	return sis, nil
}

// Encode serializes the section to binary, including a freshly computed CRC32.
func (sis *SpliceInfoSection) Encode() ([]byte, error) {
	sectionLen := sis.sectionLength()
	totalLen := 3 + sectionLen

	w := bitio.NewWriter(totalLen)

	w.PutUint32(8, tableID)
	w.PutBit(false) // section_syntax_indicator
	w.PutBit(false) // private_indicator
	w.PutUint32(2, sis.SAPType)
	w.PutUint32(12, uint32(sectionLen))

	w.PutUint32(8, 0) // protocol_version
	w.PutBit(false)   // encrypted_packet
	w.PutUint32(6, 0) // encryption_algorithm
	w.PutUint33(sis.PTSAdjustment)
	w.PutUint32(8, 0) // cw_index
	w.PutUint32(12, sis.Tier)

	if sis.SpliceCommand != nil {
		w.PutUint32(12, uint32(sis.SpliceCommand.commandLength()))
		w.PutUint32(8, sis.SpliceCommand.Type())
		sis.SpliceCommand.encode(w)
	} else {
		w.PutUint32(12, 0)
		w.PutUint32(8, SpliceNullType)
	}

	descLoopLen := sis.descriptorLoopLength()
	w.PutUint32(16, uint32(descLoopLen))
	for _, desc := range sis.SpliceDescriptors {
		descBytes, err := desc.encode()
		if err != nil {
			return nil, err
		}
		w.PutBytes(descBytes)
	}

	crc := crc32MPEG2(w.Bytes()[:totalLen-4])
	w.PutUint32(32, crc)

	return w.Bytes(), nil
}

func (sis *SpliceInfoSection) sectionLength() int {
	bits := 8 + 1 + 6 + 33 + 8 + 12 // protocol_version..tier
	bits += 12 + 8                  // splice_command_length + splice_command_type

	if sis.SpliceCommand != nil {
		bits += sis.SpliceCommand.commandLength() * 8
	}

	bits += 16 // descriptor_loop_length
	bits += sis.descriptorLoopLength() * 8
	bits += 32 // CRC_32

	return bits / 8
}

func (sis *SpliceInfoSection) descriptorLoopLength() int {
	length := 0
	for _, d := range sis.SpliceDescriptors {
		length += 2 + d.descriptorLength() // tag(1) + length(1) + body
	}
	return length
}

func decodeSpliceCommand(cmdType uint32, data []byte) (cmd SpliceCommand, consumed int, err error) {
	switch cmdType {
	case SpliceNullType:
		cmd = &SpliceNull{}
	case SpliceScheduleType:
		cmd = &SpliceSchedule{}
	case SpliceInsertType:
		cmd = &SpliceInsert{}
	case TimeSignalType:
		cmd = &TimeSignal{}
	case BandwidthReservationType:
		cmd = &BandwidthReservation{}
	case PrivateCommandType:
		cmd = &PrivateCommand{}
	default:
		// Unrecognized command type: treat as an opaque null so a single
		// unknown cue doesn't take down the whole extraction pipeline.
		return &SpliceNull{}, 0, nil
	}

	r := bitio.NewReader(data)
	cmd.decode(r)
	if r.Err() != nil {
		return cmd, 0, r.Err()
	}
	return cmd, cmd.commandLength(), nil
}

func decodeSpliceDescriptors(data []byte) ([]SpliceDescriptor, error) {
	var descs []SpliceDescriptor
	offset := 0
	for offset < len(data) {
		if offset+2 > len(data) {
			break
		}
		tag := uint32(data[offset])
		length := int(data[offset+1])
		end := offset + 2 + length
		if end > len(data) {
			break
		}

		if length < 4 {
			offset = end
			continue
		}
		identifier := uint32(data[offset+2])<<24 | uint32(data[offset+3])<<16 |
			uint32(data[offset+4])<<8 | uint32(data[offset+5])
		if identifier != cueIdentifier {
			offset = end
			continue
		}

		var sd SpliceDescriptor
		switch tag {
		case AvailDescriptorTag:
			sd = &AvailDescriptor{}
		case DTMFDescriptorTag:
			sd = &DTMFDescriptor{}
		case SegmentationDescriptorTag:
			sd = &SegmentationDescriptor{}
		case TimeDescriptorTag:
			sd = &TimeDescriptor{}
		default:
			return descs, &ParseError{Op: "descriptor", Reason: fmt.Sprintf("unknown tag %#x", tag)}
		}
		if err := sd.decode(data[offset:end]); err != nil {
			return descs, err
		}
		descs = append(descs, sd)
		offset = end
	}
	return descs, nil
}
