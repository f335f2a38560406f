package scte35

import "github.com/zsiec/metamix/internal/bitio"

const (
	// cueIdentifier is the "CUEI" ASCII identifier required of every
	// splice_descriptor this system recognizes.
	cueIdentifier uint32 = 0x43554549

	AvailDescriptorTag        uint32 = 0x00
	DTMFDescriptorTag         uint32 = 0x01
	SegmentationDescriptorTag uint32 = 0x02
	TimeDescriptorTag         uint32 = 0x03
)

// AvailDescriptor carries a provider's own avail identifier.
type AvailDescriptor struct {
	ProviderAvailID uint32
}

func (d *AvailDescriptor) Tag() uint32 { return AvailDescriptorTag }

func (d *AvailDescriptor) decode(data []byte) error {
	r := bitio.NewReader(data)
	r.Skip(8)  // splice_descriptor_tag
	r.Skip(8)  // descriptor_length
	r.Skip(32) // identifier
	d.ProviderAvailID = r.Uint32(32)
	return r.Err()
}

func (d *AvailDescriptor) encode() ([]byte, error) {
	w := bitio.NewWriter(2 + d.descriptorLength())
	w.PutUint32(8, AvailDescriptorTag)
	w.PutUint32(8, uint32(d.descriptorLength()))
	w.PutUint32(32, cueIdentifier)
	w.PutUint32(32, d.ProviderAvailID)
	return w.Bytes(), nil
}

func (d *AvailDescriptor) descriptorLength() int { return 4 + 4 }

// DTMFDescriptor carries a DTMF tone sequence to be signaled downstream
// after the given preroll.
type DTMFDescriptor struct {
	Preroll   uint8
	DTMFChars string
}

func (d *DTMFDescriptor) Tag() uint32 { return DTMFDescriptorTag }

func (d *DTMFDescriptor) decode(data []byte) error {
	r := bitio.NewReader(data)
	r.Skip(8)  // splice_descriptor_tag
	r.Skip(8)  // descriptor_length
	r.Skip(32) // identifier
	d.Preroll = uint8(r.Uint32(8))
	count := int(r.Uint32(3))
	r.Skip(5) // reserved
	chars := r.Bytes(count)
	if r.Err() != nil {
		return r.Err()
	}
	d.DTMFChars = string(chars)
	return nil
}

func (d *DTMFDescriptor) encode() ([]byte, error) {
	w := bitio.NewWriter(2 + d.descriptorLength())
	w.PutUint32(8, DTMFDescriptorTag)
	w.PutUint32(8, uint32(d.descriptorLength()))
	w.PutUint32(32, cueIdentifier)
	w.PutUint32(8, uint32(d.Preroll))
	w.PutUint32(3, uint32(len(d.DTMFChars)))
	w.PutUint32(5, 0x1F) // reserved
	w.PutBytes([]byte(d.DTMFChars))
	return w.Bytes(), nil
}

func (d *DTMFDescriptor) descriptorLength() int { return 4 + 1 + 1 + len(d.DTMFChars) }

// TimeDescriptor carries a TAI timestamp alongside the splice point, for
// downstream systems that correlate against wall-clock time.
type TimeDescriptor struct {
	TAISeconds     uint64
	TAINanoseconds uint32
	UTCOffset      uint16
}

func (d *TimeDescriptor) Tag() uint32 { return TimeDescriptorTag }

func (d *TimeDescriptor) decode(data []byte) error {
	r := bitio.NewReader(data)
	r.Skip(8)  // splice_descriptor_tag
	r.Skip(8)  // descriptor_length
	r.Skip(32) // identifier
	d.TAISeconds = r.Uint64(48)
	d.TAINanoseconds = r.Uint32(32)
	d.UTCOffset = uint16(r.Uint32(16))
	return r.Err()
}

func (d *TimeDescriptor) encode() ([]byte, error) {
	w := bitio.NewWriter(2 + d.descriptorLength())
	w.PutUint32(8, TimeDescriptorTag)
	w.PutUint32(8, uint32(d.descriptorLength()))
	w.PutUint32(32, cueIdentifier)
	w.PutUint64(48, d.TAISeconds)
	w.PutUint32(32, d.TAINanoseconds)
	w.PutUint16(d.UTCOffset)
	return w.Bytes(), nil
}

func (d *TimeDescriptor) descriptorLength() int { return 4 + 6 + 4 + 2 }

// Segmentation type constants per SCTE-35 Table 22.
const (
	SegmentationTypeNotIndicated              uint32 = 0x00
	SegmentationTypeContentIdentification     uint32 = 0x01
	SegmentationTypeProgramStart              uint32 = 0x10
	SegmentationTypeProgramEnd                uint32 = 0x11
	SegmentationTypeProgramEarlyTermination   uint32 = 0x12
	SegmentationTypeProgramBreakaway          uint32 = 0x13
	SegmentationTypeProgramResumption         uint32 = 0x14
	SegmentationTypeProgramRunoverPlanned     uint32 = 0x15
	SegmentationTypeProgramRunoverUnplanned   uint32 = 0x16
	SegmentationTypeProgramOverlapStart       uint32 = 0x17
	SegmentationTypeProgramBlackoutOverride   uint32 = 0x18
	SegmentationTypeProgramStartInProgress    uint32 = 0x19
	SegmentationTypeChapterStart              uint32 = 0x20
	SegmentationTypeChapterEnd                uint32 = 0x21
	SegmentationTypeBreakStart                uint32 = 0x22
	SegmentationTypeBreakEnd                  uint32 = 0x23
	SegmentationTypeOpeningCreditStart        uint32 = 0x24
	SegmentationTypeOpeningCreditEnd          uint32 = 0x25
	SegmentationTypeClosingCreditStart        uint32 = 0x26
	SegmentationTypeClosingCreditEnd          uint32 = 0x27
	SegmentationTypeProviderAdStart           uint32 = 0x30
	SegmentationTypeProviderAdEnd             uint32 = 0x31
	SegmentationTypeDistributorAdStart        uint32 = 0x32
	SegmentationTypeDistributorAdEnd          uint32 = 0x33
	SegmentationTypeProviderPOStart           uint32 = 0x34
	SegmentationTypeProviderPOEnd             uint32 = 0x35
	SegmentationTypeDistributorPOStart        uint32 = 0x36
	SegmentationTypeDistributorPOEnd          uint32 = 0x37
	SegmentationTypeProviderOverlayPOStart    uint32 = 0x38
	SegmentationTypeProviderOverlayPOEnd      uint32 = 0x39
	SegmentationTypeDistributorOverlayPOStart uint32 = 0x3a
	SegmentationTypeDistributorOverlayPOEnd   uint32 = 0x3b
	SegmentationTypeProviderPromoStart        uint32 = 0x3c
	SegmentationTypeProviderPromoEnd          uint32 = 0x3d
	SegmentationTypeDistributorPromoStart     uint32 = 0x3e
	SegmentationTypeDistributorPromoEnd       uint32 = 0x3f
	SegmentationTypeUnscheduledEventStart     uint32 = 0x40
	SegmentationTypeUnscheduledEventEnd       uint32 = 0x41
	SegmentationTypeAltConOppStart            uint32 = 0x42
	SegmentationTypeAltConOppEnd              uint32 = 0x43
	SegmentationTypeProviderAdBlockStart      uint32 = 0x44
	SegmentationTypeProviderAdBlockEnd        uint32 = 0x45
	SegmentationTypeDistributorAdBlockStart   uint32 = 0x46
	SegmentationTypeDistributorAdBlockEnd     uint32 = 0x47
	SegmentationTypeNetworkStart              uint32 = 0x50
	SegmentationTypeNetworkEnd                uint32 = 0x51
)

// SegmentationDescriptor carries segmentation information per SCTE-35 10.3.3:
// what kind of boundary this is (ad, chapter, program, network...) and where
// it sits within a numbered sequence of segments.
type SegmentationDescriptor struct {
	SegmentationEventID  uint32
	SegmentationTypeID   uint32
	SegmentationDuration *uint64
	SegmentNum           uint32
	SegmentsExpected     uint32
}

func (sd *SegmentationDescriptor) Tag() uint32 { return SegmentationDescriptorTag }

// Name returns a human-readable label for the segmentation type, per Table 22.
func (sd *SegmentationDescriptor) Name() string {
	switch sd.SegmentationTypeID {
	case SegmentationTypeNotIndicated:
		return "Not Indicated"
	case SegmentationTypeContentIdentification:
		return "Content Identification"
	case SegmentationTypeProgramStart:
		return "Program Start"
	case SegmentationTypeProgramEnd:
		return "Program End"
	case SegmentationTypeProgramEarlyTermination:
		return "Program Early Termination"
	case SegmentationTypeProgramBreakaway:
		return "Program Breakaway"
	case SegmentationTypeProgramResumption:
		return "Program Resumption"
	case SegmentationTypeProgramRunoverPlanned:
		return "Program Runover Planned"
	case SegmentationTypeProgramRunoverUnplanned:
		return "Program Runover Unplanned"
	case SegmentationTypeProgramOverlapStart:
		return "Program Overlap Start"
	case SegmentationTypeProgramBlackoutOverride:
		return "Program Blackout Override"
	case SegmentationTypeProgramStartInProgress:
		return "Program Start - In Progress"
	case SegmentationTypeChapterStart:
		return "Chapter Start"
	case SegmentationTypeChapterEnd:
		return "Chapter End"
	case SegmentationTypeBreakStart:
		return "Break Start"
	case SegmentationTypeBreakEnd:
		return "Break End"
	case SegmentationTypeOpeningCreditStart:
		return "Opening Credit Start"
	case SegmentationTypeOpeningCreditEnd:
		return "Opening Credit End"
	case SegmentationTypeClosingCreditStart:
		return "Closing Credit Start"
	case SegmentationTypeClosingCreditEnd:
		return "Closing Credit End"
	case SegmentationTypeProviderAdStart:
		return "Provider Advertisement Start"
	case SegmentationTypeProviderAdEnd:
		return "Provider Advertisement End"
	case SegmentationTypeDistributorAdStart:
		return "Distributor Advertisement Start"
	case SegmentationTypeDistributorAdEnd:
		return "Distributor Advertisement End"
	case SegmentationTypeProviderPOStart:
		return "Provider Placement Opportunity Start"
	case SegmentationTypeProviderPOEnd:
		return "Provider Placement Opportunity End"
	case SegmentationTypeDistributorPOStart:
		return "Distributor Placement Opportunity Start"
	case SegmentationTypeDistributorPOEnd:
		return "Distributor Placement Opportunity End"
	case SegmentationTypeProviderOverlayPOStart:
		return "Provider Overlay Placement Opportunity Start"
	case SegmentationTypeProviderOverlayPOEnd:
		return "Provider Overlay Placement Opportunity End"
	case SegmentationTypeDistributorOverlayPOStart:
		return "Distributor Overlay Placement Opportunity Start"
	case SegmentationTypeDistributorOverlayPOEnd:
		return "Distributor Overlay Placement Opportunity End"
	case SegmentationTypeProviderPromoStart:
		return "Provider Promo Start"
	case SegmentationTypeProviderPromoEnd:
		return "Provider Promo End"
	case SegmentationTypeDistributorPromoStart:
		return "Distributor Promo Start"
	case SegmentationTypeDistributorPromoEnd:
		return "Distributor Promo End"
	case SegmentationTypeUnscheduledEventStart:
		return "Unscheduled Event Start"
	case SegmentationTypeUnscheduledEventEnd:
		return "Unscheduled Event End"
	case SegmentationTypeAltConOppStart:
		return "Alternate Content Opportunity Start"
	case SegmentationTypeAltConOppEnd:
		return "Alternate Content Opportunity End"
	case SegmentationTypeProviderAdBlockStart:
		return "Provider Ad Block Start"
	case SegmentationTypeProviderAdBlockEnd:
		return "Provider Ad Block End"
	case SegmentationTypeDistributorAdBlockStart:
		return "Distributor Ad Block Start"
	case SegmentationTypeDistributorAdBlockEnd:
		return "Distributor Ad Block End"
	case SegmentationTypeNetworkStart:
		return "Network Start"
	case SegmentationTypeNetworkEnd:
		return "Network End"
	default:
		return "Unknown"
	}
}

func (sd *SegmentationDescriptor) decode(data []byte) error {
	r := bitio.NewReader(data)
	r.Skip(8)  // splice_descriptor_tag
	r.Skip(8)  // descriptor_length
	r.Skip(32) // identifier (CUEI)
	sd.SegmentationEventID = r.Uint32(32)
	cancelIndicator := r.Bit()
	r.Skip(1) // segmentation_event_id_compliance_indicator
	r.Skip(6) // reserved

	if !cancelIndicator {
		programSegmentationFlag := r.Bit()
		durationFlag := r.Bit()
		deliveryNotRestricted := r.Bit()
		r.Skip(5) // restriction flags / reserved

		if !programSegmentationFlag {
			componentCount := int(r.Uint32(8))
			r.Skip(componentCount * (8 + 7 + 33))
		}
		_ = deliveryNotRestricted

		if durationFlag {
			dur := r.Uint64(40)
			sd.SegmentationDuration = &dur
		}

		r.Skip(8) // segmentation_upid_type
		upidLen := int(r.Uint32(8))
		r.Skip(upidLen * 8)
		sd.SegmentationTypeID = r.Uint32(8)
		sd.SegmentNum = r.Uint32(8)
		sd.SegmentsExpected = r.Uint32(8)

		if r.BitsLeft() >= 16 {
			r.Skip(16)
		}
	}
	return r.Err()
}

func (sd *SegmentationDescriptor) encode() ([]byte, error) {
	length := sd.descriptorLength()
	w := bitio.NewWriter(length + 2)

	w.PutUint32(8, SegmentationDescriptorTag)
	w.PutUint32(8, uint32(length))
	w.PutUint32(32, cueIdentifier)
	w.PutUint32(32, sd.SegmentationEventID)
	w.PutBit(false)      // segmentation_event_cancel_indicator
	w.PutBit(true)       // segmentation_event_id_compliance_indicator
	w.PutUint32(6, 0x3F) // reserved

	w.PutBit(true)                           // program_segmentation_flag
	w.PutBit(sd.SegmentationDuration != nil) // segmentation_duration_flag
	w.PutBit(true)                           // delivery_not_restricted_flag
	w.PutUint32(5, 0x1F)                     // reserved

	if sd.SegmentationDuration != nil {
		w.PutUint64(40, *sd.SegmentationDuration)
	}

	w.PutUint32(8, 0x00) // segmentation_upid_type = Not Used
	w.PutUint32(8, 0x00) // segmentation_upid_length
	w.PutUint32(8, sd.SegmentationTypeID)
	w.PutUint32(8, sd.SegmentNum)
	w.PutUint32(8, sd.SegmentsExpected)

	return w.Bytes(), nil
}

func (sd *SegmentationDescriptor) descriptorLength() int {
	bits := 32 // identifier
	bits += 32 // segmentation_event_id
	bits += 1  // cancel_indicator
	bits += 1  // compliance_indicator
	bits += 6  // reserved

	bits += 1 // program_segmentation_flag
	bits += 1 // segmentation_duration_flag
	bits += 1 // delivery_not_restricted_flag
	bits += 5 // reserved

	if sd.SegmentationDuration != nil {
		bits += 40
	}

	bits += 8 // segmentation_upid_type
	bits += 8 // segmentation_upid_length
	bits += 8 // segmentation_type_id
	bits += 8 // segment_num
	bits += 8 // segments_expected

	return bits / 8
}
