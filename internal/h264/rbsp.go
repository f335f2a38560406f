package h264

// countEmulationPreventionBytes counts 0x03 emulation-prevention bytes that
// would be removed by EBSPToSODB/EBSPToRBSP, used to size an emit buffer
// without a second conversion pass.
func countEmulationPreventionBytes(data []byte) int {
	if len(data) <= 2 {
		return 0
	}
	count := 0
	for i := 2; i < len(data); i++ {
		if data[i-2] == 0 && data[i-1] == 0 && data[i] == 3 {
			count++
		}
	}
	return count
}

func copyFromEBSP(data []byte, dropStopBit bool) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	end := len(data)
	if dropStopBit {
		for end > 0 && data[end-1] == 0 {
			end--
		}
		if end == 0 || data[end-1] != 0x80 {
			return nil, &ParseError{Reason: "malformed RBSP payload, missing stop bit"}
		}
		end--
	}

	out := make([]byte, 0, end)
	zeroRun := 0
	for i := 0; i < end; i++ {
		// A 0x03 seen after two zero bytes already written to out is an
		// emulation-prevention byte: drop it and leave the run as-is, since
		// the zeros it followed are still the last two bytes of out.
		if zeroRun >= 2 && data[i] == 0x03 {
			continue
		}
		out = append(out, data[i])
		if data[i] == 0 {
			zeroRun++
		} else {
			zeroRun = 0
		}
	}
	return out, nil
}

func copyToEBSP(data []byte, addStopBit bool) []byte {
	if len(data) == 0 {
		if addStopBit {
			return []byte{0x80}
		}
		return nil
	}

	out := make([]byte, 0, len(data)+countEmulationPreventionBytes(data)+1)
	zeroRun := 0
	for _, b := range data {
		// Two zero bytes already written to out, followed by a byte that
		// would itself read as 0x00-0x03, needs an emulation-prevention
		// byte inserted ahead of it.
		if zeroRun >= 2 && b <= 3 {
			out = append(out, 0x03)
			zeroRun = 0
		}
		out = append(out, b)
		if b == 0 {
			zeroRun++
		} else {
			zeroRun = 0
		}
	}

	if addStopBit {
		out = append(out, 0x80)
	}
	return out
}

// EBSPToRBSP removes emulation-prevention bytes without touching a trailing
// stop bit.
func EBSPToRBSP(ebsp []byte) ([]byte, error) {
	return copyFromEBSP(ebsp, false)
}

// EBSPToSODB removes emulation-prevention bytes and the trailing RBSP stop
// bit (and any zero padding before it). Fails if no stop bit is present.
func EBSPToSODB(ebsp []byte) ([]byte, error) {
	return copyFromEBSP(ebsp, true)
}

// RBSPToEBSP inserts emulation-prevention bytes ahead of any 0x00 0x00 0x00
// through 0x00 0x00 0x03 sequence.
func RBSPToEBSP(rbsp []byte) []byte {
	return copyToEBSP(rbsp, false)
}

// SODBToEBSP appends the RBSP trailing stop bit and inserts
// emulation-prevention bytes.
func SODBToEBSP(sodb []byte) []byte {
	return copyToEBSP(sodb, true)
}
