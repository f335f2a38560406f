package main

import (
	"fmt"

	"github.com/zsiec/metamix/internal/scte35"
)

// buildSpliceInsert returns an encoded splice_info_section carrying a
// component-mode splice_insert command (the only mode SpliceInsert.encode
// writes) signaling an out-of-network break lasting 30 seconds with
// auto_return set.
func buildSpliceInsert(eventID uint32) ([]byte, error) {
	section := &scte35.SpliceInfoSection{
		SpliceCommand: &scte35.SpliceInsert{
			SpliceEventID:         eventID,
			OutOfNetworkIndicator: true,
			BreakDuration:         &scte35.BreakDuration{AutoReturn: true, Duration: 30 * 90_000},
			UniqueProgramID:       1,
		},
	}

	encoded, err := section.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding splice_insert: %w", err)
	}
	return encoded, nil
}
