package config

import (
	"strconv"
	"strings"

	"github.com/fanatid/telescope/internal/errs"
)

// SyncSegment is the parsed `--sync-segment` range: Start is inclusive;
// End is nil when the range is open-ended ("latest", meaning derive the
// end from the node's reported height minus the confirmation depth).
type SyncSegment struct {
	Start uint32
	End   *uint32
}

// IsFullRange reports whether this segment is the default "0..latest",
// i.e. schema_info.extra.sync_segment should be recorded false.
func (s SyncSegment) IsFullRange() bool {
	return s.Start == 0 && s.End == nil
}

// ParseSyncSegment parses "start..end" where end is either a u32 or the
// literal "latest".
func ParseSyncSegment(raw string) (SyncSegment, error) {
	parts := strings.SplitN(raw, "..", 2)
	if len(parts) != 2 {
		return SyncSegment{}, errs.New(errs.KindConfiguration, "sync-segment %q: expected \"start..end\"", raw)
	}

	start, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return SyncSegment{}, errs.Wrap(errs.KindConfiguration, err, "sync-segment %q: invalid start", raw)
	}

	if parts[1] == "latest" {
		return SyncSegment{Start: uint32(start)}, nil
	}

	end, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return SyncSegment{}, errs.Wrap(errs.KindConfiguration, err, "sync-segment %q: invalid end", raw)
	}
	if end < start {
		return SyncSegment{}, errs.New(errs.KindConfiguration, "sync-segment %q: end below start", raw)
	}
	endVal := uint32(end)
	return SyncSegment{Start: uint32(start), End: &endVal}, nil
}
