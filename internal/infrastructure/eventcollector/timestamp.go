package eventcollector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Values at or above this are epoch milliseconds, below are epoch seconds.
const millisThreshold = 100_000_000_000

// Timestamp decodes the backend's createdOn, which is an epoch number in
// seconds or milliseconds, or an RFC 3339 string.
type Timestamp struct {
	t time.Time
}

func (ts Timestamp) Time() time.Time { return ts.t }

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		ts.t = time.Time{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			ts.t = fromEpoch(n)
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse createdOn %q: %w", s, err)
		}
		ts.t = parsed.UTC()
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse createdOn %s: %w", data, err)
	}
	ts.t = fromEpoch(n)
	return nil
}

func fromEpoch(n float64) time.Time {
	if n >= millisThreshold {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec := int64(n)
	nsec := int64((n - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Truncate(time.Millisecond)
}
