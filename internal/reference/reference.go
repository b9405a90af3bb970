// Package reference turns input lines into source references.
package reference

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ZacxDev/clip-stitcher/internal/platform"
	"github.com/ZacxDev/clip-stitcher/pkg/types"
)

const (
	ReasonMissingID        = "missing id"
	ReasonMissingTimestamp = "missing timestamp"
	ReasonMalformedURL     = "malformed url"
)

// maxOffset bounds parsed offsets well below time.Duration overflow
const maxOffset = 1000 * time.Hour

var compoundTimestamp = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseError explains why a line could not become a reference
type ParseError struct {
	Input  string
	Reason string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%q)", e.Reason, e.Detail, e.Input)
	}
	return fmt.Sprintf("%s (%q)", e.Reason, e.Input)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Cause() error { return e.Err }

// Parse extracts the content id and start offset from a link. A link
// without a timestamp is rejected rather than defaulted to zero.
func Parse(line string) (types.SourceReference, error) {
	raw := strings.TrimSpace(line)
	fail := func(reason, detail string) (types.SourceReference, error) {
		return types.SourceReference{}, &ParseError{Input: raw, Reason: reason, Detail: detail}
	}
	wrap := func(reason string, err error) (types.SourceReference, error) {
		return types.SourceReference{}, &ParseError{Input: raw, Reason: reason, Detail: err.Error(), Err: err}
	}

	if raw == "" {
		return fail(ReasonMalformedURL, "empty line")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return wrap(ReasonMalformedURL, err)
	}
	if u.Hostname() == "" {
		return fail(ReasonMalformedURL, "no host")
	}

	plat, ok := platform.ForHost(u.Host)
	if !ok {
		return fail(ReasonMalformedURL, "unsupported host "+u.Hostname())
	}

	id := plat.ExtractID(u)
	if id == "" {
		return fail(ReasonMissingID, "")
	}
	if !plat.ValidID(id) {
		return fail(ReasonMissingID, fmt.Sprintf("%q is not a valid %s id", id, plat.GetName()))
	}

	value, found := timestampValue(u, plat.GetTimestampParams(u))
	if !found {
		return fail(ReasonMissingTimestamp, "")
	}

	offset, err := ParseTimestamp(value)
	if err != nil {
		return wrap(ReasonMalformedURL, err)
	}

	return types.SourceReference{
		Platform:    plat.GetName(),
		ContentID:   id,
		StartOffset: offset,
	}, nil
}

// timestampValue looks in the query first, then in a "#t=..." fragment
func timestampValue(u *url.URL, keys []string) (string, bool) {
	query := u.Query()
	fragment, _ := url.ParseQuery(u.Fragment)

	for _, values := range []url.Values{query, fragment} {
		for _, key := range keys {
			if v := strings.TrimSpace(values.Get(key)); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// ParseTimestamp accepts a bare number of seconds ("35", "35s") or a
// compound "1h2m3s" string, optionally with spaces between the parts.
func ParseTimestamp(value string) (time.Duration, error) {
	s := strings.ToLower(strings.Join(strings.Fields(value), ""))
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	if secs, err := strconv.ParseUint(s, 10, 32); err == nil {
		return checkOffset(time.Duration(secs)*time.Second, value)
	}

	m := compoundTimestamp.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}

	var total time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, unit := range units {
		part := m[i+1]
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		// each part is bounded before multiplying so the sum cannot wrap
		if n > uint64(maxOffset/unit) {
			return 0, fmt.Errorf("timestamp %q out of range", value)
		}
		total += time.Duration(n) * unit
	}

	return checkOffset(total, value)
}

func checkOffset(d time.Duration, value string) (time.Duration, error) {
	if d < 0 || d > maxOffset {
		return 0, fmt.Errorf("timestamp %q out of range", value)
	}
	return d, nil
}
