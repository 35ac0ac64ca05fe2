package task

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tasklist/cmd/internal/model"
)

// DueKind is the outcome of due-date normalization.
type DueKind int

const (
	DueUnchanged DueKind = iota
	DueClear
	DueSet
	DueInvalid
)

// Due is a normalized due date. At is epoch milliseconds when Kind is DueSet.
type Due struct {
	Kind DueKind
	At   int64
}

var (
	digitsRe    = regexp.MustCompile(`^\d+$`)
	hasOffsetRe = regexp.MustCompile(`Z|[+-]\d{2}:?\d{2}$|\b(?:GMT|UTC)$`)
	localRe     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})[T ](\d{2}):(\d{2})(?::(\d{2}))?$`)
)

var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04Z0700",
	time.RFC1123Z,
	time.RFC1123,
}

// NormalizeDueAt interprets a client-supplied due date. Wall-clock strings
// without an offset are read in loc. A string carrying an offset that does
// not parse clears the due date instead of failing.
func NormalizeDueAt(f model.Field[any], loc *time.Location) Due {
	if !f.Set {
		return Due{Kind: DueUnchanged}
	}
	if f.Null || f.Value == nil {
		return Due{Kind: DueClear}
	}
	if loc == nil {
		loc = time.Local
	}

	switch v := f.Value.(type) {
	case float64:
		return fromFloat(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return Due{Kind: DueSet, At: n}
		}
		fv, err := v.Float64()
		if err != nil {
			return Due{Kind: DueInvalid}
		}
		return fromFloat(fv)
	case int:
		return Due{Kind: DueSet, At: int64(v)}
	case int64:
		return Due{Kind: DueSet, At: v}
	case string:
		return fromString(v, loc)
	default:
		return Due{Kind: DueInvalid}
	}
}

func fromFloat(v float64) Due {
	if math.IsNaN(v) || math.IsInf(v, 0) || v > math.MaxInt64 || v < math.MinInt64 {
		return Due{Kind: DueInvalid}
	}
	return Due{Kind: DueSet, At: int64(v)}
}

func fromString(raw string, loc *time.Location) Due {
	s := strings.TrimSpace(raw)
	if digitsRe.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Due{Kind: DueClear}
		}
		return Due{Kind: DueSet, At: n}
	}
	if hasOffsetRe.MatchString(s) {
		for _, layout := range offsetLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return Due{Kind: DueSet, At: t.UnixMilli()}
			}
		}
		// degrade silently
		return Due{Kind: DueClear}
	}
	m := localRe.FindStringSubmatch(s)
	if m == nil {
		return Due{Kind: DueInvalid}
	}
	n := make([]int, 7)
	for i := 1; i < len(m); i++ {
		if m[i] == "" {
			continue
		}
		n[i], _ = strconv.Atoi(m[i])
	}
	t := time.Date(n[1], time.Month(n[2]), n[3], n[4], n[5], n[6], 0, loc)
	return Due{Kind: DueSet, At: t.UnixMilli()}
}
