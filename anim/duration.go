package anim

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxMillis is the longest duration that can still be scheduled as a
// time.Duration.
const MaxMillis = math.MaxInt64 / int64(time.Millisecond)

var (
	ErrUnsupportedUnit = errors.New("unsupported duration unit")
	ErrInvalidDuration = errors.New("invalid duration")
)

// Speed keywords, in milliseconds.
var speeds = map[string]int64{
	"fast":     200,
	"slow":     600,
	"_default": 400,
}

type DurationError struct {
	Input string
	Err   error
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("duration %q: %v", e.Input, e.Err)
}

func (e *DurationError) Unwrap() error {
	return e.Err
}

// Duration is either a number of milliseconds or a textual spec like
// "400ms", "1.5s" or "fast". The zero value is unset.
type Duration struct {
	ms   int64
	spec string
	kind uint8
}

const (
	unset uint8 = iota
	millis
	spec
)

func Millis(n int64) Duration {
	return Duration{ms: n, kind: millis}
}

func Spec(s string) Duration {
	return Duration{spec: s, kind: spec}
}

func (d Duration) IsSet() bool {
	return d.kind != unset
}

// Milliseconds normalizes d.
func (d Duration) Milliseconds() (int64, error) {
	switch d.kind {
	case millis:
		if d.ms < 0 || d.ms > MaxMillis {
			return 0, &DurationError{Input: strconv.FormatInt(d.ms, 10), Err: ErrInvalidDuration}
		}
		return d.ms, nil
	case spec:
		return ParseMillis(d.spec)
	}
	return 0, &DurationError{Err: ErrInvalidDuration}
}

func (d Duration) String() string {
	switch d.kind {
	case millis:
		return strconv.FormatInt(d.ms, 10) + "ms"
	case spec:
		return d.spec
	}
	return ""
}

// ParseMillis converts s to milliseconds. "ms" and "s" suffixes are
// understood, a bare number means milliseconds and fractions are rounded.
func ParseMillis(s string) (int64, error) {
	in := s
	s = strings.TrimSpace(s)
	if ms, ok := speeds[s]; ok {
		return ms, nil
	}
	fail := func(err error) (int64, error) {
		return 0, &DurationError{Input: in, Err: err}
	}
	if s == "" {
		return fail(ErrInvalidDuration)
	}
	num, scale := s, 1.0
	switch {
	case strings.HasSuffix(s, "ms"):
		num = strings.TrimSuffix(s, "ms")
	case strings.HasSuffix(s, "s"):
		num, scale = strings.TrimSuffix(s, "s"), 1000
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if errors.Is(err, strconv.ErrRange) {
		return fail(ErrInvalidDuration)
	}
	if err != nil {
		if i := strings.IndexFunc(s, isUnitRune); i > 0 && isNumber(s[:i]) {
			return fail(ErrUnsupportedUnit)
		}
		return fail(ErrInvalidDuration)
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return fail(ErrInvalidDuration)
	}
	ms := math.Round(f * scale)
	if ms > float64(MaxMillis) {
		return fail(ErrInvalidDuration)
	}
	return int64(ms), nil
}

func isUnitRune(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
