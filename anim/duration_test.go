package anim

import (
	"errors"
	"testing"
)

func TestParseMillis(t *testing.T) {
	for in, want := range map[string]int64{
		"400ms":    400,
		"1s":       1000,
		"2.5s":     2500,
		"0.0004s":  0,
		"1.5ms":    2,
		"250":      250,
		" 3s ":     3000,
		"fast":     200,
		"slow":     600,
		"_default": 400,
		"0":        0,
	} {
		ms, err := ParseMillis(in)
		if err != nil {
			t.Errorf("%q: %v", in, err)
			continue
		}
		if ms != want {
			t.Errorf("%q: %v != %v", in, ms, want)
		}
	}
}

func TestParseMillisErrors(t *testing.T) {
	for in, want := range map[string]error{
		"":       ErrInvalidDuration,
		"abc":    ErrInvalidDuration,
		"-1s":    ErrInvalidDuration,
		"ms":     ErrInvalidDuration,
		"10min":  ErrUnsupportedUnit,
		"2h":     ErrUnsupportedUnit,
		"1.5m":   ErrUnsupportedUnit,
		"1e300s": ErrInvalidDuration,
		"1e13ms": ErrInvalidDuration,
		"1e400s": ErrInvalidDuration,
	} {
		_, err := ParseMillis(in)
		if !errors.Is(err, want) {
			t.Errorf("%q: %v", in, err)
		}
		var de *DurationError
		if !errors.As(err, &de) || de.Input != in {
			t.Errorf("%q: %T %v", in, err, err)
		}
	}
}

func TestDuration(t *testing.T) {
	if ms, err := Millis(400).Milliseconds(); err != nil || ms != 400 {
		t.Fatalf("%v %v", ms, err)
	}
	if ms, err := Spec("1s").Milliseconds(); err != nil || ms != 1000 {
		t.Fatalf("%v %v", ms, err)
	}
	if _, err := Millis(-5).Milliseconds(); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("%v", err)
	}
	if _, err := Millis(MaxMillis + 1).Milliseconds(); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("%v", err)
	}
	if ms, err := Millis(MaxMillis).Milliseconds(); err != nil || ms != MaxMillis {
		t.Fatalf("%v %v", ms, err)
	}
	if ms, err := ParseMillis("9223372036854ms"); err != nil || ms != MaxMillis {
		t.Fatalf("%v %v", ms, err)
	}
	if _, err := (Duration{}).Milliseconds(); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("%v", err)
	}
	if (Duration{}).IsSet() || !Spec("fast").IsSet() {
		t.Fail()
	}
	if Millis(5).String() != "5ms" || Spec("2s").String() != "2s" {
		t.Fail()
	}
}
