package lquery

import (
	"fmt"
	"github.com/psilva261/lqueryfs/anim"
	"go.uber.org/zap"
	"time"
)

// resolve turns d into milliseconds, falling back to the default duration.
func (s *Selection) resolve(d anim.Duration) (int64, error) {
	if !d.IsSet() {
		d = s.c.defaults.Duration
	}
	return d.Milliseconds()
}

func (s *Selection) easing(e string) string {
	if e == "" {
		return s.c.defaults.Easing
	}
	return e
}

// done schedules complete once after ms, never before this call returns.
func (s *Selection) done(ms int64, complete func()) {
	if complete == nil {
		return
	}
	s.c.sched.SetTimeout(complete, time.Duration(ms)*time.Millisecond)
}

// Animate animates the elements towards props. An unset duration or empty
// easing takes the context defaults.
func (s *Selection) Animate(props anim.Props, d anim.Duration, easing string, complete func()) *Selection {
	ms, err := s.resolve(d)
	if err != nil {
		return s.fail(fmt.Errorf("animate: %w", err))
	}
	name, err := s.c.reg.RunAdHoc(s.els, props, ms, s.easing(easing))
	if err != nil {
		return s.fail(fmt.Errorf("animate: %w", err))
	}
	s.c.log.Debug("animate", zap.String("name", name), zap.Int64("ms", ms), zap.Int("els", len(s.els)))
	s.done(ms, complete)
	return s
}

func (s *Selection) builtIn(k anim.Kind, d anim.Duration, complete func()) *Selection {
	ms, err := s.resolve(d)
	if err != nil {
		return s.fail(fmt.Errorf("%v: %w", k, err))
	}
	if err := s.c.reg.RunBuiltIn(k, s.els, ms, s.c.defaults.Easing); err != nil {
		return s.fail(fmt.Errorf("%v: %w", k, err))
	}
	s.done(ms, complete)
	return s
}

func (s *Selection) FadeIn(d anim.Duration, complete func()) *Selection {
	return s.builtIn(anim.FadeIn, d, complete)
}

func (s *Selection) FadeOut(d anim.Duration, complete func()) *Selection {
	return s.builtIn(anim.FadeOut, d, complete)
}

func (s *Selection) SlideDown(d anim.Duration, complete func()) *Selection {
	return s.builtIn(anim.SlideDown, d, complete)
}

func (s *Selection) SlideUp(d anim.Duration, complete func()) *Selection {
	return s.builtIn(anim.SlideUp, d, complete)
}
