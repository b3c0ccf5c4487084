package runner

import (
	"errors"
	"fmt"
	"github.com/psilva261/lqueryfs/anim"
	"github.com/psilva261/lqueryfs/dom"
	"github.com/psilva261/lqueryfs/lquery"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"strings"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrArity          = errors.New("wrong number of arguments")
)

// command describes one ctl verb: the number of leading word arguments,
// whether free text may follow them, and whether it must.
type command struct {
	args int
	rest int
	run  func(r *Runner, c *lquery.Context, a []string, rest string) (string, error)
}

const (
	noRest = iota
	optRest
	needRest
)

var commands map[string]command

func init() {
	commands = map[string]command{
		"html": {1, optRest, func(r *Runner, c *lquery.Context, a []string, rest string) (string, error) {
			s := c.Select(a[0])
			if rest == "" {
				return s.HTML(), s.Err()
			}
			return "", s.SetHTML(rest).Err()
		}},
		"text": {1, optRest, func(r *Runner, c *lquery.Context, a []string, rest string) (string, error) {
			s := c.Select(a[0])
			if rest == "" {
				return s.Text(), s.Err()
			}
			return "", s.SetText(rest).Err()
		}},
		"val": {1, optRest, func(r *Runner, c *lquery.Context, a []string, rest string) (string, error) {
			s := c.Select(a[0])
			if rest == "" {
				return s.Val(), s.Err()
			}
			return "", s.SetVal(rest).Err()
		}},
		"attr": {2, optRest, func(r *Runner, c *lquery.Context, a []string, rest string) (string, error) {
			s := c.Select(a[0])
			if rest == "" {
				v, _ := s.Attr(a[1])
				return v, s.Err()
			}
			return "", s.SetAttr(a[1], rest).Err()
		}},
		"rmattr": {2, noRest, func(r *Runner, c *lquery.Context, a []string, _ string) (string, error) {
			return "", c.Select(a[0]).RemoveAttr(a[1]).Err()
		}},
		"css": {2, optRest, func(r *Runner, c *lquery.Context, a []string, rest string) (string, error) {
			s := c.Select(a[0])
			if rest == "" {
				vs := s.CSSValue(a[1])
				if len(vs) == 0 {
					return "", s.Err()
				}
				return vs[0], s.Err()
			}
			return "", s.CSS(a[1], rest).Err()
		}},
		"append":  insert((*lquery.Selection).Append),
		"prepend": insert((*lquery.Selection).Prepend),
		"after":   insert((*lquery.Selection).After),
		"before":  insert((*lquery.Selection).Before),
		"replace": insert((*lquery.Selection).ReplaceWithHTML),
		"remove": {1, noRest, func(r *Runner, c *lquery.Context, a []string, _ string) (string, error) {
			return "", c.Select(a[0]).Remove().Err()
		}},
		"empty": {1, noRest, func(r *Runner, c *lquery.Context, a []string, _ string) (string, error) {
			return "", c.Select(a[0]).Empty().Err()
		}},
		"wrap": {2, noRest, func(r *Runner, c *lquery.Context, a []string, _ string) (string, error) {
			return "", c.Select(a[0]).Wrap(a[1]).Err()
		}},
		// clone puts a copy, listeners included, after every element.
		"clone": {1, noRest, func(r *Runner, c *lquery.Context, a []string, _ string) (string, error) {
			s := c.Select(a[0])
			cs := s.Clone(true)
			for i, el := range s.Elements() {
				if err := el.InsertAdjacentElement("afterend", cs.Get(i)); err != nil {
					return "", err
				}
			}
			return "", multierr.Append(s.Err(), cs.Err())
		}},
		"click": {1, noRest, func(r *Runner, c *lquery.Context, a []string, _ string) (string, error) {
			s, err := found(c, a[0])
			if err != nil {
				return "", err
			}
			return "", s.Click().Err()
		}},
		"trigger": {2, noRest, func(r *Runner, c *lquery.Context, a []string, _ string) (string, error) {
			s, err := found(c, a[0])
			if err != nil {
				return "", err
			}
			return "", s.Trigger(a[1]).Err()
		}},
		// on runs a ctl line whenever the event fires.
		"on": {2, needRest, func(r *Runner, c *lquery.Context, a []string, rest string) (string, error) {
			line := rest
			l := dom.NewListener(func(*dom.Event) {
				if _, err := r.ctl(c, line); err != nil {
					r.log.Warn("listener", zap.String("line", line), zap.Error(err))
				}
			})
			return "", c.Select(a[0]).On(a[1], l).Err()
		}},
		"fadein":    builtIn((*lquery.Selection).FadeIn),
		"fadeout":   builtIn((*lquery.Selection).FadeOut),
		"slidedown": builtIn((*lquery.Selection).SlideDown),
		"slideup":   builtIn((*lquery.Selection).SlideUp),
		"animate": {3, needRest, func(r *Runner, c *lquery.Context, a []string, rest string) (string, error) {
			props, err := anim.ParseProps(rest)
			if err != nil {
				return "", err
			}
			return "", c.Select(a[0]).Animate(props, anim.Spec(a[1]), a[2], nil).Err()
		}},
		"get": {1, noRest, func(r *Runner, c *lquery.Context, a []string, _ string) (string, error) {
			s := c.Select(a[0])
			return s.OuterHTML(), s.Err()
		}},
		"count": {1, noRest, func(r *Runner, c *lquery.Context, a []string, _ string) (string, error) {
			s := c.Select(a[0])
			return fmt.Sprint(s.Len()), s.Err()
		}},
	}
}

func insert(fn func(*lquery.Selection, string) *lquery.Selection) command {
	return command{1, needRest, func(r *Runner, c *lquery.Context, a []string, rest string) (string, error) {
		return "", fn(c.Select(a[0]), rest).Err()
	}}
}

// builtIn takes an optional duration; the default applies without one.
func builtIn(fn func(*lquery.Selection, anim.Duration, func()) *lquery.Selection) command {
	return command{1, optRest, func(r *Runner, c *lquery.Context, a []string, rest string) (string, error) {
		var d anim.Duration
		if rest != "" {
			d = anim.Spec(rest)
		}
		return "", fn(c.Select(a[0]), d, nil).Err()
	}}
}

func found(c *lquery.Context, sel string) (*lquery.Selection, error) {
	s := c.Select(sel)
	if s.Err() != nil {
		return nil, s.Err()
	}
	if s.Len() == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, sel)
	}
	return s, nil
}

// ExecCtl runs one ctl line on the loop.
func (r *Runner) ExecCtl(line string) (out string, err error) {
	err = r.Exec(func(c *lquery.Context) (err error) {
		out, err = r.ctl(c, line)
		return
	})
	return
}

// ExecScript runs a ctl script, one command per line. Blank lines and lines
// starting with # are skipped. Execution continues after failing lines and
// all errors are returned together with the collected output.
func (r *Runner) ExecScript(script string) (out string, err error) {
	var outs []string
	for i, l := range strings.Split(script, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		o, e := r.ExecCtl(l)
		if e != nil {
			if errors.Is(e, ErrTimeout) {
				return strings.Join(outs, "\n"), multierr.Append(err, e)
			}
			err = multierr.Append(err, fmt.Errorf("line %d: %w", i+1, e))
			continue
		}
		if o != "" {
			outs = append(outs, o)
		}
	}
	return strings.Join(outs, "\n"), err
}

// ctl must run on the loop.
func (r *Runner) ctl(c *lquery.Context, line string) (out string, err error) {
	name, line := next(strings.TrimSpace(line))
	name = strings.ToLower(name)
	defer func() {
		if r.observe != nil {
			r.observe(name, err)
		}
	}()
	cmd, ok := commands[name]
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrUnknownCommand, name)
	}
	args := make([]string, 0, cmd.args)
	for i := 0; i < cmd.args; i++ {
		var a string
		if a, line = next(line); a == "" {
			return "", fmt.Errorf("%v: %w", name, ErrArity)
		}
		args = append(args, a)
	}
	rest := strings.TrimSpace(line)
	switch {
	case cmd.rest == noRest && rest != "":
		return "", fmt.Errorf("%v: %w", name, ErrArity)
	case cmd.rest == needRest && rest == "":
		return "", fmt.Errorf("%v: %w", name, ErrArity)
	}
	r.log.Debug("ctl", zap.String("cmd", name), zap.Strings("args", args))
	return cmd.run(r, c, args, rest)
}

// next splits off the first word of s. A word in single or double quotes
// may contain blanks.
func next(s string) (w, rest string) {
	s = strings.TrimLeft(s, " \t")
	if s == "" {
		return "", ""
	}
	if q := s[0]; q == '\'' || q == '"' {
		if i := strings.IndexByte(s[1:], q); i >= 0 {
			return s[1 : i+1], s[i+2:]
		}
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}
