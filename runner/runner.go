// Package runner hosts a document on an event loop. All lQuery calls on the
// document run on the loop goroutine.
package runner

import (
	"context"
	"errors"
	"fmt"
	"github.com/psilva261/lqueryfs/ajax"
	"github.com/psilva261/lqueryfs/dom"
	"github.com/psilva261/lqueryfs/lquery"
	"github.com/psilva261/sparkle/eventloop"
	"github.com/psilva261/sparkle/js"
	"go.uber.org/zap"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ScriptType marks inline scripts written in the ctl language.
const ScriptType = "text/x-lquery"

var (
	ErrTimeout  = errors.New("timeout")
	ErrNotFound = errors.New("no such element")
)

var (
	origin  = "https://example.com"
	timeout = 10 * time.Second
	quiet   = time.Second
)

type Runner struct {
	loop     *eventloop.EventLoop
	html     string
	doc      *dom.Document
	c        *lquery.Context
	xhrq     func(req *http.Request) (resp *http.Response, err error)
	log      *zap.Logger
	origin   string
	timeout  time.Duration
	quiet    time.Duration
	defaults lquery.Defaults
	observe  func(cmd string, err error)

	mu         sync.Mutex
	subs       map[chan dom.Mutation]struct{}
	outputHtml string
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// WithOrigin sets the document location that relative ajax URLs resolve
// against.
func WithOrigin(o string) Option {
	return func(r *Runner) {
		r.origin = o
	}
}

// WithTimeout limits how long Exec waits for the loop.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithQuiet sets the idle period after which TrackChanges returns.
func WithQuiet(d time.Duration) Option {
	return func(r *Runner) {
		r.quiet = d
	}
}

func WithDefaults(d lquery.Defaults) Option {
	return func(r *Runner) {
		r.defaults = d
	}
}

// WithObserver is told about every ctl command and its outcome.
func WithObserver(fn func(cmd string, err error)) Option {
	return func(r *Runner) {
		r.observe = fn
	}
}

type xhrTransport func(req *http.Request) (*http.Response, error)

func (f xhrTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// New parses htm. Ajax requests of the page go through xhr when it is set.
func New(htm string, xhr func(req *http.Request) (resp *http.Response, err error), opts ...Option) (r *Runner, err error) {
	r = &Runner{
		html:    htm,
		xhrq:    xhr,
		origin:  origin,
		timeout: timeout,
		quiet:   quiet,
		subs:    make(map[chan dom.Mutation]struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	r.log = r.log.Named("runner")
	if r.doc, err = dom.Parse(htm); err != nil {
		return nil, err
	}
	if r.origin != "" {
		loc, err := dom.NewLocation(r.origin)
		if err != nil {
			return nil, fmt.Errorf("origin: %w", err)
		}
		r.doc.SetLocation(loc)
	}
	lopts := []lquery.Option{
		lquery.WithScheduler(r),
		lquery.WithLogger(r.log),
		lquery.WithDefaults(r.defaults),
	}
	if r.xhrq != nil {
		lopts = append(lopts, lquery.WithTransport(xhrTransport(r.xhrq)))
	}
	r.c = lquery.New(r.doc, lopts...)
	r.loop = eventloop.NewEventLoop()
	return
}

func (r *Runner) Start() {
	r.log.Debug("start event loop")
	r.loop.Start()
}

func (r *Runner) Stop() {
	r.loop.Stop()
	for len(r.doc.Mutations()) > 0 {
		<-r.doc.Mutations()
	}
	r.log.Debug("event loop stopped")
}

// SetTimeout runs fn on the loop once d has passed.
func (r *Runner) SetTimeout(fn func(), d time.Duration) {
	time.AfterFunc(d, func() {
		r.RunOnLoop(fn)
	})
}

func (r *Runner) RunOnLoop(fn func()) {
	r.loop.RunOnLoop(func(*js.Runtime) {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("recovered on loop", zap.Any("panic", rec))
			}
		}()
		fn()
	})
}

// Exec runs fn on the loop and waits for it.
func (r *Runner) Exec(fn func(c *lquery.Context) error) (err error) {
	errCh := make(chan error, 1)
	r.loop.RunOnLoop(func(*js.Runtime) {
		defer func() {
			if rec := recover(); rec != nil {
				errCh <- fmt.Errorf("recovered: %v", rec)
			}
		}()
		errCh <- fn(r.c)
	})
	select {
	case err = <-errCh:
		return
	case <-time.After(r.timeout):
		return ErrTimeout
	}
}

// Boot runs the inline ctl scripts of the page, then scripts, and finally
// fires DOMContentLoaded. Failing scripts are logged and skipped.
func (r *Runner) Boot(scripts ...string) (err error) {
	var inline []string
	err = r.Exec(func(c *lquery.Context) error {
		els, err := c.Document().QuerySelectorAll(`script[type="` + ScriptType + `"]`)
		if err != nil {
			return err
		}
		for _, el := range els {
			inline = append(inline, el.TextContent())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("inline scripts: %w", err)
	}
	for i, s := range append(inline, scripts...) {
		if _, err := r.ExecScript(s); err != nil {
			r.log.Warn("script failed", zap.Int("script", i), zap.Error(err))
		}
	}
	return r.CloseDoc()
}

// CloseDoc fires DOMContentLoaded to trigger the Ready callbacks.
func (r *Runner) CloseDoc() (err error) {
	r.log.Debug("close doc")
	return r.Exec(func(c *lquery.Context) error {
		return c.Document().Close()
	})
}

// HTML renders the current document.
func (r *Runner) HTML() (h string, err error) {
	err = r.Exec(func(c *lquery.Context) error {
		h = c.Document().OuterHTML()
		return nil
	})
	return
}

// TriggerClick tries click, mouseup and focus on the element until one of
// them reaches a listener, and then returns the changed html.
func (r *Runner) TriggerClick(selector string) (newHTML string, changed bool, err error) {
	consumed := false
	err = r.Exec(func(c *lquery.Context) error {
		el, err := c.Document().QuerySelector(selector)
		if err != nil {
			return err
		}
		if el == nil {
			return fmt.Errorf("%w: %v", ErrNotFound, selector)
		}
		if consumed = el.Click(); consumed {
			return nil
		}
		if consumed = el.DispatchEvent(dom.NewEvent("mouseup", dom.EventInit{Bubbles: true, Cancelable: true})); consumed {
			return nil
		}
		consumed = el.Focus()
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if !consumed {
		r.log.Debug("event not consumed", zap.String("sel", selector))
		return
	}
	return r.TrackChanges()
}

// TrackChanges forwards mutations to subscribers until none arrived for the
// quiet period. Inserted ctl scripts are run. The html is returned if
// anything changed.
func (r *Runner) TrackChanges() (html string, changed bool, err error) {
outer:
	for {
		select {
		case m := <-r.doc.Mutations():
			changed = true
			r.publish(m)
			if m.Type == dom.Insert && strings.ToLower(m.Tag) == "script" && m.Node["type"] == ScriptType {
				r.runInserted(m)
			}
		case <-time.After(r.quiet):
			break outer
		}
	}
	if changed {
		if html, err = r.HTML(); err != nil {
			return "", false, err
		}
	}
	r.mu.Lock()
	r.outputHtml = html
	r.mu.Unlock()
	return
}

func (r *Runner) runInserted(m dom.Mutation) {
	s := m.Node["innerHTML"]
	if src, ok := m.Node["src"]; ok {
		req := r.c.Get(context.Background(), src, ajax.Options{
			DataType: "text",
			Dispatch: func(fn func()) { fn() },
		})
		data, err := req.Wait()
		if err != nil {
			r.log.Warn("script src", zap.String("src", src), zap.Error(err))
			return
		}
		s, _ = data.(string)
	}
	if strings.TrimSpace(s) == "" {
		return
	}
	if _, err := r.ExecScript(s); err != nil {
		r.log.Warn("inserted script", zap.String("path", m.Path), zap.Error(err))
	}
}

// Subscribe returns a feed of the mutations seen by TrackChanges. Slow
// subscribers miss mutations.
func (r *Runner) Subscribe() (ch <-chan dom.Mutation, cancel func()) {
	c := make(chan dom.Mutation, 100)
	r.mu.Lock()
	r.subs[c] = struct{}{}
	r.mu.Unlock()
	return c, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[c]; ok {
			delete(r.subs, c)
			close(c)
		}
	}
}

func (r *Runner) publish(m dom.Mutation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.subs {
		select {
		case c <- m:
		default:
		}
	}
}

// LastHTML is the html returned by the last TrackChanges.
func (r *Runner) LastHTML() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputHtml
}
