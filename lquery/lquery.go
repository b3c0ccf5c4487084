// Package lquery is a jQuery-style facade over a dom.Document: selections
// with chainable setters, tracked event listeners, keyframe animations and
// ajax calls.
package lquery

import (
	"context"
	"github.com/psilva261/lqueryfs/ajax"
	"github.com/psilva261/lqueryfs/anim"
	"github.com/psilva261/lqueryfs/dom"
	"github.com/psilva261/lqueryfs/events"
	"go.uber.org/zap"
	"net/http"
	"sync"
	"time"
)

// Scheduler defers work. Callbacks never run inside the call that
// scheduled them.
type Scheduler interface {
	SetTimeout(fn func(), d time.Duration)
	RunOnLoop(fn func())
}

// TimerScheduler runs callbacks on timer goroutines, one at a time.
type TimerScheduler struct {
	mu sync.Mutex
}

func (s *TimerScheduler) SetTimeout(fn func(), d time.Duration) {
	time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn()
	})
}

func (s *TimerScheduler) RunOnLoop(fn func()) {
	s.SetTimeout(fn, 0)
}

type Defaults struct {
	Duration    anim.Duration
	Easing      string
	AjaxTimeout time.Duration
	DataType    string
}

var DefaultDefaults = Defaults{
	Duration: anim.Spec("400ms"),
	Easing:   "linear",
	DataType: ajax.DefaultDataType,
}

// Context binds a document to the state lQuery keeps about it.
type Context struct {
	doc       *dom.Document
	tracker   *events.Tracker
	reg       *anim.Registrar
	sched     Scheduler
	log       *zap.Logger
	defaults  Defaults
	transport http.RoundTripper
}

type Option func(*Context)

func WithScheduler(s Scheduler) Option {
	return func(c *Context) {
		c.sched = s
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		c.log = l
	}
}

func WithTracker(t *events.Tracker) Option {
	return func(c *Context) {
		c.tracker = t
	}
}

func WithRegistrar(r *anim.Registrar) Option {
	return func(c *Context) {
		c.reg = r
	}
}

// WithDefaults replaces the non-zero fields of the defaults.
func WithDefaults(d Defaults) Option {
	return func(c *Context) {
		if d.Duration.IsSet() {
			c.defaults.Duration = d.Duration
		}
		if d.Easing != "" {
			c.defaults.Easing = d.Easing
		}
		if d.AjaxTimeout > 0 {
			c.defaults.AjaxTimeout = d.AjaxTimeout
		}
		if d.DataType != "" {
			c.defaults.DataType = d.DataType
		}
	}
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *Context) {
		c.transport = rt
	}
}

func New(doc *dom.Document, opts ...Option) (c *Context) {
	c = &Context{
		doc:      doc,
		defaults: DefaultDefaults,
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.Named("lquery")
	if c.tracker == nil {
		c.tracker = events.New(c.log)
	}
	if c.reg == nil {
		c.reg = anim.NewRegistrar(doc, c.log)
	}
	if c.sched == nil {
		c.sched = &TimerScheduler{}
	}
	return
}

func (c *Context) Document() *dom.Document {
	return c.doc
}

func (c *Context) Tracker() *events.Tracker {
	return c.tracker
}

func (c *Context) Registrar() *anim.Registrar {
	return c.reg
}

func (c *Context) Scheduler() Scheduler {
	return c.sched
}

func (c *Context) Defaults() Defaults {
	return c.defaults
}

// Ready runs fn once the document has loaded, or soon if it already has.
func (c *Context) Ready(fn func(*Context)) {
	if c.doc.ReadyState() != dom.Loading {
		c.sched.RunOnLoop(func() { fn(c) })
		return
	}
	var l *dom.Listener
	l = dom.NewListener(func(*dom.Event) {
		c.doc.RemoveEventListener("DOMContentLoaded", l)
		fn(c)
	})
	c.doc.AddEventListener("DOMContentLoaded", l)
}

// Ajax sends a request with the context's transport, defaults and
// scheduler. Handlers run on the scheduler.
func (c *Context) Ajax(ctx context.Context, opts ajax.Options) *ajax.Request {
	return ajax.Send(ctx, c.ajaxOptions(opts))
}

func (c *Context) Get(ctx context.Context, u string, opts ajax.Options) *ajax.Request {
	return ajax.Get(ctx, "", c.ajaxOptions(withURL(opts, u)))
}

func (c *Context) Post(ctx context.Context, u string, opts ajax.Options) *ajax.Request {
	return ajax.Post(ctx, "", c.ajaxOptions(withURL(opts, u)))
}

func (c *Context) Put(ctx context.Context, u string, opts ajax.Options) *ajax.Request {
	return ajax.Put(ctx, "", c.ajaxOptions(withURL(opts, u)))
}

func (c *Context) Delete(ctx context.Context, u string, opts ajax.Options) *ajax.Request {
	return ajax.Delete(ctx, "", c.ajaxOptions(withURL(opts, u)))
}

func withURL(opts ajax.Options, u string) ajax.Options {
	if u != "" {
		opts.URL = u
	}
	return opts
}

func (c *Context) ajaxOptions(opts ajax.Options) ajax.Options {
	if opts.Transport == nil {
		opts.Transport = c.transport
	}
	if opts.Dispatch == nil {
		opts.Dispatch = c.sched.RunOnLoop
	}
	if opts.Timeout == 0 {
		opts.Timeout = c.defaults.AjaxTimeout
	}
	if opts.DataType == "" {
		opts.DataType = c.defaults.DataType
	}
	if opts.Logger == nil {
		opts.Logger = c.log
	}
	if l := c.doc.Location(); l != nil {
		if opts.URL != "" {
			if abs, err := l.Resolve(opts.URL); err == nil {
				if !l.SameOrigin(abs) {
					opts.CrossDomain = true
				}
				opts.URL = abs
			}
		}
	}
	return opts
}
