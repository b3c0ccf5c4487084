// Package ajax wraps an HTTP round trip in callback hooks and chainable
// handlers, in the manner of $.ajax.
package ajax

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/beevik/etree"
	"github.com/psilva261/lqueryfs/dom"
	"go.uber.org/zap"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNoURL               = errors.New("no url provided")
	ErrTimeout             = errors.New("request timed out")
	ErrUnsupportedDataType = errors.New("unsupported data type")
)

const DefaultDataType = "json"

var defaultAccepts = map[string]string{
	"json":   "application/json, text/javascript, */*; q=0.01",
	"xml":    "application/xml, text/xml, */*; q=0.01",
	"html":   "text/html, */*; q=0.01",
	"script": "text/javascript, application/javascript, */*; q=0.01",
	"text":   "text/plain, */*; q=0.01",
}

// StatusError is returned for responses outside 2xx.
type StatusError struct {
	Code   int
	Status string
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %v", e.Status)
}

type Options struct {
	URL    string
	Method string
	// Data goes into the query string of GET requests and into a JSON
	// body otherwise.
	Data        map[string]any
	Accepts     map[string]string
	ContentType string
	Headers     map[string]string
	NoCache     bool
	CrossDomain bool
	Timeout     time.Duration
	DataType    string
	DataFilter  func(data any, dataType string) any
	// StatusCode handlers get the data on success and the error otherwise.
	StatusCode map[int]func(any)
	Success    func(data any)
	Error      func(err error)
	Complete   func(err error, data any)
	Transport  http.RoundTripper
	// Dispatch runs handlers; by default they run on the request goroutine.
	Dispatch func(func())
	Logger   *zap.Logger
}

// Request is one ajax call. Handlers registered after completion run
// right away through Dispatch.
type Request struct {
	opts Options
	log  *zap.Logger
	done chan struct{}

	mu       sync.Mutex
	finished bool
	pending  []func()
	status   int
	data     any
	err      error
}

// New validates opts; url, when set, overrides opts.URL.
func New(u string, opts Options) (r *Request, err error) {
	if u != "" {
		opts.URL = u
	}
	if opts.URL == "" {
		return nil, ErrNoURL
	}
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	opts.Method = strings.ToUpper(opts.Method)
	if opts.DataType == "" {
		opts.DataType = DefaultDataType
	}
	opts.DataType = strings.ToLower(opts.DataType)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r = &Request{
		opts: opts,
		log:  opts.Logger.Named("ajax"),
		done: make(chan struct{}),
	}
	return
}

// Send starts a request. Validation errors complete the request at once.
func Send(ctx context.Context, opts Options) *Request {
	r, err := New("", opts)
	if err != nil {
		r = &Request{opts: opts, log: zap.NewNop(), done: make(chan struct{})}
		r.finish(0, nil, err)
		return r
	}
	r.Start(ctx)
	return r
}

func Get(ctx context.Context, u string, opts Options) *Request {
	return shortcut(ctx, http.MethodGet, u, opts)
}

func Post(ctx context.Context, u string, opts Options) *Request {
	return shortcut(ctx, http.MethodPost, u, opts)
}

func Put(ctx context.Context, u string, opts Options) *Request {
	return shortcut(ctx, http.MethodPut, u, opts)
}

func Delete(ctx context.Context, u string, opts Options) *Request {
	return shortcut(ctx, http.MethodDelete, u, opts)
}

func shortcut(ctx context.Context, method, u string, opts Options) *Request {
	if u != "" {
		opts.URL = u
	}
	opts.Method = method
	return Send(ctx, opts)
}

func (r *Request) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Request) run(ctx context.Context) {
	var cancel context.CancelFunc
	if r.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	req, err := r.httpRequest(ctx)
	if err != nil {
		r.finish(0, nil, err)
		return
	}
	r.log.Debug("send", zap.String("method", req.Method), zap.Stringer("url", req.URL))
	cl := &http.Client{Transport: r.opts.Transport}
	resp, err := cl.Do(req)
	if err != nil {
		if r.opts.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = ErrTimeout
		}
		r.finish(0, nil, fmt.Errorf("%v %v: %w", req.Method, req.URL, err))
		return
	}
	defer resp.Body.Close()
	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		if r.opts.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = ErrTimeout
		}
		r.finish(resp.StatusCode, nil, fmt.Errorf("read body: %w", err))
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.finish(resp.StatusCode, nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: bs})
		return
	}
	data, err := Decode(r.opts.DataType, bs)
	if err != nil {
		r.finish(resp.StatusCode, nil, err)
		return
	}
	if r.opts.DataFilter != nil {
		data = r.opts.DataFilter(data, r.opts.DataType)
	}
	r.finish(resp.StatusCode, data, nil)
}

func (r *Request) httpRequest(ctx context.Context) (req *http.Request, err error) {
	u, err := url.Parse(r.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	var body io.Reader
	if r.opts.Method == http.MethodGet {
		if len(r.opts.Data) > 0 {
			q := u.Query()
			for _, k := range sortedKeys(r.opts.Data) {
				q.Add(k, fmt.Sprint(r.opts.Data[k]))
			}
			u.RawQuery = q.Encode()
		}
	} else if r.opts.Data != nil {
		bs, err := json.Marshal(r.opts.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}
		body = bytes.NewReader(bs)
	}
	req, err = http.NewRequestWithContext(ctx, r.opts.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if len(r.opts.Accepts) > 0 {
		for _, k := range sortedKeys(r.opts.Accepts) {
			req.Header.Add("Accept", r.opts.Accepts[k])
		}
	} else if a, ok := defaultAccepts[r.opts.DataType]; ok {
		req.Header.Set("Accept", a)
	}
	if r.opts.ContentType != "" {
		req.Header.Set("Content-Type", r.opts.ContentType)
	} else if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	if r.opts.NoCache {
		req.Header.Set("Cache-Control", "no-store")
	}
	if !r.opts.CrossDomain {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	for _, k := range sortedKeys(r.opts.Headers) {
		req.Header.Add(k, r.opts.Headers[k])
	}
	return
}

// Decode converts a response body according to dataType.
func Decode(dataType string, bs []byte) (data any, err error) {
	switch strings.ToLower(dataType) {
	case "json", "":
		if len(bytes.TrimSpace(bs)) == 0 {
			return nil, nil
		}
		if err := json.Unmarshal(bs, &data); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case "xml":
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(bs); err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}
		data = doc
	case "html":
		doc, err := dom.Parse(string(bs))
		if err != nil {
			return nil, fmt.Errorf("decode html: %w", err)
		}
		data = doc
	case "script", "text":
		data = string(bs)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDataType, dataType)
	}
	return
}

func (r *Request) finish(status int, data any, err error) {
	r.mu.Lock()
	r.status = status
	r.data = data
	r.err = err
	r.finished = true
	ps := r.pending
	r.pending = nil
	r.mu.Unlock()
	close(r.done)
	if err != nil {
		r.log.Debug("failed", zap.String("url", r.opts.URL), zap.Error(err))
	}
	r.dispatch(func() {
		r.handle()
		for _, p := range ps {
			p()
		}
	})
}

// handle runs the option handlers: status code, success, error, complete.
func (r *Request) handle() {
	if fn, ok := r.opts.StatusCode[r.status]; ok && r.status != 0 {
		if r.err == nil {
			fn(r.data)
		} else {
			fn(r.err)
		}
	}
	if r.err == nil && r.opts.Success != nil {
		r.opts.Success(r.data)
	}
	if r.err != nil && r.opts.Error != nil {
		r.opts.Error(r.err)
	}
	if r.opts.Complete != nil {
		r.opts.Complete(r.err, r.data)
	}
}

func (r *Request) dispatch(fn func()) {
	if r.opts.Dispatch != nil {
		r.opts.Dispatch(fn)
		return
	}
	fn()
}

func (r *Request) on(fn func()) *Request {
	r.mu.Lock()
	if !r.finished {
		r.pending = append(r.pending, fn)
		r.mu.Unlock()
		return r
	}
	r.mu.Unlock()
	r.dispatch(fn)
	return r
}

// Wait blocks until the request is complete.
func (r *Request) Wait() (any, error) {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data, r.err
}

// Finished is closed when the request is complete.
func (r *Request) Finished() <-chan struct{} {
	return r.done
}

// Status is the HTTP status code, 0 if no response arrived.
func (r *Request) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Request) Done(fn func(data any)) *Request {
	return r.on(func() {
		if r.err == nil {
			fn(r.data)
		}
	})
}

func (r *Request) Fail(fn func(err error)) *Request {
	return r.on(func() {
		if r.err != nil {
			fn(r.err)
		}
	})
}

func (r *Request) Always(fn func(err error, data any)) *Request {
	return r.on(func() {
		fn(r.err, r.data)
	})
}

// Then registers both outcomes at once; either may be nil.
func (r *Request) Then(success func(data any), fail func(err error)) *Request {
	if success != nil {
		r.Done(success)
	}
	if fail != nil {
		r.Fail(fail)
	}
	return r
}

func (r *Request) Catch(fn func(err error)) *Request {
	return r.Fail(fn)
}

func sortedKeys[V any](m map[string]V) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}
