package runner

import (
	"context"
	"errors"
	"github.com/google/go-cmp/cmp"
	"github.com/psilva261/lqueryfs/ajax"
	"github.com/psilva261/lqueryfs/anim"
	"github.com/psilva261/lqueryfs/dom"
	"github.com/psilva261/lqueryfs/logger"
	"github.com/psilva261/lqueryfs/lquery"
	"go.uber.org/goleak"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func init() {
	log.Debug = true
}

const simpleHTML = `
<html>
<body>
<h1 id="title">Hello</h1>
<button id="btn">go</button>
<ul id="list"><li>a</li></ul>
</body>
</html>
`

func start(t *testing.T, htm string, opts ...Option) *Runner {
	opts = append([]Option{WithQuiet(50 * time.Millisecond)}, opts...)
	r, err := New(htm, nil, opts...)
	if err != nil {
		t.Fatalf("%v", err)
	}
	r.Start()
	t.Cleanup(r.Stop)
	return r
}

func ctl(t *testing.T, r *Runner, line string) string {
	out, err := r.ExecCtl(line)
	if err != nil {
		t.Fatalf("%v: %v", line, err)
	}
	return out
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	r, err := New(simpleHTML, nil)
	if err != nil {
		t.Fatalf("%v", err)
	}
	r.Start()
	if _, err := r.HTML(); err != nil {
		t.Fatalf("%v", err)
	}
	r.Stop()
}

func TestExecCtl(t *testing.T) {
	r := start(t, simpleHTML)
	if out := ctl(t, r, "text #title"); out != "Hello" {
		t.Fatalf("%v", out)
	}
	ctl(t, r, "html #title <b>x</b>")
	if out := ctl(t, r, "get #title"); out != `<h1 id="title"><b>x</b></h1>` {
		t.Fatalf("%v", out)
	}
	ctl(t, r, "attr #title data-x 1")
	if out := ctl(t, r, "ATTR #title data-x"); out != "1" {
		t.Fatalf("%v", out)
	}
	ctl(t, r, "css #title color red")
	if out := ctl(t, r, "css #title color"); out != "red" {
		t.Fatalf("%v", out)
	}
	if out := ctl(t, r, `count "#title, h1"`); out != "1" {
		t.Fatalf("%v", out)
	}
	ctl(t, r, "append #list <li>b</li>")
	ctl(t, r, `clone "#list li"`)
	if out := ctl(t, r, "text #list"); out != "aabb" {
		t.Fatalf("%v", out)
	}
	ctl(t, r, "wrap #title section")
	if out := ctl(t, r, `count "section > h1"`); out != "1" {
		t.Fatalf("%v", out)
	}
}

func TestExecCtlErrors(t *testing.T) {
	r := start(t, simpleHTML)
	for line, want := range map[string]error{
		"bogus #title":          ErrUnknownCommand,
		"":                      ErrUnknownCommand,
		"remove":                ErrArity,
		"remove #title extra":   ErrArity,
		"append #list":          ErrArity,
		"animate #title 1s":     ErrArity,
		"click #nope":           ErrNotFound,
		"fadeIn #title 10min":   anim.ErrUnsupportedUnit,
		"animate #a 1s ease x:": anim.ErrInvalidProp,
	} {
		if _, err := r.ExecCtl(line); !errors.Is(err, want) {
			t.Errorf("%q: %v", line, err)
		}
	}
}

func TestExecScript(t *testing.T) {
	var seen []string
	r := start(t, simpleHTML, WithObserver(func(cmd string, err error) {
		if err != nil {
			cmd += "!"
		}
		seen = append(seen, cmd)
	}))
	out, err := r.ExecScript(`
# comment
text #title Hi
nope
text #title
count li
`)
	if err == nil || !strings.Contains(err.Error(), "line 4") {
		t.Fatalf("%v", err)
	}
	if out != "Hi\n1" {
		t.Fatalf("%q", out)
	}
	if diff := cmp.Diff([]string{"text", "nope!", "text", "count"}, seen); diff != "" {
		t.Fatalf("(-want +got)\n%v", diff)
	}
}

func TestBootRunsInlineScripts(t *testing.T) {
	htm := `<html><body><ul id="list"><li>a</li></ul>
<script type="text/x-lquery">
append #list <li>b</li>
</script>
<script>ignored()</script>
</body></html>`
	r := start(t, htm)
	if err := r.Boot("append #list <li>c</li>"); err != nil {
		t.Fatalf("%v", err)
	}
	if out := ctl(t, r, "text #list"); out != "abc" {
		t.Fatalf("%v", out)
	}
}

func TestTrackChanges(t *testing.T) {
	r := start(t, simpleHTML)
	if err := r.Boot(); err != nil {
		t.Fatalf("%v", err)
	}
	if _, changed, err := r.TrackChanges(); err != nil || changed {
		t.Fatalf("%v %v", changed, err)
	}
	feed, cancel := r.Subscribe()
	defer cancel()
	ctl(t, r, `append body <p id="n">new</p>`)
	html, changed, err := r.TrackChanges()
	if err != nil || !changed {
		t.Fatalf("%v %v", changed, err)
	}
	if !strings.Contains(html, `<p id="n">new</p>`) || r.LastHTML() != html {
		t.Fatalf("%v", html)
	}
	select {
	case m := <-feed:
		if m.Type != dom.Insert || m.Tag != "p" {
			t.Fatalf("%+v", m)
		}
	case <-time.After(time.Second):
		t.Fatalf("no mutation")
	}
}

func TestInsertedScript(t *testing.T) {
	r := start(t, simpleHTML)
	ctl(t, r, `append body <script type="text/x-lquery">text #title changed</script>`)
	html, changed, err := r.TrackChanges()
	if err != nil || !changed {
		t.Fatalf("%v %v", changed, err)
	}
	if !strings.Contains(html, `<h1 id="title">changed</h1>`) {
		t.Fatalf("%v", html)
	}
}

func TestTriggerClick(t *testing.T) {
	r := start(t, simpleHTML)
	ctl(t, r, "on #btn click text #title clicked")
	html, changed, err := r.TriggerClick("#btn")
	if err != nil || !changed {
		t.Fatalf("%v %v", changed, err)
	}
	if !strings.Contains(html, `<h1 id="title">clicked</h1>`) {
		t.Fatalf("%v", html)
	}
	if _, changed, err := r.TriggerClick("#title"); err != nil || changed {
		t.Fatalf("%v %v", changed, err)
	}
	if _, _, err := r.TriggerClick("#nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("%v", err)
	}
}

func TestSchedulerOnLoop(t *testing.T) {
	r := start(t, simpleHTML)
	done := make(chan string, 1)
	ready := make(chan struct{})
	err := r.Exec(func(c *lquery.Context) error {
		c.Ready(func(*lquery.Context) { close(ready) })
		s := c.Select("#title").FadeIn(anim.Millis(20), func() {
			done <- c.Select("#title").CSSValue("animation")[0]
		})
		return s.Err()
	})
	if err != nil {
		t.Fatalf("%v", err)
	}
	if err := r.CloseDoc(); err != nil {
		t.Fatalf("%v", err)
	}
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatalf("ready not called")
	}
	select {
	case a := <-done:
		if a != "LQueryAnimationFadeIn 20ms linear forwards" {
			t.Fatalf("%v", a)
		}
	case <-time.After(time.Second):
		t.Fatalf("completion not called")
	}
}

func TestXHR(t *testing.T) {
	var urls []string
	xhr := func(req *http.Request) (*http.Response, error) {
		urls = append(urls, req.URL.String())
		body := `{"a":1}`
		if req.URL.Path == "/s.ctl" {
			body = "text #title fetched"
		}
		return &http.Response{
			StatusCode: 200,
			Status:     "200 OK",
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
	r, err := New(simpleHTML, xhr, WithQuiet(50*time.Millisecond), WithOrigin("https://example.org/x/"))
	if err != nil {
		t.Fatalf("%v", err)
	}
	r.Start()
	defer r.Stop()

	var req *ajax.Request
	err = r.Exec(func(c *lquery.Context) error {
		req = c.Get(context.Background(), "data", ajax.Options{})
		return nil
	})
	if err != nil {
		t.Fatalf("%v", err)
	}
	data, err := req.Wait()
	if err != nil {
		t.Fatalf("%v", err)
	}
	if diff := cmp.Diff(map[string]any{"a": float64(1)}, data); diff != "" {
		t.Fatalf("(-want +got)\n%v", diff)
	}

	ctl(t, r, `append body <script type="text/x-lquery" src="/s.ctl"></script>`)
	html, changed, err := r.TrackChanges()
	if err != nil || !changed || !strings.Contains(html, `<h1 id="title">fetched</h1>`) {
		t.Fatalf("%v %v %v", changed, err, html)
	}
	want := []string{"https://example.org/x/data", "https://example.org/s.ctl"}
	if diff := cmp.Diff(want, urls); diff != "" {
		t.Fatalf("(-want +got)\n%v", diff)
	}
}
