package main

import (
	"bytes"
	"context"
	"github.com/psilva261/lqueryfs/config"
	"github.com/psilva261/lqueryfs/logger"
	"go.uber.org/zap"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func init() {
	log.Debug = true
}

const page = `<html><body><h1 id="title">Hello</h1><button id="btn">go</button></body></html>`

func writeFile(t *testing.T, dir, name, content string) string {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("%v", err)
	}
	return p
}

func runApp(t *testing.T, args ...string) string {
	var buf bytes.Buffer
	a := app()
	a.Writer = &buf
	if err := a.Run(context.Background(), append([]string{"lqueryfs"}, args...)); err != nil {
		t.Fatalf("%v", err)
	}
	return buf.String()
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	conf := writeFile(t, dir, "config.yaml", "version: 1\nrunner:\n  quiet: 50ms\n")
	h := writeFile(t, dir, "page.html", page)
	s := writeFile(t, dir, "s.ctl", "text #title Hi\nappend body <p>new</p>\n")
	out := runApp(t, "--config", conf, "run", "--html", h, s)
	if !strings.Contains(out, `<h1 id="title">Hi</h1>`) || !strings.Contains(out, "<p>new</p>") {
		t.Fatalf("%v", out)
	}
}

func TestDumpConfig(t *testing.T) {
	if out := runApp(t, "dumpconfig", "--default"); !strings.Contains(out, "version: 1") {
		t.Fatalf("%v", out)
	}
	if out := runApp(t, "dumpconfig"); !strings.Contains(out, "easing: linear") {
		t.Fatalf("%v", out)
	}
}

func request(t *testing.T, lines string) string {
	c1, c2 := net.Pipe()
	go ctl(c2)
	go c1.Write([]byte(lines))
	out, err := io.ReadAll(c1)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return string(out)
}

func TestCtl(t *testing.T) {
	var err error
	if cfg, err = config.LoadConfiguration(""); err != nil {
		t.Fatalf("%v", err)
	}
	cfg.Runner.Quiet = 50 * time.Millisecond
	lg = zap.NewNop()
	htm = page
	scripts = nil
	origin = cfg.Runner.Origin
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		if d != nil {
			d.Stop()
			d = nil
		}
	})

	if out := request(t, "text #title\n"); out != "error: not started\n" {
		t.Fatalf("%q", out)
	}
	request(t, "start\n")
	if out := request(t, "text #title\n"); out != "Hello\n" {
		t.Fatalf("%q", out)
	}
	if out := request(t, "on #btn click text #title clicked\n"); out != "" {
		t.Fatalf("%q", out)
	}
	if out := request(t, "click\n#btn\n"); !strings.Contains(out, `<h1 id="title">clicked</h1>`) {
		t.Fatalf("%q", out)
	}
	if out := request(t, "click\n#nope\n"); !strings.HasPrefix(out, "error: ") {
		t.Fatalf("%q", out)
	}
	if h := string(currentHTML()); !strings.Contains(h, "clicked") {
		t.Fatalf("%v", h)
	}
	request(t, "stop\n")
	if d != nil {
		t.Fatalf("still running")
	}
	if h := string(currentHTML()); h != page {
		t.Fatalf("%v", h)
	}
}
