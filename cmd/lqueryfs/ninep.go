package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/knusbaum/go9p/fs"
	"github.com/psilva261/lqueryfs"
	"github.com/psilva261/lqueryfs/logger"
	"github.com/psilva261/lqueryfs/runner"
	"github.com/urfave/cli/v3"
	"io"
	"net"
	"net/http"
	"os/user"
	"strings"
	"sync"
	"time"
)

var (
	d       *runner.Runner
	service string
	remote  bool
	mu      sync.Mutex
)

func serve9p(ctx context.Context, cmd *cli.Command) (err error) {
	if err = load(cmd); err != nil {
		return
	}
	service = cmd.String("service")
	if service == "" {
		service = cfg.NineP.Service
	}
	if service == "" {
		service = lqueryfs.PathPrefix
	}
	if err = Init(cfg.NineP.Source); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if htm == "" {
		return errors.New("no html file has been specified")
	}

	u, err := user.Current()
	if err != nil {
		return fmt.Errorf("get user: %v", err)
	}
	un := u.Username
	gn, err := lqueryfs.Group(u)
	if err != nil {
		return fmt.Errorf("get group: %v", err)
	}

	lfs, root := fs.NewFS(un, gn, 0500)
	h := fs.NewDynamicFile(lfs.NewStat("html", un, gn, 0400), currentHTML)
	c := fs.NewListenFile(lfs.NewStat("ctl", un, gn, 0600))
	if err = root.AddChild(h); err != nil {
		return
	}
	if err = root.AddChild(c); err != nil {
		return
	}
	lctl := (*fs.ListenFileListener)(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if remote {
		go AssertParent(ctx, cancel)
	}
	go Ctl(ctx, lctl)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("post fs %v...", service)
		errCh <- post(lfs.Server())
	}()
	select {
	case err = <-errCh:
		if err != nil {
			return
		}
		<-ctx.Done()
	case <-ctx.Done():
	}
	mu.Lock()
	defer mu.Unlock()
	if d != nil {
		d.Stop()
		d = nil
	}
	return
}

// currentHTML renders the running document, or the page as loaded before
// start.
func currentHTML() []byte {
	mu.Lock()
	defer mu.Unlock()
	if d == nil {
		return []byte(htm)
	}
	h, err := d.HTML()
	if err != nil {
		log.Errorf("html: %v", err)
		return []byte(htm)
	}
	return []byte(h)
}

// AssertParent cancels once the service the page came from is gone.
func AssertParent(ctx context.Context, cancel func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		if !stat() {
			log.Errorf("page source gone")
			cancel()
			return
		}
	}
}

func Ctl(ctx context.Context, lctl *fs.ListenFileListener) {
	for {
		conn, err := lctl.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("accept: %v", err)
			continue
		}
		go ctl(conn)
	}
}

// ctl handles one request on the ctl file. The first line is start, stop,
// click followed by a selector line, or a ctl command for the running
// document.
func ctl(conn net.Conn) {
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	defer conn.Close()
	defer w.Flush()

	l, err := r.ReadString('\n')
	if err != nil && l == "" {
		log.Printf("lqueryfs: read string: %v", err)
		return
	}
	l = strings.TrimSpace(l)

	mu.Lock()
	defer mu.Unlock()

	switch l {
	case "start":
		if d != nil {
			d.Stop()
		}
		var xhrq func(*http.Request) (*http.Response, error)
		if remote {
			xhrq = xhr
		}
		if d, err = newRunner(xhrq); err != nil {
			log.Errorf("new runner: %v", err)
			return
		}
		resHtm, changed, err := boot(d)
		if err != nil {
			log.Errorf("start: %v", err)
			return
		}
		log.Printf("lqueryfs: start: changed = %v", changed)
		if changed {
			w.WriteString(resHtm)
		}
	case "stop":
		if d != nil {
			d.Stop()
			d = nil
		}
	case "click":
		sel, err := r.ReadString('\n')
		if err != nil && sel == "" {
			log.Printf("lqueryfs: click: read string: %v", err)
			return
		}
		if d == nil {
			fmt.Fprintf(w, "error: not started\n")
			return
		}
		sel = strings.TrimSpace(sel)
		resHtm, changed, err := d.TriggerClick(sel)
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			return
		}
		log.Printf("lqueryfs: click: changed = %v", changed)
		if changed {
			w.WriteString(resHtm)
		}
	default:
		if d == nil {
			fmt.Fprintf(w, "error: not started\n")
			return
		}
		out, err := d.ExecScript(l)
		if out != "" {
			w.WriteString(out + "\n")
		}
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
		if _, _, err := d.TrackChanges(); err != nil {
			log.Errorf("track changes: %v", err)
		}
	}
}

// xhr forwards a request of the page to the xhr file of the page source.
func xhr(req *http.Request) (resp *http.Response, err error) {
	rwc, err := open("xhr")
	if err != nil {
		return nil, fmt.Errorf("open xhr: %w", err)
	}
	defer rwc.Close()
	if err := req.Write(rwc); err != nil {
		return nil, fmt.Errorf("write: %v", err)
	}
	buf := bytes.NewBufferString("")
	if n, err := io.Copy(buf, rwc); err != nil {
		if n == 0 {
			return nil, fmt.Errorf("io copy %v: %v", n, err)
		}
		log.Printf("io copy (read %v): %v", n, err)
	}
	if resp, err = http.ReadResponse(bufio.NewReader(buf), req); err != nil {
		return nil, fmt.Errorf("read resp: %v", err)
	}
	return
}
