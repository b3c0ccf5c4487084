//go:build !plan9

package main

import (
	"9fans.net/go/plan9"
	"9fans.net/go/plan9/client"
	"fmt"
	"github.com/knusbaum/go9p"
	"github.com/psilva261/lqueryfs/logger"
	"io"
	"os/user"
	"strings"
)

var fsys *client.Fsys

// Init loads url and html from the 9p service source unless a page was
// given on the command line.
func Init(source string) (err error) {
	if htm != "" {
		log.Printf("not loading html from service")
		return
	}
	if source == "" {
		return
	}
	conn, err := client.DialService(source)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	u, err := user.Current()
	if err != nil {
		return
	}
	if fsys, err = conn.Attach(nil, u.Username, ""); err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	remote = true
	if bs, err := readFile("url"); err == nil {
		origin = strings.TrimSpace(string(bs))
	} else {
		log.Printf("open url: %v", err)
	}
	bs, err := readFile("html")
	if err != nil {
		return fmt.Errorf("open html: %w", err)
	}
	htm = string(bs)
	return
}

func readFile(fn string) ([]byte, error) {
	fid, err := fsys.Open(fn, plan9.OREAD)
	if err != nil {
		return nil, err
	}
	defer fid.Close()
	return io.ReadAll(fid)
}

func open(fn string) (rwc io.ReadWriteCloser, err error) {
	if fsys == nil {
		return nil, fmt.Errorf("no page source")
	}
	return fsys.Open(fn, plan9.ORDWR)
}

func stat() (ok bool) {
	if fsys == nil {
		return true
	}
	_, err := fsys.Stat("html")
	return err == nil
}

func post(srv go9p.Srv) (err error) {
	if service == "" {
		return fmt.Errorf("no service specified")
	}
	return go9p.PostSrv(service, srv)
}
