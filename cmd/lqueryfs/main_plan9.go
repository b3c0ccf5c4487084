package main

import (
	"fmt"
	"github.com/knusbaum/go9p"
	"github.com/psilva261/lqueryfs"
	"github.com/psilva261/lqueryfs/logger"
	"io"
	"os"
	"strings"
	"syscall"
)

var mtpt string

// Init loads url and html from /mnt/<source> unless a page was given on
// the command line.
func Init(source string) (err error) {
	if htm != "" {
		log.Printf("not loading html from mtpt")
		return
	}
	if source == "" {
		return
	}
	mtpt = "/mnt/" + source
	if bs, err := os.ReadFile(mtpt + "/url"); err == nil {
		origin = strings.TrimSpace(string(bs))
	}
	bs, err := os.ReadFile(mtpt + "/html")
	if err != nil {
		return fmt.Errorf("read html: %w", err)
	}
	htm = string(bs)
	remote = true
	return
}

func open(fn string) (rwc io.ReadWriteCloser, err error) {
	if mtpt == "" {
		return nil, fmt.Errorf("no page source")
	}
	return os.OpenFile(mtpt+"/"+fn, os.O_RDWR, 0600)
}

func stat() (ok bool) {
	if mtpt == "" {
		return true
	}
	_, err := os.Stat(mtpt)
	return err == nil
}

// post mounts the fs; it does not block.
func post(srv go9p.Srv) (err error) {
	f1, f2, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("pipe: %w", err)
	}

	go func() {
		if err := go9p.ServeReadWriter(f1, f1, srv); err != nil {
			log.Printf("serve rw: %v", err)
		}
	}()

	if err = syscall.Mount(int(f2.Fd()), -1, lqueryfs.PathPrefix, syscall.MCREATE, ""); err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	return
}
