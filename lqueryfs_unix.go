//go:build !plan9

// Package lqueryfs holds what the file server needs from the host system.
package lqueryfs

import (
	"fmt"
	"os/user"
)

// PathPrefix is the default service name the fs is posted as.
const PathPrefix = "lquery"

func Group(u *user.User) (string, error) {
	g, err := user.LookupGroupId(u.Gid)
	if err != nil {
		return "", fmt.Errorf("get group: %w", err)
	}
	return g.Name, nil
}
