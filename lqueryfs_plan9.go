package lqueryfs

import (
	"os/user"
)

// PathPrefix is where the fs is mounted.
const PathPrefix = "/mnt/lquery"

func Group(u *user.User) (string, error) {
	return u.Gid, nil
}
