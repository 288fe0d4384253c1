//go:build linux

package sources

import (
	"os"
	"os/user"
	"strconv"
	"syscall"
	"time"
)

func ownerAndCreated(info os.FileInfo) (string, time.Time) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", time.Time{}
	}
	uid := strconv.FormatUint(uint64(st.Uid), 10)
	owner := uid
	if u, err := user.LookupId(uid); err == nil {
		owner = u.Username
	}
	return owner, time.Unix(st.Ctim.Unix())
}
