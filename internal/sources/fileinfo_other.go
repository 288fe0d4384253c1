//go:build !linux

package sources

import (
	"os"
	"time"
)

func ownerAndCreated(info os.FileInfo) (string, time.Time) {
	return "", info.ModTime()
}
