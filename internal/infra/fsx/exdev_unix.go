//go:build unix

package fsx

import (
	"errors"
	"syscall"
)

// isEXDEV 识别 rename 的跨设备错误；errors.Is 会穿透 *os.LinkError。
func isEXDEV(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
