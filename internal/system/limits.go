// Package system probes the host: file limits, memory and the available
// VP9 encoders.
package system

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

// OpenFilesTarget is the soft RLIMIT_NOFILE requested at startup.
const OpenFilesTarget = 2048

// InitResourceLimits raises the open files limit (ffmpeg pipes, sqlite, lock
// files). Failures are logged only.
func InitResourceLimits(logger *slog.Logger) {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		logger.Warn("Не удалось получить лимит файлов", "error", err)
		return
	}
	if lim.Cur >= OpenFilesTarget {
		return
	}
	lim.Cur = min(uint64(OpenFilesTarget), lim.Max)
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		logger.Warn("Не удалось установить лимит файлов", "error", err)
		return
	}
	logger.Debug("open files limit raised", "limit", lim.Cur)
}
