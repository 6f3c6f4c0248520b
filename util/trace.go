package util

import (
	"log/slog"
	"time"
)

// Trace 用法：defer util.Trace("key image")()
func Trace(msg string) func() {
	start := time.Now()
	slog.Info("start " + msg)
	return func() {
		slog.Info("done "+msg, "elapsed", time.Since(start))
	}
}
