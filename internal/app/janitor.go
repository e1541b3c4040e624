package app

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// janitorReporter logs each checkout janitor run and stamps last with its
// time. Failed runs stamp it too: the heartbeat tracks the janitor loop, while
// database reachability is the postgres readiness check's concern.
func janitorReporter(lg *zap.Logger, last *atomic.Int64, now func() time.Time) func(n int64, err error) {
	return func(n int64, err error) {
		last.Store(now().UnixNano())
		if err != nil {
			lg.Error("Settle expired checkout sessions", zap.Int64("settled", n), zap.Error(err))
			return
		}
		if n > 0 {
			lg.Info("Settled expired checkout sessions", zap.Int64("count", n))
		}
	}
}
