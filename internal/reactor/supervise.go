package reactor

import "go.uber.org/zap"

// Supervise launches fn in its own goroutine and logs+recovers if it
// panics, mirroring the teacher's pattern of dedicated background
// goroutines (healthCheckRoutine, metricsCollectionRoutine in
// database.ConnectionPool) that must never take the process down.
func Supervise(logger *zap.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("worker panicked, recovering",
					zap.String("worker", name),
					zap.Any("panic", r))
			}
		}()
		fn()
	}()
}
