package reactive

import "go.uber.org/zap"

// nopLogger is used when a subscriber is constructed without an explicit
// logger, the same "nil callback means silent" posture the teacher SDK takes
// with its DataCallback/ErrorCallback.
var nopLogger = zap.NewNop()

func logOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return nopLogger
	}
	return l
}
