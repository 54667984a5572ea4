package bridge

import (
	"context"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
)

// socketProbeTimeout bounds the liveness dial against a session socket.
const socketProbeTimeout = time.Second

// DetectBySocket returns a detector that picks the native backend when a
// live daemon socket exists at socketPath and the engine backend
// otherwise. A socket file left behind by a dead daemon fails the
// liveness dial and falls through to the engine.
func DetectBySocket(socketPath string, native, engine Detector, logger *zap.Logger) Detector {
	return func(ctx context.Context) (Backend, error) {
		if daemonAlive(socketPath) {
			return native(ctx)
		}
		logger.Info("no session daemon, using in-process engine",
			zap.String("socket", socketPath))
		return engine(ctx)
	}
}

func daemonAlive(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, socketProbeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
