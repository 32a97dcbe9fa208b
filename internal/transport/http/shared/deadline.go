package shared

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ExtendWriteDeadline moves the server write deadline for this response to d
// from now. Handlers that send mail inline call it once they know how much
// work the request carries, since the server-wide WriteTimeout only covers
// ordinary requests.
func ExtendWriteDeadline(w http.ResponseWriter, d time.Duration) {
	if d <= 0 {
		return
	}
	err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(d))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		zap.L().Warn("extend write deadline failed", zap.Error(err))
	}
}
