//go:build !linux

package watch

import (
	"fmt"
	"log/slog"
	"runtime"
)

func newInotifyNotifier(*slog.Logger) (Notifier, error) {
	return nil, fmt.Errorf("%w: inotify is not supported on %s", ErrBackendUnavailable, runtime.GOOS)
}
