package git

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jwbla/repoman/pkg/logger"
)

// progressWriter forwards go-git sideband progress lines to the debug log,
// throttled so a large transfer does not flood the output.
type progressWriter struct {
	mu       sync.Mutex
	prefix   string
	interval time.Duration
	last     time.Time
}

// NewProgressWriter returns an io.Writer suitable for go-git's Progress
// option. Lines are logged at debug level at most once per second, except
// completion lines which are always logged.
func NewProgressWriter(prefix string) io.Writer {
	return &progressWriter{prefix: prefix, interval: time.Second}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	if line == "" {
		return len(p), nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	done := strings.Contains(line, "done")
	if !done && now.Sub(w.last) < w.interval {
		return len(p), nil
	}
	w.last = now
	logger.Debugf("%s: %s", w.prefix, line)
	return len(p), nil
}
