package completion

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/alanbriolat/loom-archiver/generic"
	"github.com/alanbriolat/loom-archiver/internal/sync_"
)

type appender struct {
	path string
	file *os.File
}

type textLog struct {
	path     string
	appender *sync_.Mutexed[*appender]
	log      *zap.SugaredLogger
}

// OpenText returns a Log kept as a text file at path. Nothing is touched on disk until the first Load or
// MarkCompleted.
func OpenText(path string) Log {
	return &textLog{
		path:     path,
		appender: sync_.NewMutexed(&appender{path: path}),
		log:      zap.S().Named("completion").With("path", path),
	}
}

func (l *textLog) Load() (generic.Set[string], error) {
	completed := generic.NewSet[string]()
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.log.Debug("no completion log yet")
		return completed, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read completion log: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			completed.Add(line)
		}
	}
	l.log.Debugf("loaded %d completed URLs", completed.Count())
	return completed, nil
}

func (l *textLog) MarkCompleted(sourceURL string) error {
	return l.appender.Locked(func(a *appender) error {
		if a.file == nil {
			if err := os.MkdirAll(filepath.Dir(a.path), 0750); err != nil {
				return fmt.Errorf("failed to create completion log directory: %w", err)
			}
			f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("failed to open completion log: %w", err)
			}
			a.file = f
		}
		// One write per line, so an O_APPEND file never interleaves partial lines.
		if _, err := a.file.WriteString(sourceURL + "\n"); err != nil {
			return fmt.Errorf("failed to append to completion log: %w", err)
		}
		return nil
	})
}

func (l *textLog) Close() error {
	return l.appender.Locked(func(a *appender) error {
		if a.file == nil {
			return nil
		}
		err := a.file.Close()
		a.file = nil
		return err
	})
}
