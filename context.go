package loom_archiver

import (
	"context"
	"io"

	"go.uber.org/zap"
)

type loggerKey struct{}

// WithLogger attaches a logger to the context, for retrieval with Logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger attached by WithLogger, or the global zap logger.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.L()
}

// A context-aware io.Reader wrapper.
type readerContext struct {
	ctx context.Context
	r   io.Reader
}

func (r *readerContext) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// countingWriter reports progress after every write. It deliberately does not implement io.ReaderFrom, so
// io.CopyBuffer always goes through the caller's buffer.
type countingWriter struct {
	w        io.Writer
	total    int64
	written  int64
	progress func(written, total int64)
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.written += int64(n)
	if c.progress != nil {
		c.progress(c.written, c.total)
	}
	return n, err
}
