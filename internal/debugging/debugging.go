// Package debugging builds the loggers used for translation traces.
package debugging

import (
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Enable returns a debug-level logger writing to filename, or to stdout when
// filename is empty. The closer releases the file.
//
// If the file cannot be created the returned logger is the disabled one and
// the error says why.
func Enable(filename string) (log.Logger, io.Closer, error) {
	if filename == "" {
		return newLogger(os.Stdout, level.AllowDebug()), nopCloser{}, nil
	}

	f, err := os.Create(filename)
	if err != nil {
		return Disabled(), nopCloser{}, fmt.Errorf("打开调试文件失败: %w", err)
	}
	return newLogger(f, level.AllowDebug()), f, nil
}

// Disabled returns a stderr logger that drops debug records.
func Disabled() log.Logger {
	return newLogger(os.Stderr, level.AllowInfo())
}

func newLogger(w io.Writer, allow level.Option) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, allow)
	return log.With(logger, "ts", log.DefaultTimestampUTC)
}
