package loom_archiver

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	AppName        = "loom-archiver"
	DefaultBaseURL = "https://www.loom.com"
	// ChunkSize is the buffer size used when streaming a media body to disk.
	ChunkSize = 1 << 20

	DefaultConcurrency = 5
	DefaultDelay       = 5000 * time.Millisecond
	DefaultOutputDir   = "Downloads"
)

// TargetFilename builds "{prefix}-{index}-{id}.mp4", or "{id}.mp4" when prefix is empty.
func TargetFilename(prefix string, index int, id string) string {
	if prefix == "" {
		return id + ".mp4"
	}
	return fmt.Sprintf("%s-%d-%s.mp4", prefix, index, id)
}

// DefaultCompletionLogPath is $XDG_CONFIG_HOME/loom-archiver/downloaded.log (or the platform equivalent), falling
// back to the working directory when no config directory can be determined.
func DefaultCompletionLogPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "downloaded.log"
	}
	return filepath.Join(dir, AppName, "downloaded.log")
}
