package main

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alanbriolat/loom-archiver"
)

func newPlatform(t *testing.T) (*httptest.Server, *int32) {
	var requests int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Method == http.MethodPost {
			id := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/campaigns/sessions/"), "/")[0]
			_, _ = io.WriteString(w, `{"url": "`+server.URL+`/media/`+id+`"}`)
			return
		}
		_, _ = io.WriteString(w, "video "+strings.TrimPrefix(r.URL.Path, "/media/"))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func runApp(args ...string) error {
	return newApp(zap.NewAtomicLevel()).Run(append([]string{loom_archiver.AppName}, args...))
}

func TestUsageErrors(t *testing.T) {
	server, requests := newPlatform(t)
	logPath := filepath.Join(t.TempDir(), "downloaded.log")
	common := []string{"--base-url", server.URL, "--completion-log", logPath}

	tests := []struct {
		name string
		args []string
	}{
		{"neither url nor list", nil},
		{"both url and list", []string{"--url", "https://www.loom.com/share/a", "--list", "list.txt"}},
		{"negative timeout", []string{"--list", "list.txt", "--timeout=-1"}},
		{"zero concurrency", []string{"--list", "list.txt", "--concurrency=0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runApp(append(common, tt.args...)...)
			var usageErr *loom_archiver.UsageError
			assert_.True(t, errors.As(err, &usageErr), "expected UsageError, got %v", err)
		})
	}
	assert_.Equal(t, int32(0), atomic.LoadInt32(requests))
	assert_.NoFileExists(t, logPath)
}

func TestDownloadList(t *testing.T) {
	assert := assert_.New(t)
	server, _ := newPlatform(t)
	dir := t.TempDir()
	listPath := filepath.Join(dir, "list.txt")
	logPath := filepath.Join(dir, "state", "downloaded.log")
	outDir := filepath.Join(dir, "videos")
	list := "https://www.loom.com/share/aaa\n\nhttps://www.loom.com/share/bbb?sid=1\n"
	require.NoError(t, os.WriteFile(listPath, []byte(list), 0644))

	err := runApp("--base-url", server.URL, "--completion-log", logPath,
		"-l", listPath, "-o", outDir, "-p", "lesson", "-t", "0")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "lesson-1-aaa.mp4"))
	require.NoError(t, err)
	assert.Equal("video aaa", string(data))
	assert.FileExists(filepath.Join(outDir, "lesson-2-bbb.mp4"))

	logData, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(logData)), "\n")
	assert.ElementsMatch([]string{"https://www.loom.com/share/aaa", "https://www.loom.com/share/bbb?sid=1"}, lines)
}

func TestDownloadSingle(t *testing.T) {
	assert := assert_.New(t)
	server, _ := newPlatform(t)
	dir := t.TempDir()
	logPath := filepath.Join(dir, "downloaded.log")
	out := filepath.Join(dir, "single", "talk.mp4")

	err := runApp("--base-url", server.URL, "--completion-log", logPath,
		"-u", "https://www.loom.com/share/ccc?sid=2", "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal("video ccc", string(data))
	// Single-file mode never touches the completion log
	assert.NoFileExists(logPath)
}
