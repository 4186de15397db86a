package api

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Debug logging for the inspection service. Off by default; setting
// R824_API_DEBUG routes it to a file in the temp directory so a misbehaving
// GUI host session can be reconstructed after the fact. The file handle
// stays open for the process lifetime; the OS reclaims it on exit.
var (
	apiLogOnce sync.Once
	apiLog     *log.Logger
)

func debugLog(format string, args ...interface{}) {
	apiLogOnce.Do(initAPILog)
	apiLog.Printf(format, args...)
}

func initAPILog() {
	if os.Getenv("R824_API_DEBUG") == "" {
		apiLog = log.New(io.Discard, "", 0)
		return
	}

	logPath := filepath.Join(os.TempDir(), "r824-api-debug.log")
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600) // #nosec G304 -- fixed filename in temp dir
	if err != nil {
		apiLog = log.New(os.Stderr, "API: ", log.Ltime|log.Lmicroseconds|log.Lshortfile)
		return
	}
	apiLog = log.New(f, "API: ", log.Ltime|log.Lmicroseconds|log.Lshortfile)
}
