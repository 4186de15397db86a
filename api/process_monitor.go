package api

import (
	"os"
	"sync"
	"time"
)

// ProcessMonitor shuts the API server down when its parent process dies.
// The server is meant to run as a child of a GUI or editor host; if that
// host crashes or is force-quit, the OS re-parents this process and the
// PPID changes, which is the signal to exit instead of lingering as an
// orphan on the user's machine.
type ProcessMonitor struct {
	parentPID     int
	checkInterval time.Duration
	shutdownFunc  func()
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewProcessMonitor captures the current parent PID and returns a monitor
// that invokes shutdownFunc once that parent is gone.
func NewProcessMonitor(shutdownFunc func()) *ProcessMonitor {
	return &ProcessMonitor{
		parentPID:     os.Getppid(),
		checkInterval: 2 * time.Second,
		shutdownFunc:  shutdownFunc,
		stopChan:      make(chan struct{}),
	}
}

// Start launches the watch goroutine.
func (pm *ProcessMonitor) Start() {
	go pm.watch()
}

// Stop ends the watch. Safe to call more than once.
func (pm *ProcessMonitor) Stop() {
	pm.stopOnce.Do(func() {
		close(pm.stopChan)
	})
}

func (pm *ProcessMonitor) watch() {
	ticker := time.NewTicker(pm.checkInterval)
	defer ticker.Stop()

	debugLog("process monitor watching parent pid %d", pm.parentPID)

	for {
		select {
		case <-ticker.C:
			if ppid := os.Getppid(); ppid != pm.parentPID {
				debugLog("parent pid changed %d -> %d, shutting down", pm.parentPID, ppid)
				pm.shutdownFunc()
				return
			}
		case <-pm.stopChan:
			return
		}
	}
}
