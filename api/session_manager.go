package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/r824vm/r824/arch"
	"github.com/r824vm/r824/debugger"
	"github.com/r824vm/r824/loader"
	"github.com/r824vm/r824/vm"
)

var (
	// ErrSessionNotFound is returned when a session is not found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionAlreadyExists is returned when trying to create a session with a colliding ID.
	ErrSessionAlreadyExists = errors.New("session already exists")
)

// queueConsole is a vm.Console backed by a broadcasting output writer and an
// in-memory input queue fed by POST /session/{id}/stdin.
type queueConsole struct {
	out *EventWriter

	mu    sync.Mutex
	input []byte
}

func (c *queueConsole) WriteByte(b byte) error {
	_, err := c.out.Write([]byte{b})
	return err
}

func (c *queueConsole) ReadByte() (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.input) == 0 {
		return 0, errors.New("no input available")
	}
	b := c.input[0]
	c.input = c.input[1:]
	return b, nil
}

func (c *queueConsole) feed(data string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = append(c.input, []byte(data)...)
}

// Session is one isolated R824 VM plus the symbol table from its most
// recently loaded program and the debugger machinery (breakpoints) the API
// exposes over HTTP.
type Session struct {
	ID        string
	VM        *vm.VM
	Dbg       *debugger.Debugger
	Console   *queueConsole
	Symbols   map[string]uint32
	CreatedAt time.Time

	// run-control state: running marks an active Run goroutine, stop asks
	// it to halt at the next instruction boundary (spec §5's cooperative
	// cancellation).
	runMu   sync.Mutex
	running bool
	stop    bool
}

// RequestStop asks a running session to halt at the next boundary.
func (s *Session) RequestStop() {
	s.runMu.Lock()
	s.stop = true
	s.runMu.Unlock()
}

func (s *Session) stopRequested() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.stop
}

// beginRun transitions the session to running; it reports false if a run
// loop is already active.
func (s *Session) beginRun() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.stop = false
	return true
}

func (s *Session) endRun() {
	s.runMu.Lock()
	s.running = false
	s.runMu.Unlock()
}

// IsRunning reports whether a run loop is active.
func (s *Session) IsRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

// SessionManager owns the set of live VM sessions, each independently
// steppable and broadcasting its own events.
type SessionManager struct {
	sessions    map[string]*Session
	broadcaster *Broadcaster
	mu          sync.RWMutex
}

// NewSessionManager creates a session manager broadcasting through b.
func NewSessionManager(b *Broadcaster) *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*Session),
		broadcaster: b,
	}
}

// CreateSession starts a fresh VM with the default R824 memory map (spec §6).
func (sm *SessionManager) CreateSession(_ SessionCreateRequest) (*Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	machine := vm.NewVM()

	var console *queueConsole
	if sm.broadcaster != nil {
		console = &queueConsole{out: NewEventWriter(sm.broadcaster, sessionID, "stdout")}
		machine.Console = console
		debugLog("Session %s: console wired to stdout broadcaster", sessionID)
	} else {
		console = &queueConsole{out: NewEventWriter(nil, sessionID, "stdout")}
		machine.Console = console
	}

	session := &Session{
		ID:        sessionID,
		VM:        machine,
		Dbg:       debugger.NewDebugger(machine),
		Console:   console,
		CreatedAt: time.Now(),
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.sessions[sessionID]; exists {
		return nil, ErrSessionAlreadyExists
	}

	sm.sessions[sessionID] = session
	return session, nil
}

// GetSession retrieves a session by ID.
func (sm *SessionManager) GetSession(sessionID string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// DestroySession removes a session by ID.
func (sm *SessionManager) DestroySession(sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.sessions[sessionID]; !exists {
		return ErrSessionNotFound
	}
	delete(sm.sessions, sessionID)
	return nil
}

// ListSessions returns every live session ID.
func (sm *SessionManager) ListSessions() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of active sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

func generateSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// assembleAndLoad assembles source against the default R824 architecture
// description and loads the resulting image into machine.
func assembleAndLoad(machine *vm.VM, source string) (map[string]uint32, []string) {
	res := loader.Assemble(arch.Default(), source)
	if len(res.Errors) > 0 {
		return nil, res.Errors
	}
	if err := machine.LoadImage(res.Image); err != nil {
		return nil, []string{err.Error()}
	}
	return res.Symbols, nil
}
