package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/r824vm/r824/vm"
)

// handleCreateSession handles POST /api/v1/session
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionCreateRequest
	// An empty body is fine; a malformed one is not.
	if r.ContentLength > 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	session, err := s.sessions.CreateSession(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create session: %v", err))
		return
	}

	response := SessionCreateResponse{
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
	}

	writeJSON(w, http.StatusCreated, response)
}

// handleListSessions handles GET /api/v1/session
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.sessions.ListSessions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": ids,
		"count":    len(ids),
	})
}

// handleGetSessionStatus handles GET /api/v1/session/{id}
func (s *Server) handleGetSessionStatus(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, stateSnapshot(session))
}

// handleDestroySession handles DELETE /api/v1/session/{id}
func (s *Server) handleDestroySession(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	session.RequestStop()

	if err := s.sessions.DestroySession(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// handleLoadProgram handles POST /api/v1/session/{id}/load: assembles the
// posted source and loads the image into the session's VM.
func (s *Server) handleLoadProgram(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if session.IsRunning() {
		writeError(w, http.StatusConflict, "Session is running")
		return
	}

	var req LoadProgramRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	symbols, errs := assembleAndLoad(session.VM, req.Source)
	if len(errs) > 0 {
		writeJSON(w, http.StatusOK, LoadProgramResponse{Success: false, Errors: errs})
		return
	}

	session.Symbols = symbols
	session.Dbg.LoadSymbols(symbols)

	writeJSON(w, http.StatusOK, LoadProgramResponse{Success: true, Symbols: symbols})
}

// handleRun handles POST /api/v1/session/{id}/run: starts a run loop on its
// own goroutine, broadcasting state when it stops.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if !session.beginRun() {
		writeError(w, http.StatusConflict, "Session is already running")
		return
	}

	go func() {
		defer session.endRun()

		machine := session.VM
		for !machine.CPU.Halted && !session.stopRequested() {
			if bp := session.Dbg.Breakpoints.ProcessHit(machine.CPU.IPtr); bp != nil {
				s.broadcaster.BroadcastExecutionEvent(sessionID, "breakpoint", map[string]interface{}{
					"address": machine.CPU.IPtr,
					"id":      bp.ID,
				})
				break
			}
			if _, err := machine.Step(); err != nil {
				s.broadcaster.BroadcastExecutionEvent(sessionID, "error", map[string]interface{}{
					"message": err.Error(),
				})
				break
			}
		}

		if machine.CPU.Halted {
			s.broadcaster.BroadcastExecutionEvent(sessionID, "halt", map[string]interface{}{
				"exitCode": machine.ExitCode,
			})
		}
		s.broadcaster.BroadcastState(sessionID, stateData(session))
	}()

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Run started"})
}

// handleStop handles POST /api/v1/session/{id}/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	session.RequestStop()
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Stop requested"})
}

// handleStep handles POST /api/v1/session/{id}/step: executes exactly one
// instruction and broadcasts the new state.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if session.IsRunning() {
		writeError(w, http.StatusConflict, "Session is running")
		return
	}

	if _, err := session.VM.Step(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Runtime fault: %v", err))
		return
	}

	s.broadcaster.BroadcastState(sessionID, stateData(session))
	writeJSON(w, http.StatusOK, stateSnapshot(session))
}

// handleReset handles POST /api/v1/session/{id}/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	session.RequestStop()
	session.VM.Reset()

	s.broadcaster.BroadcastState(sessionID, stateData(session))
	writeJSON(w, http.StatusOK, stateSnapshot(session))
}

// handleGetState handles GET /api/v1/session/{id}/state: the register/
// workspace/IPtr/cycle snapshot.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, stateSnapshot(session))
}

// handleGetMemory handles GET /api/v1/session/{id}/memory?address=N&length=N
func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	address, err := parseUint32Query(r, "address", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid address")
		return
	}
	length, err := parseUint32Query(r, "length", 256)
	if err != nil || length == 0 || length > 65536 {
		writeError(w, http.StatusBadRequest, "Invalid length (1..65536)")
		return
	}

	data := make([]byte, 0, length)
	for i := uint32(0); i < length; i++ {
		b, err := session.VM.Memory.ReadByte(vm.Trunc24(address + i))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		data = append(data, b)
	}

	writeJSON(w, http.StatusOK, MemoryResponse{Address: address, Data: data, Length: length})
}

// handleGetConsoleOutput handles GET /api/v1/session/{id}/console: drains
// the buffered console output.
func (s *Server) handleGetConsoleOutput(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"output": session.Console.out.Drain(),
	})
}

// handleBreakpoint handles POST (add) and DELETE (remove) on
// /api/v1/session/{id}/breakpoint.
func (s *Server) handleBreakpoint(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req BreakpointRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch r.Method {
	case http.MethodPost:
		bp := session.Dbg.Breakpoints.AddBreakpoint(vm.Trunc24(req.Address), req.Temporary, req.Condition)
		writeJSON(w, http.StatusCreated, BreakpointInfo{ID: bp.ID, Address: bp.Address, Enabled: bp.Enabled})
	case http.MethodDelete:
		if err := session.Dbg.Breakpoints.DeleteBreakpointAt(vm.Trunc24(req.Address)); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleListBreakpoints handles GET /api/v1/session/{id}/breakpoints
func (s *Server) handleListBreakpoints(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	all := session.Dbg.Breakpoints.GetAllBreakpoints()
	infos := make([]BreakpointInfo, 0, len(all))
	for _, bp := range all {
		infos = append(infos, BreakpointInfo{ID: bp.ID, Address: bp.Address, Enabled: bp.Enabled})
	}

	writeJSON(w, http.StatusOK, BreakpointsResponse{Breakpoints: infos})
}

// handleSendStdin handles POST /api/v1/session/{id}/stdin: queues bytes for
// the console-read environment calls.
func (s *Server) handleSendStdin(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req StdinRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session.Console.feed(req.Data)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// stateSnapshot builds the StateResponse for a session.
func stateSnapshot(session *Session) StateResponse {
	cpu := session.VM.CPU
	return StateResponse{
		SessionID: session.ID,
		A:         cpu.A,
		B:         cpu.B,
		C:         cpu.C,
		Workspace: cpu.W,
		IPtr:      cpu.IPtr,
		Cycles:    cpu.Cycles,
		Halted:    cpu.Halted,
		MIE:       cpu.MIE,
		Mip:       cpu.Mip,
		Mie:       cpu.Mie,
		ExitCode:  session.VM.ExitCode,
	}
}

// stateData renders the snapshot into the loosely typed map the broadcaster
// carries over the wire.
func stateData(session *Session) map[string]interface{} {
	snap := stateSnapshot(session)
	return map[string]interface{}{
		"a":        snap.A,
		"b":        snap.B,
		"c":        snap.C,
		"ipt":      snap.IPtr,
		"cycles":   snap.Cycles,
		"halted":   snap.Halted,
		"exitCode": snap.ExitCode,
	}
}

func parseUint32Query(r *http.Request, key string, def uint32) (uint32, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
