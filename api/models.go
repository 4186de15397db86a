package api

import "time"

// SessionCreateRequest requests a new VM session. R824 VMs have a fixed
// memory map (spec §6), so there are no size overrides to accept.
type SessionCreateRequest struct{}

// SessionCreateResponse is returned after creating a session.
type SessionCreateResponse struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoadProgramRequest carries assembly source text to assemble and load.
type LoadProgramRequest struct {
	Source string `json:"source"`
}

// LoadProgramResponse reports assembly success/failure and the resolved
// symbol table.
type LoadProgramResponse struct {
	Success bool              `json:"success"`
	Errors  []string          `json:"errors,omitempty"`
	Symbols map[string]uint32 `json:"symbols,omitempty"`
}

// StateResponse is the full register/workspace/IPtr/cycle snapshot exposed
// by GET /api/v1/session/{id}/state, per spec §4.13.
type StateResponse struct {
	SessionID string     `json:"sessionId"`
	A         int32      `json:"a"`
	B         int32      `json:"b"`
	C         int32      `json:"c"`
	Workspace [16]int32  `json:"workspace"`
	IPtr      uint32     `json:"ipt"`
	Cycles    uint64     `json:"cycles"`
	Halted    bool       `json:"halted"`
	MIE       bool       `json:"mie"`
	Mip       uint8      `json:"mip"`
	Mie       uint8      `json:"mie_mask"`
	ExitCode  int32      `json:"exitCode"`
}

// MemoryRequest describes a memory read.
type MemoryRequest struct {
	Address uint32 `json:"address"`
	Length  uint32 `json:"length"`
}

// MemoryResponse carries raw bytes read from the VM's address space.
type MemoryResponse struct {
	Address uint32 `json:"address"`
	Data    []byte `json:"data"`
	Length  uint32 `json:"length"`
}

// BreakpointRequest adds or removes a breakpoint by IPtr address.
type BreakpointRequest struct {
	Address   uint32 `json:"address"`
	Temporary bool   `json:"temporary,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// BreakpointInfo describes one registered breakpoint.
type BreakpointInfo struct {
	ID      int    `json:"id"`
	Address uint32 `json:"address"`
	Enabled bool   `json:"enabled"`
}

// BreakpointsResponse lists all breakpoints for a session.
type BreakpointsResponse struct {
	Breakpoints []BreakpointInfo `json:"breakpoints"`
}

// StdinRequest delivers bytes to the session's console input queue,
// consumed by ECALL_READ_CHAR/ECALL_READ_STRING.
type StdinRequest struct {
	Data string `json:"data"`
}

// ErrorResponse is the JSON body for any non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// SuccessResponse is the JSON body for a simple control-endpoint ack.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
