package models

// Session statuses. A session starts running and moves to exactly one
// terminal status.
const (
	SessionRunning   = "running"
	SessionSuccess   = "success"
	SessionFailed    = "failed"
	SessionCancelled = "cancelled"
	SessionTimeout   = "timeout"
)

// Step and tool call statuses.
const (
	StepRunning = "running"
	StepSuccess = "success"
	StepError   = "error"
)

// Step types.
const (
	StepLLM         = "llm"
	StepTool        = "tool"
	StepMemoryRead  = "memory_read"
	StepMemoryWrite = "memory_write"
	StepRouting     = "routing"
	StepSystem      = "system"
)

// SessionStatuses lists every valid session status, running first.
var SessionStatuses = []string{SessionRunning, SessionSuccess, SessionFailed, SessionCancelled, SessionTimeout}

// StepTypes lists every valid step type.
var StepTypes = []string{StepLLM, StepTool, StepMemoryRead, StepMemoryWrite, StepRouting, StepSystem}

// ValidSessionStatus reports whether s is a known session status.
func ValidSessionStatus(s string) bool {
	for _, v := range SessionStatuses {
		if v == s {
			return true
		}
	}
	return false
}
