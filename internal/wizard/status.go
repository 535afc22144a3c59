package wizard

import (
	"strings"
	"sync"
)

// StepStatus is the tag of a StepStatusInfo.
type StepStatus int

const (
	StatusIdle StepStatus = iota
	StatusRunning
	StatusSuccess
	StatusWarning
	StatusError
)

func (s StepStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// ErrorPayload describes a step-level failure. A plain string error has no
// Title and a single Message line.
type ErrorPayload struct {
	Title   string   `json:"title,omitempty"`
	Message []string `json:"message,omitempty"`
}

// PlainError wraps a bare message.
func PlainError(msg string) ErrorPayload {
	return ErrorPayload{Message: []string{msg}}
}

// Text flattens the payload for single-line display.
func (p ErrorPayload) Text() string {
	body := strings.Join(p.Message, "\n")
	switch {
	case p.Title == "":
		return body
	case body == "":
		return p.Title
	default:
		return p.Title + ": " + body
	}
}

// StepStatusInfo is the outcome of the active step's operation. The zero value
// is idle. Values are immutable; build them with the constructors below.
type StepStatusInfo struct {
	status StepStatus
	err    ErrorPayload
	notes  []string
}

func Idle() StepStatusInfo      { return StepStatusInfo{status: StatusIdle} }
func Running() StepStatusInfo   { return StepStatusInfo{status: StatusRunning} }
func Succeeded() StepStatusInfo { return StepStatusInfo{status: StatusSuccess} }

// Warned is a success that carries advisory notes (a job that finished with
// warnings, for example).
func Warned(notes ...string) StepStatusInfo {
	return StepStatusInfo{status: StatusWarning, notes: append([]string(nil), notes...)}
}

// Failed is an error status carrying its payload.
func Failed(payload ErrorPayload) StepStatusInfo {
	payload.Message = append([]string(nil), payload.Message...)
	return StepStatusInfo{status: StatusError, err: payload}
}

func (i StepStatusInfo) Status() StepStatus { return i.status }

// Error returns the payload when the status is an error.
func (i StepStatusInfo) Error() (ErrorPayload, bool) {
	if i.status != StatusError {
		return ErrorPayload{}, false
	}
	return i.err, true
}

// Notes returns the warning notes, if any.
func (i StepStatusInfo) Notes() []string {
	return append([]string(nil), i.notes...)
}

// StatusModel holds the single StepStatusInfo of a wizard run. SetStatus
// replaces the whole value; readers never observe a partial update.
type StatusModel struct {
	mu        sync.RWMutex
	info      StepStatusInfo
	listeners []func(StepStatusInfo)
}

// NewStatusModel returns a model in the idle state.
func NewStatusModel() *StatusModel {
	return &StatusModel{}
}

// SetStatus replaces the current status and notifies listeners outside the lock.
func (m *StatusModel) SetStatus(info StepStatusInfo) {
	m.mu.Lock()
	m.info = info
	listeners := append([]func(StepStatusInfo){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(info)
	}
}

// Reset returns the model to idle.
func (m *StatusModel) Reset() {
	m.SetStatus(Idle())
}

// Status returns the current value.
func (m *StatusModel) Status() StepStatusInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info
}

// OnChange registers fn to run after every SetStatus.
func (m *StatusModel) OnChange(fn func(StepStatusInfo)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *StatusModel) IsIdle() bool     { return m.Status().status == StatusIdle }
func (m *StatusModel) IsRunning() bool  { return m.Status().status == StatusRunning }
func (m *StatusModel) IsSuccess() bool  { return m.Status().status == StatusSuccess }
func (m *StatusModel) HasWarning() bool { return m.Status().status == StatusWarning }
func (m *StatusModel) HasError() bool   { return m.Status().status == StatusError }
