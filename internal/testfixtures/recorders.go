package testfixtures

import (
	"context"
	"sync"

	"github.com/mark3labs/reposync/internal/session"
	"github.com/mark3labs/reposync/internal/telemetry"
	"github.com/mark3labs/reposync/internal/wizard"
)

// RecordingForm is a Form over fixed data. Fields listed in Invalid fail
// Trigger; every SetError is recorded.
type RecordingForm struct {
	mu sync.Mutex

	Data    wizard.FormData
	Invalid map[wizard.FieldPath]string

	errors   map[wizard.FieldPath]string
	setCalls []wizard.FieldPath
	triggers [][]wizard.FieldPath
	clears   int
}

// NewRecordingForm returns a form where every field is valid.
func NewRecordingForm(data wizard.FormData) *RecordingForm {
	return &RecordingForm{
		Data:    data,
		Invalid: make(map[wizard.FieldPath]string),
		errors:  make(map[wizard.FieldPath]string),
	}
}

func (f *RecordingForm) Values() wizard.FormData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Data
}

func (f *RecordingForm) Trigger(fields []wizard.FieldPath) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.triggers = append(f.triggers, append([]wizard.FieldPath(nil), fields...))
	ok := true
	for _, field := range fields {
		if msg, bad := f.Invalid[field]; bad {
			f.errors[field] = msg
			ok = false
		}
	}
	return ok
}

func (f *RecordingForm) SetError(field wizard.FieldPath, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls = append(f.setCalls, field)
	f.errors[field] = message
}

func (f *RecordingForm) ClearErrors() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	f.errors = make(map[wizard.FieldPath]string)
}

// Update mutates the data under the lock.
func (f *RecordingForm) Update(fn func(d *wizard.FormData)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.Data)
}

// SetErrorCalls returns the fields passed to SetError, in order.
func (f *RecordingForm) SetErrorCalls() []wizard.FieldPath {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wizard.FieldPath(nil), f.setCalls...)
}

// Errors returns the current inline errors.
func (f *RecordingForm) Errors() map[wizard.FieldPath]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[wizard.FieldPath]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// TriggerCalls returns the field lists passed to Trigger.
func (f *RecordingForm) TriggerCalls() [][]wizard.FieldPath {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]wizard.FieldPath(nil), f.triggers...)
}

// RecordingTelemetry keeps every reported event.
type RecordingTelemetry struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (r *RecordingTelemetry) Report(_ context.Context, e telemetry.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns the reported events.
func (r *RecordingTelemetry) Events() []telemetry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telemetry.Event(nil), r.events...)
}

// Names returns the reported event names in order.
func (r *RecordingTelemetry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.Name)
	}
	return names
}

// RecordingNavigator records exits and closes Done on the first one.
type RecordingNavigator struct {
	mu      sync.Mutex
	results []wizard.Result
	once    sync.Once
	done    chan struct{}
}

// NewRecordingNavigator returns a navigator with an open Done channel.
func NewRecordingNavigator() *RecordingNavigator {
	return &RecordingNavigator{done: make(chan struct{})}
}

func (n *RecordingNavigator) Exit(r wizard.Result) {
	n.mu.Lock()
	n.results = append(n.results, r)
	n.mu.Unlock()
	n.once.Do(func() { close(n.done) })
}

// Done is closed on the first Exit.
func (n *RecordingNavigator) Done() <-chan struct{} { return n.done }

// Results returns every exit.
func (n *RecordingNavigator) Results() []wizard.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]wizard.Result(nil), n.results...)
}

// RecordingJournal keeps every transition.
type RecordingJournal struct {
	mu          sync.Mutex
	transitions []session.Transition
	gate        chan struct{}
	Err         error
}

func (j *RecordingJournal) Record(_ context.Context, t session.Transition) error {
	j.mu.Lock()
	gate := j.gate
	j.mu.Unlock()
	if gate != nil {
		<-gate
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.transitions = append(j.transitions, t)
	return j.Err
}

// Hold blocks every Record until the returned release is called.
func (j *RecordingJournal) Hold() (release func()) {
	gate := make(chan struct{})
	j.mu.Lock()
	j.gate = gate
	j.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			j.mu.Lock()
			j.gate = nil
			j.mu.Unlock()
			close(gate)
		})
	}
}

// Transitions returns the recorded transitions.
func (j *RecordingJournal) Transitions() []session.Transition {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]session.Transition(nil), j.transitions...)
}

// Actions returns the recorded actions in order.
func (j *RecordingJournal) Actions() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, 0, len(j.transitions))
	for _, t := range j.transitions {
		out = append(out, t.Action)
	}
	return out
}

// ClearCalls returns how many times ClearErrors ran.
func (f *RecordingForm) ClearCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}
