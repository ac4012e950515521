//go:generate mockgen -source=dispatcher.go -destination=mocks/mocks.go -package=mocks Remote,Pointer

package attention

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/pkg/errors"
	"github.com/jwalitptl/ed-intake/pkg/logger"
	"github.com/jwalitptl/ed-intake/pkg/metrics"
)

var (
	ErrOperationInFlight = stderrors.New("another dispatch or finalize request is still in flight")
	ErrEncounterActive   = stderrors.New("finish the current patient before attending the next one")
	ErrNoActiveAdmission = stderrors.New("no patient is currently being attended")
	ErrStaleResponse     = stderrors.New("response arrived after the session was reset and was discarded")
)

// Remote is the dispatch side of the remote service.
type Remote interface {
	// ClaimNext atomically moves the highest-priority pending admission to
	// in progress. It returns nil when the queue is empty.
	ClaimNext(ctx context.Context) (*model.Admission, error)
	Admission(ctx context.Context, id string) (*model.Admission, error)
	CreateAttention(ctx context.Context, req model.AttentionRequest) (*model.AttentionRecord, error)
}

// Pointer is the durable record of which admission this operator holds.
type Pointer interface {
	ActiveAdmission(ctx context.Context) (string, bool, error)
	SetActiveAdmission(ctx context.Context, id string) error
	ClearActiveAdmission(ctx context.Context) error
}

type State int

const (
	StateIdle State = iota
	StateDispatching
	StateAttending
)

func (s State) String() string {
	switch s {
	case StateDispatching:
		return "dispatching"
	case StateAttending:
		return "attending"
	default:
		return "idle"
	}
}

// Dispatcher runs one physician's attend-next-patient cycle:
// Idle, Dispatching, Attending, back to Idle once the report is filed.
type Dispatcher struct {
	remote  Remote
	pointer Pointer
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	state    State
	current  *model.Admission
	draft    string
	inFlight bool
	epoch    uint64
}

func NewDispatcher(remote Remote, pointer Pointer, log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Dispatcher{remote: remote, pointer: pointer, logger: log, metrics: m}
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Current returns the admission being attended, or nil.
func (d *Dispatcher) Current() *model.Admission {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return nil
	}
	cp := *d.current
	return &cp
}

// Draft returns the last report text passed to Finalize that was not filed.
func (d *Dispatcher) Draft() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draft
}

// begin reserves the dispatcher for one remote operation.
func (d *Dispatcher) begin() uint64 {
	d.inFlight = true
	return d.epoch
}

// finish releases the reservation and reports whether epoch is still current.
func (d *Dispatcher) finish(epoch uint64) bool {
	if d.epoch != epoch {
		return false
	}
	d.inFlight = false
	return true
}

// DispatchNext claims the next patient. An empty queue is not an error: it
// returns false and the dispatcher stays idle.
func (d *Dispatcher) DispatchNext(ctx context.Context) (*model.Admission, bool, error) {
	d.mu.Lock()
	switch {
	case d.inFlight:
		d.mu.Unlock()
		return nil, false, ErrOperationInFlight
	case d.state == StateAttending:
		d.mu.Unlock()
		return nil, false, ErrEncounterActive
	}
	d.state = StateDispatching
	epoch := d.begin()
	d.mu.Unlock()

	adm, err := d.remote.ClaimNext(ctx)

	d.mu.Lock()
	if d.epoch != epoch {
		d.mu.Unlock()
		d.metrics.Dispatches.WithLabelValues("stale").Inc()
		if adm != nil {
			// The server already holds the claim. Record it so the next
			// RecoverSession resumes it.
			d.logger.Warn("claim arrived after reset, keeping it for recovery", "admission_id", adm.ID)
			if perr := d.pointer.SetActiveAdmission(ctx, adm.ID); perr != nil {
				d.logger.Error(perr, "late claim could not be recorded for recovery", "admission_id", adm.ID)
			}
		}
		return nil, false, discarded(err)
	}
	if err != nil || adm == nil {
		d.state = StateIdle
		d.finish(epoch)
		d.mu.Unlock()
		if err != nil {
			d.metrics.Dispatches.WithLabelValues("error").Inc()
			return nil, false, err
		}
		d.metrics.Dispatches.WithLabelValues("empty").Inc()
		return nil, false, nil
	}
	d.mu.Unlock()

	// The pointer must be durable before the encounter is visible in memory.
	persistErr := d.pointer.SetActiveAdmission(ctx, adm.ID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.finish(epoch) {
		d.metrics.Dispatches.WithLabelValues("stale").Inc()
		return nil, false, ErrStaleResponse
	}
	d.state = StateAttending
	d.current = adm
	d.draft = ""
	d.metrics.Dispatches.WithLabelValues("claimed").Inc()
	d.logger.Info("patient claimed",
		"admission_id", adm.ID,
		"cuil", adm.PatientCode,
		"priority", string(adm.Priority),
	)

	cp := *adm
	if persistErr != nil {
		d.logger.Error(persistErr, "claimed admission could not be recorded for recovery", "admission_id", adm.ID)
		return &cp, true, persistErr
	}
	return &cp, true, nil
}

// RecoverSession resumes an encounter recorded by an earlier process. A
// pointer to an admission that is no longer in progress, or no longer
// exists, is discarded.
func (d *Dispatcher) RecoverSession(ctx context.Context) (*model.Admission, bool, error) {
	d.mu.Lock()
	if d.inFlight {
		d.mu.Unlock()
		return nil, false, ErrOperationInFlight
	}
	if d.state == StateAttending {
		cp := *d.current
		d.mu.Unlock()
		return &cp, true, nil
	}
	epoch := d.begin()
	d.mu.Unlock()

	release := func() {
		d.mu.Lock()
		d.finish(epoch)
		d.mu.Unlock()
	}

	id, ok, err := d.pointer.ActiveAdmission(ctx)
	if err != nil || !ok {
		release()
		return nil, false, err
	}

	adm, err := d.remote.Admission(ctx, id)
	if err != nil && !errors.IsNotFound(err) {
		release()
		return nil, false, err
	}

	if adm == nil || adm.Status != model.StatusInProgress {
		d.logger.Info("discarding stale active admission pointer", "admission_id", id)
		clearErr := d.pointer.ClearActiveAdmission(ctx)
		release()
		return nil, false, clearErr
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.finish(epoch) {
		return nil, false, ErrStaleResponse
	}
	d.state = StateAttending
	d.current = adm
	d.draft = ""
	d.logger.Info("resumed encounter", "admission_id", adm.ID)

	cp := *adm
	return &cp, true, nil
}

// Finalize files the clinical report for the current admission. Only a
// successful filing ends the encounter; on failure the report is kept as
// the draft and the encounter stays active.
func (d *Dispatcher) Finalize(ctx context.Context, report string) (*model.AttentionRecord, error) {
	if strings.TrimSpace(report) == "" {
		return nil, errors.Field("report", "is required")
	}

	d.mu.Lock()
	switch {
	case d.inFlight:
		d.mu.Unlock()
		return nil, ErrOperationInFlight
	case d.state != StateAttending || d.current == nil:
		d.mu.Unlock()
		return nil, ErrNoActiveAdmission
	}
	d.draft = report
	id := d.current.ID
	epoch := d.begin()
	d.mu.Unlock()

	rec, err := d.remote.CreateAttention(ctx, model.AttentionRequest{AdmissionID: id, Report: report})

	d.mu.Lock()
	if !d.finish(epoch) {
		d.mu.Unlock()
		d.metrics.Finalizations.WithLabelValues("stale").Inc()
		if err == nil {
			if clearErr := d.pointer.ClearActiveAdmission(ctx); clearErr != nil {
				d.logger.Error(clearErr, "failed to clear active admission pointer", "admission_id", id)
			}
		}
		return nil, discarded(err)
	}
	if err != nil {
		d.mu.Unlock()
		d.metrics.Finalizations.WithLabelValues("error").Inc()
		return nil, err
	}
	d.state = StateIdle
	d.current = nil
	d.draft = ""
	d.mu.Unlock()

	d.metrics.Finalizations.WithLabelValues("filed").Inc()
	d.logger.Info("encounter finalized", "admission_id", id)

	if clearErr := d.pointer.ClearActiveAdmission(ctx); clearErr != nil {
		d.logger.Error(clearErr, "failed to clear active admission pointer", "admission_id", id)
	}
	return rec, nil
}

// discarded reports a response that arrived after Reset. A remote failure
// stays in the chain, so an expired session is still reported as such.
func discarded(err error) error {
	if err == nil {
		return ErrStaleResponse
	}
	return fmt.Errorf("%w: %w", ErrStaleResponse, err)
}

// Reset abandons local state, e.g. on logout. Responses to requests already
// in flight are discarded when they arrive. The persisted pointer is kept so
// the encounter can be recovered.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.epoch++
	d.state = StateIdle
	d.current = nil
	d.draft = ""
	d.inFlight = false
}
