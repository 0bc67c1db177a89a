// internal/app/system/submission/orchestrator.go
package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/system/payload"
	"github.com/dalemusser/rasterhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// State is the orchestrator's position in the two-phase sequence.
type State uint8

const (
	StateIdle State = iota
	StateUploading
	StateCreating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateCreating:
		return "creating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "state(" + fmt.Sprint(uint8(s)) + ")"
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// InFlight reports whether a network phase is running.
func (s State) InFlight() bool { return s == StateUploading || s == StateCreating }

// ErrIllegalTransition indicates a bug in the sequencing code.
var ErrIllegalTransition = errors.New("illegal submission state transition")

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateIdle, StateDone, StateFailed:
		return to == StateUploading
	case StateUploading:
		return to == StateCreating || to == StateFailed
	case StateCreating:
		return to == StateDone || to == StateFailed
	default:
		return false
	}
}

// Backend is the pair of network calls a submission makes.
type Backend interface {
	UploadTIFFs(ctx context.Context, b payload.Bundle) error
	CreateProject(ctx context.Context, r payload.CreateRequest) (*CreateResponse, error)
}

// Attempt is the record of one finished submission, successful or not.
type Attempt struct {
	Label       string
	ProjectName string
	Files       int
	State       State
	FailedPhase Phase
	Detail      string
	Rasters     []RasterResult
	ImageErrors []ImageError
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Recorder persists attempts. Recording failures are logged, never returned.
type Recorder interface {
	Record(ctx context.Context, a Attempt) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder stores every finished attempt.
func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithLabel tags recorded attempts (usually the draft id).
func WithLabel(label string) Option { return func(o *Orchestrator) { o.label = label } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// Orchestrator sequences upload then create for one editing session and
// refuses a second attempt while one is outstanding. Safe for concurrent use.
type Orchestrator struct {
	backend  Backend
	log      *zap.Logger
	recorder Recorder
	label    string
	now      func() time.Time

	mu       sync.Mutex
	state    State
	reserved bool
	failed   Phase
	outcome  *Outcome
	lastErr  error
}

// New returns an idle orchestrator.
func New(b Backend, log *zap.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{backend: b, log: log, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State       State    `json:"state"`
	FailedPhase Phase    `json:"failedPhase,omitempty"`
	Outcome     *Outcome `json:"outcome,omitempty"`
	Error       string   `json:"error,omitempty"`
	Report      string   `json:"report,omitempty"`
	Raw         string   `json:"raw,omitempty"`
	Preview     string   `json:"preview,omitempty"`
}

// Status returns the current state and the result of the last attempt.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{State: o.state, FailedPhase: o.failed, Outcome: o.outcome}
	switch {
	case o.outcome != nil:
		st.Report = o.outcome.Report()
	case o.lastErr != nil:
		st.Error = o.lastErr.Error()
		var pe *PhaseError
		if errors.As(o.lastErr, &pe) {
			st.Report = pe.Report()
			st.Raw = pe.RawBody
			st.Preview = pe.Preview()
		}
	}
	return st
}

// Submit uploads res.Bundle and, only if that succeeds, posts res.Request.
// Either phase failing ends the attempt with a *PhaseError. Cancellation of
// ctx is ignored once the attempt has started.
func (o *Orchestrator) Submit(ctx context.Context, res *payload.Result) (*Outcome, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	return o.Run(ctx, res)
}

// Begin reserves the orchestrator for one attempt, which Run then performs.
// It fails with ErrSubmissionInFlight while another attempt is outstanding,
// so callers can make the reservation atomic with taking their snapshot.
func (o *Orchestrator) Begin() error { return o.begin() }

// Run performs the attempt reserved by Begin. See Submit.
func (o *Orchestrator) Run(ctx context.Context, res *payload.Result) (*Outcome, error) {
	o.mu.Lock()
	reserved := o.reserved
	o.reserved = false
	o.mu.Unlock()
	if !reserved {
		return nil, fmt.Errorf("%w: run without begin", ErrIllegalTransition)
	}

	ctx = context.WithoutCancel(ctx)
	started := o.now()
	log := o.log.With(zap.String("project", res.Request.ProjectName), zap.String("label", o.label))

	upCtx, cancel := timeouts.WithTimeout(ctx, timeouts.Upload(), log, "upload tiffs")
	err := o.backend.UploadTIFFs(upCtx, res.Bundle)
	cancel()
	if err != nil {
		return nil, o.fail(ctx, log, PhaseUpload, err, res, started)
	}
	log.Info("tiffs uploaded", zap.Int("files", len(res.Bundle.Files)))

	o.mu.Lock()
	err = o.transition(StateCreating)
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}

	crCtx, cancel := timeouts.WithTimeout(ctx, timeouts.Create(), log, "create project")
	resp, err := o.backend.CreateProject(crCtx, res.Request)
	cancel()
	if err != nil {
		return nil, o.fail(ctx, log, PhaseCreate, err, res, started)
	}

	out := &Outcome{
		ProjectName: res.Request.ProjectName,
		Rasters:     resp.Rasters,
		StartedAt:   started,
		FinishedAt:  o.now(),
	}
	o.mu.Lock()
	err = o.transition(StateDone)
	o.outcome, o.lastErr, o.failed = out, nil, ""
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if out.Partial() {
		log.Warn("project created with raster failures", zap.Int("failed", len(out.Failed())))
	} else {
		log.Info("project created", zap.Int("rasters", len(out.Rasters)))
	}
	o.record(ctx, log, Attempt{
		Label:       o.label,
		ProjectName: out.ProjectName,
		Files:       len(res.Bundle.Files),
		State:       StateDone,
		Rasters:     out.Rasters,
		StartedAt:   out.StartedAt,
		FinishedAt:  out.FinishedAt,
	})
	return out, nil
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.InFlight() {
		return ErrSubmissionInFlight
	}
	if err := o.transition(StateUploading); err != nil {
		return err
	}
	o.outcome, o.lastErr, o.failed = nil, nil, ""
	o.reserved = true
	return nil
}

// transition must be called with mu held.
func (o *Orchestrator) transition(to State) error {
	if !isAllowedTransition(o.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.state, to)
	}
	o.state = to
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, phase Phase, err error, res *payload.Result, started time.Time) error {
	var pe *PhaseError
	if !errors.As(err, &pe) {
		pe = &PhaseError{Phase: phase, Kind: ErrTransport, Err: err}
	}

	o.mu.Lock()
	if terr := o.transition(StateFailed); terr != nil {
		o.mu.Unlock()
		return terr
	}
	o.failed, o.lastErr, o.outcome = phase, pe, nil
	o.mu.Unlock()

	log.Warn("submission failed", zap.String("phase", string(phase)), zap.Error(pe))
	o.record(ctx, log, Attempt{
		Label:       o.label,
		ProjectName: res.Request.ProjectName,
		Files:       len(res.Bundle.Files),
		State:       StateFailed,
		FailedPhase: phase,
		Detail:      pe.Report(),
		ImageErrors: pe.ImageErrors,
		StartedAt:   started,
		FinishedAt:  o.now(),
	})
	return pe
}

func (o *Orchestrator) record(ctx context.Context, log *zap.Logger, a Attempt) {
	if o.recorder == nil {
		return
	}
	rctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), log, "record submission")
	defer cancel()
	if err := o.recorder.Record(rctx, a); err != nil {
		log.Error("record submission", zap.Error(err))
	}
}
