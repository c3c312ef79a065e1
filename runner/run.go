// Package runner advances model runs one time step at a time.
package runner

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/sarchlab/gnomeview/timestep"
)

// ErrRunFinished is returned by Next when a run has produced all its steps.
var ErrRunFinished = errors.New("run finished")

// A StepSink receives every step that a run produces.
type StepSink interface {
	RecordStep(runID string, step timestep.TimeStep)
}

// A Run is one execution of a scenario.
type Run struct {
	lock sync.Mutex

	ID       string   `json:"id"`
	Scenario Scenario `json:"scenario"`
	Started  bool     `json:"started"`
	NextStep int      `json:"next_step"`

	sink StepSink
}

// NewRun creates a run with a fresh ID.
func NewRun(s Scenario, sink StepSink) *Run {
	return &Run{
		ID:       xid.New().String(),
		Scenario: s,
		sink:     sink,
	}
}

// A RunState is a copy of the state of a run at one point in time.
type RunState struct {
	ID       string   `json:"id"`
	Scenario Scenario `json:"scenario"`
	Started  bool     `json:"started"`
	NextStep int      `json:"next_step"`
}

// Snapshot copies the state of the run.
func (r *Run) Snapshot() RunState {
	r.lock.Lock()
	defer r.lock.Unlock()

	return RunState{
		ID:       r.ID,
		Scenario: r.Scenario,
		Started:  r.Started,
		NextStep: r.NextStep,
	}
}

// ExpectedTimeSteps returns the steps that the run will produce.
func (r *Run) ExpectedTimeSteps() []timestep.ExpectedTimeStep {
	r.lock.Lock()
	defer r.lock.Unlock()

	return timestep.ExpectedTimeStepsFromTimes(r.Scenario.Timestamps())
}

// NumTimeSteps returns the number of steps of the run.
func (r *Run) NumTimeSteps() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.Scenario.NumTimeSteps()
}

// SetScenario replaces the scenario of the run and rewinds it.
func (r *Run) SetScenario(s Scenario) error {
	if err := s.Validate(); err != nil {
		return err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.Scenario = s
	r.Started = false
	r.rewind()

	return nil
}

// Start rewinds the run and returns its first step.
func (r *Run) Start() (timestep.TimeStep, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.rewind()
	r.Started = true

	return r.next()
}

// Next returns the following step of the run. A run that has not been
// started starts from the first step.
func (r *Run) Next() (timestep.TimeStep, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.Started = true

	return r.next()
}

// Progress returns how many steps have been produced.
func (r *Run) Progress() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.NextStep
}

func (r *Run) rewind() {
	r.NextStep = 0
}

func (r *Run) next() (timestep.TimeStep, error) {
	if r.NextStep >= r.Scenario.NumTimeSteps() {
		return timestep.TimeStep{}, ErrRunFinished
	}

	id := r.NextStep
	t := r.Scenario.StartTime.Add(time.Duration(id) * r.Scenario.TimeStep)

	step := timestep.TimeStep{
		ID:        id,
		Timestamp: timestep.FormatTimestamp(t),
		URL:       StepURL(r.ID, id),
	}

	r.NextStep++

	if r.sink != nil {
		r.sink.RecordStep(r.ID, step)
	}

	log.Debug().
		Str("run", r.ID).
		Int("step", step.ID).
		Str("timestamp", step.Timestamp).
		Msg("step produced")

	return step, nil
}

// StepURL returns where a produced step can be retrieved from the runner
// service.
func StepURL(runID string, id int) string {
	return fmt.Sprintf("/model/%s/steps/%d", runID, id)
}
