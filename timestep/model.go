package timestep

import (
	"github.com/moznion/go-optional"
	"github.com/pkg/errors"
)

var (
	// ErrTimeStepNotCached is returned when a lookup refers to a time step
	// that has not been fetched yet.
	ErrTimeStepNotCached = errors.New("time step not cached")

	// ErrNonContiguousTimeStep is returned when a time step would leave a
	// gap in the cached sequence.
	ErrNonContiguousTimeStep = errors.New("time step is not contiguous")

	// ErrTimeStepConflict is returned when a position that is already known
	// is given a different record.
	ErrTimeStepConflict = errors.New("time step conflicts with a known one")

	// ErrExpectedTimeStepsShrunk is returned when the advertised list of
	// time steps gets shorter.
	ErrExpectedTimeStepsShrunk = errors.New("expected time steps shrunk")
)

// Config carries what the Model needs besides the initial steps.
type Config struct {
	// URL locates the runner service. The Model keeps it for the fetch
	// collaborator and never reads it.
	URL string

	ExpectedTimeSteps []ExpectedTimeStep
}

// A Model caches the time steps of one model run and keeps a cursor on the
// step being displayed.
//
// A Model is not safe for concurrent use.
type Model struct {
	url           string
	cachedSteps   []TimeStep
	expectedSteps []ExpectedTimeStep
	currentIndex  int
}

// NewModel creates a Model from the steps that are already known. The steps
// must be numbered contiguously from zero.
func NewModel(steps []TimeStep, cfg Config) (*Model, error) {
	m := &Model{
		url:           cfg.URL,
		cachedSteps:   make([]TimeStep, 0, len(steps)),
		expectedSteps: make([]ExpectedTimeStep, 0, len(cfg.ExpectedTimeSteps)),
	}

	for _, s := range steps {
		if err := m.AddTimeStep(s); err != nil {
			return nil, err
		}
	}

	if err := m.SetExpectedTimeSteps(cfg.ExpectedTimeSteps); err != nil {
		return nil, err
	}

	return m, nil
}

// URL returns the location of the runner service.
func (m *Model) URL() string {
	return m.url
}

// HasData returns true if the runner service has advertised any time step.
func (m *Model) HasData() bool {
	return len(m.expectedSteps) > 0
}

// HasCachedTimeStep returns true if the time step with the given id has been
// fetched.
func (m *Model) HasCachedTimeStep(id int) bool {
	return id >= 0 && id < len(m.cachedSteps)
}

// ServerHasTimeStep returns true if the runner service has declared that it
// will produce the time step with the given id.
func (m *Model) ServerHasTimeStep(id int) bool {
	return id >= 0 && id < len(m.expectedSteps)
}

// TimestampForExpectedStep returns the advertised timestamp of a time step,
// or None if the id is out of the advertised range.
func (m *Model) TimestampForExpectedStep(id int) optional.Option[string] {
	if !m.ServerHasTimeStep(id) {
		return optional.None[string]()
	}

	return optional.Some(m.expectedSteps[id].Timestamp)
}

// TimeStep returns the cached time step with the given id.
func (m *Model) TimeStep(id int) (TimeStep, error) {
	if !m.HasCachedTimeStep(id) {
		return TimeStep{}, errors.Wrapf(ErrTimeStepNotCached, "id %d", id)
	}

	return m.cachedSteps[id], nil
}

// CurrentTimeStep returns the cached time step under the cursor.
func (m *Model) CurrentTimeStep() (TimeStep, error) {
	return m.TimeStep(m.currentIndex)
}

// CurrentIndex returns the position of the cursor.
func (m *Model) CurrentIndex() int {
	return m.currentIndex
}

// SetCurrentTimeStep moves the cursor. The id is not checked here;
// CurrentTimeStep reports ids that are not cached.
func (m *Model) SetCurrentTimeStep(id int) {
	m.currentIndex = id
}

// NumCachedTimeSteps returns how many time steps have been fetched.
func (m *Model) NumCachedTimeSteps() int {
	return len(m.cachedSteps)
}

// NumExpectedTimeSteps returns how many time steps have been advertised.
func (m *Model) NumExpectedTimeSteps() int {
	return len(m.expectedSteps)
}

// State returns where the given position is in its lifecycle.
func (m *Model) State(id int) StepState {
	switch {
	case m.HasCachedTimeStep(id):
		return StepCached
	case m.ServerHasTimeStep(id):
		return StepExpected
	default:
		return StepUnknown
	}
}

// AddTimeStep caches a fetched time step. The step must directly follow the
// last cached one. Adding a step that is already cached is a no-op as long
// as the record is the same.
func (m *Model) AddTimeStep(step TimeStep) error {
	if m.HasCachedTimeStep(step.ID) {
		if m.cachedSteps[step.ID] != step {
			return errors.Wrapf(ErrTimeStepConflict, "id %d", step.ID)
		}

		return nil
	}

	if step.ID != len(m.cachedSteps) {
		return errors.Wrapf(ErrNonContiguousTimeStep,
			"got id %d, want %d", step.ID, len(m.cachedSteps))
	}

	m.cachedSteps = append(m.cachedSteps, step)

	return nil
}

// SetExpectedTimeSteps replaces the advertised time steps with a list that
// extends the current one. Steps are numbered by their position in the list.
// Known positions must keep their timestamps.
func (m *Model) SetExpectedTimeSteps(steps []ExpectedTimeStep) error {
	if len(steps) < len(m.expectedSteps) {
		return errors.Wrapf(ErrExpectedTimeStepsShrunk,
			"from %d to %d", len(m.expectedSteps), len(steps))
	}

	for i := range m.expectedSteps {
		if m.expectedSteps[i].Timestamp != steps[i].Timestamp {
			return errors.Wrapf(ErrTimeStepConflict,
				"expected step %d changed from %q to %q",
				i, m.expectedSteps[i].Timestamp, steps[i].Timestamp)
		}
	}

	for i := len(m.expectedSteps); i < len(steps); i++ {
		m.expectedSteps = append(m.expectedSteps, ExpectedTimeStep{
			ID:        i,
			Timestamp: steps[i].Timestamp,
		})
	}

	return nil
}
