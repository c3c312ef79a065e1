package fetch

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sarchlab/gnomeview/timestep"
)

// ErrRunRewound is returned when the runner service started the run over.
// The steps of the new pass go into a new Model.
var ErrRunRewound = errors.New("run rewound")

// A Loader keeps a Model in sync with one run on the runner service.
type Loader struct {
	client *Client
	runID  string
	model  *timestep.Model
}

// NewLoader creates a loader for the given run.
func NewLoader(client *Client, runID string) *Loader {
	return &Loader{
		client: client,
		runID:  runID,
	}
}

// RunID returns the run that the loader follows.
func (l *Loader) RunID() string {
	return l.runID
}

// Model returns the model being loaded, or nil before Start.
func (l *Loader) Model() *timestep.Model {
	return l.model
}

// Start starts the run and builds a Model holding its first step.
func (l *Loader) Start(ctx context.Context) (*timestep.Model, error) {
	rsp, err := l.client.StartRun(ctx, l.runID)
	if err != nil {
		return nil, err
	}

	model, err := timestep.NewModel(
		[]timestep.TimeStep{rsp.TimeStep},
		timestep.Config{
			URL:               l.client.BaseURL() + "/model/" + l.runID,
			ExpectedTimeSteps: rsp.ExpectedTimeSteps,
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "building model")
	}

	l.model = model

	log.Info().
		Str("run", l.runID).
		Int("expected", model.NumExpectedTimeSteps()).
		Msg("run started")

	return model, nil
}

// FetchNext retrieves the next step of the run and caches it.
func (l *Loader) FetchNext(ctx context.Context) error {
	if l.model == nil {
		return errors.New("loader not started")
	}

	rsp, err := l.client.NextStep(ctx, l.runID)
	if err != nil {
		return err
	}

	if rsp.TimeStep.ID == 0 && l.model.HasCachedTimeStep(0) {
		return ErrRunRewound
	}

	if len(rsp.ExpectedTimeSteps) > 0 {
		err := l.model.SetExpectedTimeSteps(rsp.ExpectedTimeSteps)
		if err != nil {
			return errors.Wrap(err, "updating expected time steps")
		}
	}

	if err := l.model.AddTimeStep(rsp.TimeStep); err != nil {
		return errors.Wrap(err, "caching time step")
	}

	log.Debug().
		Str("run", l.runID).
		Int("step", rsp.TimeStep.ID).
		Msg("time step cached")

	return nil
}
