// Package playback moves the cursor of a timestep.Model over a model run,
// fetching steps when the cursor reaches the end of the cache.
package playback

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/sarchlab/gnomeview/timestep"
)

// ErrEndOfRun is returned when the cursor is on the last advertised step.
var ErrEndOfRun = errors.New("end of run")

// A Fetcher retrieves the next step of a run into the model.
type Fetcher interface {
	FetchNext(ctx context.Context) error
}

// A Player steps through a model run.
type Player struct {
	model   *timestep.Model
	fetcher Fetcher
}

// NewPlayer creates a player over the given model.
func NewPlayer(model *timestep.Model, fetcher Fetcher) *Player {
	return &Player{
		model:   model,
		fetcher: fetcher,
	}
}

// Current returns the step under the cursor.
func (p *Player) Current() (timestep.TimeStep, error) {
	return p.model.CurrentTimeStep()
}

// Seek moves the cursor to a cached step.
func (p *Player) Seek(id int) error {
	if !p.model.HasCachedTimeStep(id) {
		return errors.Wrapf(timestep.ErrTimeStepNotCached, "seek to %d", id)
	}

	p.model.SetCurrentTimeStep(id)

	return nil
}

// Step advances the cursor by one step and returns the new current step.
// Steps that the runner service advertises but that are not cached yet are
// fetched first.
func (p *Player) Step(ctx context.Context) (timestep.TimeStep, error) {
	next := p.model.CurrentIndex() + 1

	if !p.model.HasCachedTimeStep(next) {
		if !p.model.ServerHasTimeStep(next) {
			return timestep.TimeStep{}, ErrEndOfRun
		}

		if err := p.fetcher.FetchNext(ctx); err != nil {
			return timestep.TimeStep{}, errors.Wrapf(err,
				"fetching step %d", next)
		}

		if !p.model.HasCachedTimeStep(next) {
			return timestep.TimeStep{}, errors.Wrapf(
				timestep.ErrTimeStepNotCached, "step %d after fetch", next)
		}
	}

	p.model.SetCurrentTimeStep(next)

	return p.model.CurrentTimeStep()
}

// Run shows the current step and then one more step every interval, until
// the end of the run or until ctx is done.
func (p *Player) Run(
	ctx context.Context,
	interval time.Duration,
	show func(timestep.TimeStep) error,
) error {
	step, err := p.Current()
	if err != nil {
		return err
	}

	if err := show(step); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		step, err := p.Step(ctx)
		if errors.Is(err, ErrEndOfRun) {
			log.Info().Int("steps", p.model.NumCachedTimeSteps()).
				Msg("playback finished")
			return nil
		}

		if err != nil {
			return err
		}

		if err := show(step); err != nil {
			return err
		}
	}
}
