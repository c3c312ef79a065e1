package runner

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// A Scenario describes the time span that a model run covers.
type Scenario struct {
	StartTime time.Time     `yaml:"start_time"`
	TimeStep  time.Duration `yaml:"time_step"`
	Duration  time.Duration `yaml:"duration"`
}

// DefaultScenario returns a one-day run with 15-minute steps, starting at
// the beginning of the current hour.
func DefaultScenario() Scenario {
	return Scenario{
		StartTime: time.Now().UTC().Truncate(time.Hour),
		TimeStep:  15 * time.Minute,
		Duration:  24 * time.Hour,
	}
}

// LoadScenario reads a scenario from a YAML file. Fields that are missing
// from the file keep their default values.
func LoadScenario(path string) (Scenario, error) {
	s := DefaultScenario()

	data, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrapf(err, "reading scenario %s", path)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, errors.Wrapf(err, "parsing scenario %s", path)
	}

	if err := s.Validate(); err != nil {
		return s, errors.Wrapf(err, "scenario %s", path)
	}

	return s, nil
}

// Validate checks that the scenario produces at least one step.
func (s Scenario) Validate() error {
	if s.TimeStep <= 0 {
		return errors.Errorf("time step must be positive, got %s", s.TimeStep)
	}

	if s.Duration < 0 {
		return errors.Errorf("duration must not be negative, got %s", s.Duration)
	}

	return nil
}

// NumTimeSteps returns how many steps a run of the scenario produces,
// counting the step at the start time.
func (s Scenario) NumTimeSteps() int {
	if s.TimeStep <= 0 || s.Duration < 0 {
		return 0
	}

	return int(s.Duration/s.TimeStep) + 1
}

// Timestamps returns the model time of every step of the scenario.
func (s Scenario) Timestamps() []time.Time {
	n := s.NumTimeSteps()

	timestamps := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		timestamps = append(timestamps,
			s.StartTime.Add(time.Duration(i)*s.TimeStep))
	}

	return timestamps
}
