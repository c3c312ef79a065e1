// Package timestep tracks the time steps of a model run that a viewer has
// fetched from the runner service, together with the steps the service has
// advertised it will produce.
package timestep

import (
	"net/http"
	"time"
)

// A TimeStep is one discrete frame of model output.
type TimeStep struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url,omitempty"`
}

// An ExpectedTimeStep is a time step that the runner service has declared it
// can produce, whether or not it has been fetched yet.
type ExpectedTimeStep struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
}

// StepState is the state of one ordinal position, as seen by a consumer of
// the Model.
type StepState int

// Positions only move forward: unknown, expected, cached.
const (
	StepUnknown StepState = iota
	StepExpected
	StepCached
)

func (s StepState) String() string {
	switch s {
	case StepUnknown:
		return "unknown"
	case StepExpected:
		return "expected"
	case StepCached:
		return "cached"
	default:
		return "invalid"
	}
}

// FormatTimestamp renders t the way the runner service reports timestamps,
// for example "Fri, 07 Dec 2012 12:00:00 GMT".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// ParseTimestamp parses a timestamp produced by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(http.TimeFormat, s)
}

// ExpectedTimeStepsFromTimes converts a list of times into expected time
// steps, numbered from zero.
func ExpectedTimeStepsFromTimes(times []time.Time) []ExpectedTimeStep {
	steps := make([]ExpectedTimeStep, 0, len(times))
	for i, t := range times {
		steps = append(steps, ExpectedTimeStep{
			ID:        i,
			Timestamp: FormatTimestamp(t),
		})
	}

	return steps
}
