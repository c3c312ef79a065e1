// Package fetch retrieves time steps from the runner service and feeds them
// into a timestep.Model.
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sarchlab/gnomeview/timestep"
)

var (
	// ErrRunFinished is returned when the runner service has no more steps.
	ErrRunFinished = errors.New("run finished")

	// ErrRunNotFound is returned when the runner service does not know the
	// run, for example because it has been deleted.
	ErrRunNotFound = errors.New("run not found")
)

// RunnerResponse is what the runner service returns for a step request.
type RunnerResponse struct {
	ExpectedTimeSteps []timestep.ExpectedTimeStep `json:"expected_time_steps,omitempty"`
	TimeStep          timestep.TimeStep           `json:"time_step"`
}

type createRunResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to the runner service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the address of the runner service.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateRun asks the service for a new model run and returns its id.
func (c *Client) CreateRun(ctx context.Context) (string, error) {
	rsp := createRunResponse{}

	err := c.do(ctx, http.MethodPost, "/model", &rsp)
	if err != nil {
		return "", errors.Wrap(err, "creating run")
	}

	return rsp.ID, nil
}

// StartRun starts a run and returns the first step with the list of
// expected steps.
func (c *Client) StartRun(ctx context.Context, runID string) (
	RunnerResponse, error,
) {
	rsp := RunnerResponse{}

	err := c.do(ctx, http.MethodPost, "/model/"+runID+"/runner", &rsp)
	if err != nil {
		return rsp, errors.Wrapf(err, "starting run %s", runID)
	}

	return rsp, nil
}

// NextStep requests the following step of a run. It returns ErrRunFinished
// once the run has produced all of its steps and ErrRunNotFound when the
// service does not know the run.
func (c *Client) NextStep(ctx context.Context, runID string) (
	RunnerResponse, error,
) {
	rsp := RunnerResponse{}

	err := c.do(ctx, http.MethodGet, "/model/"+runID+"/runner", &rsp)
	if err != nil {
		return rsp, errors.Wrapf(err, "fetching next step of run %s", runID)
	}

	return rsp, nil
}

type statusError struct {
	status  int
	message string
}

func (e statusError) Error() string {
	return http.StatusText(e.status) + ": " + e.message
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	rsp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return err
	}

	if rsp.StatusCode >= http.StatusBadRequest {
		e := errorResponse{}
		_ = json.Unmarshal(body, &e)

		err := statusError{status: rsp.StatusCode, message: e.Error}

		switch rsp.StatusCode {
		case http.StatusGone:
			return errors.Wrap(ErrRunFinished, err.Error())
		case http.StatusNotFound:
			return errors.Wrap(ErrRunNotFound, err.Error())
		}

		return err
	}

	return json.Unmarshal(body, out)
}
