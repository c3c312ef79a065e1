package runner

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gnomeview/timestep"
)

type recordedStep struct {
	runID string
	step  timestep.TimeStep
}

type sliceSink struct {
	steps []recordedStep
}

func (s *sliceSink) RecordStep(runID string, step timestep.TimeStep) {
	s.steps = append(s.steps, recordedStep{runID: runID, step: step})
}

func testScenario() Scenario {
	return Scenario{
		StartTime: time.Date(2012, time.December, 7, 12, 0, 0, 0, time.UTC),
		TimeStep:  15 * time.Minute,
		Duration:  time.Hour,
	}
}

var _ = Describe("Scenario", func() {
	It("should count the first step", func() {
		Expect(testScenario().NumTimeSteps()).To(Equal(5))
	})

	It("should list timestamps", func() {
		ts := testScenario().Timestamps()

		Expect(ts).To(HaveLen(5))
		Expect(timestep.FormatTimestamp(ts[1])).
			To(Equal("Fri, 07 Dec 2012 12:15:00 GMT"))
		Expect(timestep.FormatTimestamp(ts[4])).
			To(Equal("Fri, 07 Dec 2012 13:00:00 GMT"))
	})

	It("should reject a zero time step", func() {
		s := testScenario()
		s.TimeStep = 0

		Expect(s.Validate()).To(HaveOccurred())
		Expect(s.NumTimeSteps()).To(Equal(0))
		Expect(s.Timestamps()).To(BeEmpty())
	})

	It("should load from yaml", func() {
		path := filepath.Join(GinkgoT().TempDir(), "scenario.yaml")
		content := "start_time: 2012-12-07T12:00:00Z\n" +
			"time_step: 30m\n" +
			"duration: 2h\n"
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

		s, err := LoadScenario(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(s.TimeStep).To(Equal(30 * time.Minute))
		Expect(s.Duration).To(Equal(2 * time.Hour))
		Expect(s.NumTimeSteps()).To(Equal(5))
		Expect(s.StartTime.Equal(testScenario().StartTime)).To(BeTrue())
	})

	It("should fail on a missing file", func() {
		_, err := LoadScenario(filepath.Join(GinkgoT().TempDir(), "none.yaml"))

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Run", func() {
	var (
		sink *sliceSink
		run  *Run
	)

	BeforeEach(func() {
		sink = &sliceSink{}
		run = NewRun(testScenario(), sink)
	})

	It("should have an id", func() {
		Expect(run.ID).NotTo(BeEmpty())
		Expect(NewRun(testScenario(), nil).ID).NotTo(Equal(run.ID))
	})

	It("should advertise every step", func() {
		expected := run.ExpectedTimeSteps()

		Expect(expected).To(HaveLen(5))
		Expect(expected[0]).To(Equal(timestep.ExpectedTimeStep{
			ID:        0,
			Timestamp: "Fri, 07 Dec 2012 12:00:00 GMT",
		}))
	})

	It("should start with the first step", func() {
		step, err := run.Start()

		Expect(err).NotTo(HaveOccurred())
		Expect(step.ID).To(Equal(0))
		Expect(step.Timestamp).To(Equal("Fri, 07 Dec 2012 12:00:00 GMT"))
		Expect(step.URL).To(Equal(StepURL(run.ID, 0)))
	})

	It("should produce steps in order until finished", func() {
		_, err := run.Start()
		Expect(err).NotTo(HaveOccurred())

		for i := 1; i < 5; i++ {
			step, err := run.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(step.ID).To(Equal(i))
		}

		_, err = run.Next()
		Expect(err).To(MatchError(ErrRunFinished))
		Expect(run.Progress()).To(Equal(5))
	})

	It("should restart when started again", func() {
		_, _ = run.Start()
		_, _ = run.Next()

		step, err := run.Start()

		Expect(err).NotTo(HaveOccurred())
		Expect(step.ID).To(Equal(0))
		Expect(run.Progress()).To(Equal(1))
	})

	It("should take a new scenario and rewind", func() {
		_, _ = run.Start()
		_, _ = run.Next()

		s := testScenario()
		s.TimeStep = 30 * time.Minute
		Expect(run.SetScenario(s)).To(Succeed())

		state := run.Snapshot()
		Expect(state.Started).To(BeFalse())
		Expect(state.NextStep).To(Equal(0))
		Expect(state.Scenario.TimeStep).To(Equal(30 * time.Minute))
		Expect(run.NumTimeSteps()).To(Equal(3))

		_, _ = run.Next()
		step, err := run.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(step.Timestamp).To(Equal("Fri, 07 Dec 2012 12:30:00 GMT"))
	})

	It("should keep its scenario when the new one is invalid", func() {
		s := testScenario()
		s.TimeStep = 0

		Expect(run.SetScenario(s)).To(HaveOccurred())
		Expect(run.Snapshot().Scenario).To(Equal(testScenario()))
	})

	It("should copy its state", func() {
		_, _ = run.Start()

		state := run.Snapshot()

		Expect(state.ID).To(Equal(run.ID))
		Expect(state.Started).To(BeTrue())
		Expect(state.NextStep).To(Equal(1))
	})

	It("should forward steps to the sink", func() {
		_, _ = run.Start()
		_, _ = run.Next()

		Expect(sink.steps).To(HaveLen(2))
		Expect(sink.steps[1].runID).To(Equal(run.ID))
		Expect(sink.steps[1].step.ID).To(Equal(1))
	})
})
