package timestep

import (
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const testURL = "http://localhost/test"

type fixture struct {
	timeSteps         []TimeStep
	expectedTimeSteps []ExpectedTimeStep
}

func newFixture() fixture {
	start := time.Date(2012, time.December, 7, 12, 0, 0, 0, time.UTC)

	f := fixture{}
	for i := 0; i < 4; i++ {
		ts := FormatTimestamp(start.Add(time.Duration(i) * 15 * time.Minute))
		f.timeSteps = append(f.timeSteps, TimeStep{
			ID:        i,
			Timestamp: ts,
			URL:       fmt.Sprintf("/static/img/step_%05d.png", i),
		})
		f.expectedTimeSteps = append(f.expectedTimeSteps,
			ExpectedTimeStep{Timestamp: ts})
	}

	return f
}

func makeModel(steps []TimeStep, expected []ExpectedTimeStep) *Model {
	m, err := NewModel(steps, Config{
		URL:               testURL,
		ExpectedTimeSteps: expected,
	})
	Expect(err).NotTo(HaveOccurred())

	return m
}

var _ = Describe("Model", func() {
	var (
		data  fixture
		model *Model
	)

	BeforeEach(func() {
		data = newFixture()
		model = makeModel(data.timeSteps, data.expectedTimeSteps)
	})

	It("should keep the url", func() {
		Expect(model.URL()).To(Equal(testURL))
	})

	Context("HasData", func() {
		It("should return false if expected time steps is empty", func() {
			model = makeModel(nil, nil)

			Expect(model.HasData()).To(BeFalse())
		})

		It("should return true if expected time steps has items", func() {
			Expect(model.HasData()).To(BeTrue())
		})

		It("should not depend on cached time steps", func() {
			model = makeModel(data.timeSteps, nil)

			Expect(model.HasData()).To(BeFalse())
		})
	})

	Context("HasCachedTimeStep", func() {
		It("should be true if the item is cached", func() {
			Expect(model.HasCachedTimeStep(2)).To(BeTrue())
		})

		It("should be true for every cached id", func() {
			for _, s := range data.timeSteps {
				Expect(model.HasCachedTimeStep(s.ID)).To(BeTrue())
			}
		})

		It("should be false if the item is not cached", func() {
			Expect(model.HasCachedTimeStep(len(data.timeSteps))).To(BeFalse())
			Expect(model.HasCachedTimeStep(len(data.timeSteps) + 1)).
				To(BeFalse())
		})

		It("should be false for negative ids", func() {
			Expect(model.HasCachedTimeStep(-1)).To(BeFalse())
		})
	})

	Context("ServerHasTimeStep", func() {
		It("should be true if the server expects to generate the step", func() {
			Expect(model.ServerHasTimeStep(2)).To(BeTrue())
		})

		It("should be false if the server does not expect the step", func() {
			Expect(model.ServerHasTimeStep(len(data.timeSteps) + 1)).
				To(BeFalse())
			Expect(model.ServerHasTimeStep(-1)).To(BeFalse())
		})

		It("should not depend on cached time steps", func() {
			model = makeModel(nil, data.expectedTimeSteps)

			Expect(model.ServerHasTimeStep(3)).To(BeTrue())
			Expect(model.HasCachedTimeStep(3)).To(BeFalse())
		})
	})

	Context("TimestampForExpectedStep", func() {
		It("should return a timestamp if the step exists", func() {
			ts := model.TimestampForExpectedStep(0)

			Expect(ts.IsSome()).To(BeTrue())
			Expect(ts.Unwrap()).To(Equal("Fri, 07 Dec 2012 12:00:00 GMT"))
		})

		It("should return none if the step does not exist", func() {
			Expect(model.TimestampForExpectedStep(10).IsNone()).To(BeTrue())
			Expect(model.TimestampForExpectedStep(-1).IsNone()).To(BeTrue())
		})
	})

	Context("CurrentTimeStep", func() {
		It("should return the correct time step", func() {
			step, err := model.CurrentTimeStep()

			Expect(err).NotTo(HaveOccurred())
			Expect(step.ID).To(Equal(0))
			Expect(step.Timestamp).To(Equal("Fri, 07 Dec 2012 12:00:00 GMT"))

			model.SetCurrentTimeStep(1)
			step, err = model.CurrentTimeStep()

			Expect(err).NotTo(HaveOccurred())
			Expect(step.ID).To(Equal(1))
			Expect(step.Timestamp).To(Equal("Fri, 07 Dec 2012 12:15:00 GMT"))
		})

		It("should match the expected timestamp at every position", func() {
			for k := range data.timeSteps {
				model.SetCurrentTimeStep(k)
				step, err := model.CurrentTimeStep()

				Expect(err).NotTo(HaveOccurred())
				Expect(step.Timestamp).
					To(Equal(model.TimestampForExpectedStep(k).Unwrap()))
			}
		})

		It("should fail if the cursor points at an uncached step", func() {
			model.SetCurrentTimeStep(7)

			_, err := model.CurrentTimeStep()

			Expect(errors.Is(err, ErrTimeStepNotCached)).To(BeTrue())
			Expect(model.CurrentIndex()).To(Equal(7))
		})

		It("should fail on an empty model", func() {
			model = makeModel(nil, nil)

			_, err := model.CurrentTimeStep()

			Expect(errors.Is(err, ErrTimeStepNotCached)).To(BeTrue())
		})
	})

	Context("AddTimeStep", func() {
		BeforeEach(func() {
			model = makeModel(data.timeSteps[:2], data.expectedTimeSteps)
		})

		It("should cache the next step", func() {
			Expect(model.AddTimeStep(data.timeSteps[2])).To(Succeed())

			Expect(model.HasCachedTimeStep(2)).To(BeTrue())
			Expect(model.NumCachedTimeSteps()).To(Equal(3))
		})

		It("should reject a gap", func() {
			err := model.AddTimeStep(data.timeSteps[3])

			Expect(errors.Is(err, ErrNonContiguousTimeStep)).To(BeTrue())
			Expect(model.HasCachedTimeStep(3)).To(BeFalse())
		})

		It("should accept a step that is already cached", func() {
			Expect(model.AddTimeStep(data.timeSteps[1])).To(Succeed())
			Expect(model.NumCachedTimeSteps()).To(Equal(2))
		})

		It("should not overwrite a cached step", func() {
			changed := data.timeSteps[1]
			changed.Timestamp = "Sat, 08 Dec 2012 00:00:00 GMT"

			err := model.AddTimeStep(changed)

			Expect(errors.Is(err, ErrTimeStepConflict)).To(BeTrue())
			step, _ := model.TimeStep(1)
			Expect(step).To(Equal(data.timeSteps[1]))
		})

		It("should reject initial steps that do not start at zero", func() {
			_, err := NewModel(data.timeSteps[1:], Config{})

			Expect(errors.Is(err, ErrNonContiguousTimeStep)).To(BeTrue())
		})
	})

	Context("SetExpectedTimeSteps", func() {
		BeforeEach(func() {
			model = makeModel(nil, data.expectedTimeSteps[:2])
		})

		It("should grow the advertised steps", func() {
			Expect(model.SetExpectedTimeSteps(data.expectedTimeSteps)).
				To(Succeed())

			Expect(model.NumExpectedTimeSteps()).To(Equal(4))
			Expect(model.ServerHasTimeStep(3)).To(BeTrue())
		})

		It("should not shrink", func() {
			err := model.SetExpectedTimeSteps(data.expectedTimeSteps[:1])

			Expect(errors.Is(err, ErrExpectedTimeStepsShrunk)).To(BeTrue())
			Expect(model.NumExpectedTimeSteps()).To(Equal(2))
		})

		It("should not change a known timestamp", func() {
			steps := append([]ExpectedTimeStep{}, data.expectedTimeSteps...)
			steps[0].Timestamp = "Sat, 08 Dec 2012 00:00:00 GMT"

			err := model.SetExpectedTimeSteps(steps)

			Expect(errors.Is(err, ErrTimeStepConflict)).To(BeTrue())
			Expect(model.NumExpectedTimeSteps()).To(Equal(2))
		})
	})

	Context("State", func() {
		It("should move from unknown to expected to cached", func() {
			model = makeModel(nil, nil)
			Expect(model.State(0)).To(Equal(StepUnknown))

			Expect(model.SetExpectedTimeSteps(data.expectedTimeSteps)).
				To(Succeed())
			Expect(model.State(0)).To(Equal(StepExpected))

			Expect(model.AddTimeStep(data.timeSteps[0])).To(Succeed())
			Expect(model.State(0)).To(Equal(StepCached))
			Expect(model.State(1)).To(Equal(StepExpected))
			Expect(model.State(9)).To(Equal(StepUnknown))
		})
	})
})

var _ = Describe("Timestamp", func() {
	It("should format in the runner service format", func() {
		t := time.Date(2012, time.December, 7, 12, 15, 0, 0, time.UTC)

		Expect(FormatTimestamp(t)).To(Equal("Fri, 07 Dec 2012 12:15:00 GMT"))
	})

	It("should convert to UTC", func() {
		loc := time.FixedZone("EST", -5*3600)
		t := time.Date(2012, time.December, 7, 7, 0, 0, 0, loc)

		Expect(FormatTimestamp(t)).To(Equal("Fri, 07 Dec 2012 12:00:00 GMT"))
	})

	It("should parse what it formats", func() {
		t, err := ParseTimestamp("Fri, 07 Dec 2012 12:00:00 GMT")

		Expect(err).NotTo(HaveOccurred())
		Expect(t.Equal(time.Date(2012, time.December, 7, 12, 0, 0, 0, time.UTC))).
			To(BeTrue())
	})

	It("should number expected steps from zero", func() {
		start := time.Date(2012, time.December, 7, 12, 0, 0, 0, time.UTC)

		steps := ExpectedTimeStepsFromTimes(
			[]time.Time{start, start.Add(15 * time.Minute)})

		Expect(steps).To(Equal([]ExpectedTimeStep{
			{ID: 0, Timestamp: "Fri, 07 Dec 2012 12:00:00 GMT"},
			{ID: 1, Timestamp: "Fri, 07 Dec 2012 12:15:00 GMT"},
		}))
	})
})
