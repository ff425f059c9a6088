package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// A closed breaker opens exactly when the run of trailing failures reaches the threshold.
func TestProperty_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("open iff consecutive failures reach max", prop.ForAll(
		func(maxFailures int, outcomes []bool) bool {
			cb, _ := newTestBreaker(Settings{MaxFailures: maxFailures, ResetTimeout: time.Hour})
			run := 0
			for _, fail := range outcomes {
				if cb.GetState() == StateOpen {
					return run >= maxFailures
				}
				fn := succeeding
				if fail {
					fn = failing
					run++
				} else {
					run = 0
				}
				_ = cb.Execute(context.Background(), fn)
			}
			return (cb.GetState() == StateOpen) == (run >= maxFailures)
		},
		gen.IntRange(1, 5),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
