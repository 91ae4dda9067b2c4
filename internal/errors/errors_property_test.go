//go:build property

package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestErrorChainProperties validates that codes survive wrapping.
func TestErrorChainProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("codes are found through any wrapping depth", prop.ForAll(
		func(name string, depth int) bool {
			var err error = MissingVariable(name)
			for i := 0; i < depth; i++ {
				if i%2 == 0 {
					err = Wrap(err, ErrorTypeTemplate, ErrCodeTemplateLoad, "layer")
				} else {
					err = fmt.Errorf("layer %d: %w", i, err)
				}
			}
			return IsMissingVariable(err) && VariableName(err) == name
		},
		gen.Identifier(),
		gen.IntRange(0, 12),
	))

	properties.Property("combined errors keep every message", prop.ForAll(
		func(names []string) bool {
			errs := make([]error, 0, len(names))
			for _, n := range names {
				errs = append(errs, TemplateNotFound(n))
			}
			combined := CombineErrors(errs...)
			if len(names) == 0 {
				return combined == nil
			}
			for _, n := range names {
				if !strings.Contains(combined.Error(), n) {
					return false
				}
			}
			return IsTemplateLoad(combined)
		},
		gen.SliceOfN(5, gen.Identifier()),
	))

	properties.Property("circular chain message lists the cycle", prop.ForAll(
		func(chain []string) bool {
			if len(chain) == 0 {
				return true
			}
			err := CircularReference(chain[0], chain)
			return strings.Contains(err.Error(), strings.Join(append(chain, chain[0]), " -> ")) &&
				IsCircularReference(err)
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
