//go:build property

package environment

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/stencilhq/stencil/internal/loader"
)

// TestMergeGlobalsProperties validates merge precedence over arbitrary
// key/value combinations.
func TestMergeGlobalsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: a context key always shadows a same-named global
	properties.Property("context wins on collision", prop.ForAll(
		func(key, globalVal, contextVal string) bool {
			if key == "" {
				return true
			}
			env, err := New(loader.NewMapLoader(map[string]string{"page": "body"}), Options{})
			if err != nil {
				return false
			}
			if err := env.AddGlobal(key, globalVal); err != nil {
				return false
			}
			merged := env.MergeGlobals(map[string]interface{}{key: contextVal})
			return merged[key] == contextVal
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	// Property: globals absent from the context are inserted unchanged
	properties.Property("absent globals are inserted", prop.ForAll(
		func(globalKey, contextKey, globalVal, contextVal string) bool {
			if globalKey == "" || contextKey == "" || globalKey == contextKey {
				return true
			}
			env, err := New(loader.NewMapLoader(map[string]string{"page": "body"}), Options{})
			if err != nil {
				return false
			}
			if err := env.AddGlobal(globalKey, globalVal); err != nil {
				return false
			}
			merged := env.MergeGlobals(map[string]interface{}{contextKey: contextVal})
			return merged[globalKey] == globalVal && merged[contextKey] == contextVal
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
