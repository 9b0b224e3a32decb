package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/entitle/internal/model"
)

// Snapshot renders a scenario outcome as canonical JSON: the trace, the
// rejected count and the final entitlement set.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := map[string]any{
			"step":      ev.Step,
			"kind":      ev.Kind,
			"outcome":   ev.Outcome,
			"purchased": ev.Purchased,
		}
		if ev.TransactionID != "" {
			m["transaction_id"] = ev.TransactionID
		}
		if ev.ProductID != "" {
			m["product_id"] = ev.ProductID
		}
		trace[i] = m
	}

	governing := make(map[string]any, len(result.Governing))
	for product, id := range result.Governing {
		governing[product] = id
	}

	return model.MarshalCanonical(map[string]any{
		"scenario_name": name,
		"trace":         trace,
		"rejected":      result.Rejected,
		"governing":     governing,
		"purchased":     result.Purchased,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
