package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/source"
)

// Scenario defines a reconciliation scenario: a sequence of stream
// deliveries, restores and clock moves, followed by assertions on the
// resulting entitlement state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog optionally names a CUE catalog whose products are loaded into
	// the product cache before the first step. Relative to the scenario file.
	Catalog string `yaml:"catalog,omitempty"`

	// Now is the initial clock reading in Unix milliseconds.
	Now int64 `yaml:"now"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one field is set.
type Step struct {
	// Deliver pushes one element through the update pipeline.
	Deliver *source.Message `yaml:"deliver,omitempty"`

	// Restore replaces the entitlement set with the listed elements.
	Restore []source.Message `yaml:"restore,omitempty"`

	// Clock moves the clock to the given Unix milliseconds.
	Clock *int64 `yaml:"clock,omitempty"`

	// Renewal records renewal facts outside the stream.
	Renewal *model.RawRenewalInfo `yaml:"renewal,omitempty"`
}

// Kind names the action a step performs.
func (s Step) Kind() string {
	switch {
	case s.Deliver != nil:
		return StepDeliver
	case s.Restore != nil:
		return StepRestore
	case s.Clock != nil:
		return StepClock
	case s.Renewal != nil:
		return StepRenewal
	default:
		return ""
	}
}

func (s Step) fields() int {
	n := 0
	for _, set := range []bool{s.Deliver != nil, s.Restore != nil, s.Clock != nil, s.Renewal != nil} {
		if set {
			n++
		}
	}
	return n
}

// Step kinds.
const (
	StepDeliver = "deliver"
	StepRestore = "restore"
	StepClock   = "clock"
	StepRenewal = "renewal"
)

// Assertion validates the final state or the trace.
type Assertion struct {
	// Type selects the check:
	// - "purchased": IsPurchased(product) == expect
	// - "state": the projected status of product is state
	// - "entitlements": the purchased product ids equal products
	// - "governing": product is governed by transaction
	// - "rejected": exactly count elements were rejected
	// - "plan": the current plan of group is product, or none when empty
	// - "replay": replaying the journal in either order yields the same state
	Type string `yaml:"type"`

	Product     string   `yaml:"product,omitempty"`
	Group       string   `yaml:"group,omitempty"`
	Expect      *bool    `yaml:"expect,omitempty"`
	State       string   `yaml:"state,omitempty"`
	Products    []string `yaml:"products,omitempty"`
	Transaction string   `yaml:"transaction,omitempty"`
	Count       *int     `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertPurchased    = "purchased"
	AssertState        = "state"
	AssertEntitlements = "entitlements"
	AssertGoverning    = "governing"
	AssertRejected     = "rejected"
	AssertPlan         = "plan"
	AssertReplay       = "replay"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so a misspelled key never silently skips a check. A relative
// catalog path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if n := step.fields(); n != 1 {
			return fmt.Errorf("steps[%d]: exactly one of deliver, restore, clock, renewal is required (got %d)", i, n)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertPurchased:
		if a.Product == "" || a.Expect == nil {
			return fmt.Errorf("assertions[%d]: product and expect are required for purchased", index)
		}
	case AssertState:
		if a.Product == "" || a.State == "" {
			return fmt.Errorf("assertions[%d]: product and state are required for state", index)
		}
	case AssertEntitlements:
		if a.Products == nil {
			return fmt.Errorf("assertions[%d]: products is required for entitlements (use [] for none)", index)
		}
	case AssertGoverning:
		if a.Product == "" || a.Transaction == "" {
			return fmt.Errorf("assertions[%d]: product and transaction are required for governing", index)
		}
	case AssertRejected:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: a non-negative count is required for rejected", index)
		}
	case AssertPlan:
		if a.Group == "" {
			return fmt.Errorf("assertions[%d]: group is required for plan", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
