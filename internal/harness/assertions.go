package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/entitle/internal/app"
	"github.com/roach88/entitle/internal/model"
)

// AssertionError is returned when an assertion fails. It carries the trace
// so the failure can be read without rerunning the scenario.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s -> %v\n", ev.Step, ev.Kind, ev.TransactionID, ev.Outcome, ev.Purchased)
		}
	}
	return buf.String()
}

// Querier is the engine state an assertion reads.
type Querier interface {
	IsPurchased(productID string) bool
	Status(productID, group string) *model.SubscriptionStatus
	CurrentPlan(groupID string) (model.Transaction, bool)
	Fingerprint() (string, error)
}

// AssertionContext provides engine and journal access for assertions.
type AssertionContext struct {
	Ctx     context.Context
	Service Querier
	Journal app.JournalReader
}

func assertPurchased(q Querier, a Assertion, trace []TraceEvent) error {
	if got := q.IsPurchased(a.Product); got != *a.Expect {
		return &AssertionError{
			Type:     AssertPurchased,
			Expected: fmt.Sprintf("isPurchased(%s) = %t", a.Product, *a.Expect),
			Actual:   fmt.Sprintf("%t", got),
			Trace:    trace,
		}
	}
	return nil
}

func assertState(q Querier, a Assertion, trace []TraceEvent) error {
	st := q.Status(a.Product, a.Group)
	actual := "no status"
	if st != nil {
		actual = string(st.State)
		if st.State == model.SubscriptionState(a.State) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertState,
		Expected: fmt.Sprintf("%s in state %s", a.Product, a.State),
		Actual:   actual,
		Trace:    trace,
	}
}

func assertEntitlements(result *Result, a Assertion) error {
	want := slices.Clone(a.Products)
	slices.Sort(want)
	if !slices.Equal(want, result.Purchased) {
		return &AssertionError{
			Type:     AssertEntitlements,
			Expected: fmt.Sprintf("purchased %v", want),
			Actual:   fmt.Sprintf("purchased %v", result.Purchased),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertGoverning(result *Result, a Assertion) error {
	got, ok := result.Governing[a.Product]
	if ok && got == a.Transaction {
		return nil
	}
	if !ok {
		got = "none"
	}
	return &AssertionError{
		Type:     AssertGoverning,
		Expected: fmt.Sprintf("%s governed by %s", a.Product, a.Transaction),
		Actual:   got,
		Trace:    result.Trace,
	}
}

func assertRejected(result *Result, a Assertion) error {
	if result.Rejected != *a.Count {
		return &AssertionError{
			Type:     AssertRejected,
			Expected: fmt.Sprintf("%d rejected elements", *a.Count),
			Actual:   fmt.Sprintf("%d rejected elements", result.Rejected),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertPlan(q Querier, a Assertion, trace []TraceEvent) error {
	tx, ok := q.CurrentPlan(a.Group)
	got := ""
	if ok {
		got = tx.ProductID
	}
	if got == a.Product {
		return nil
	}
	describe := func(p string) string {
		if p == "" {
			return "no active plan"
		}
		return p
	}
	return &AssertionError{
		Type:     AssertPlan,
		Expected: fmt.Sprintf("current plan of %s is %s", a.Group, describe(a.Product)),
		Actual:   describe(got),
		Trace:    trace,
	}
}

func assertReplay(actx *AssertionContext) error {
	report, err := app.Replay(actx.Ctx, actx.Journal)
	if err != nil {
		return err
	}
	if !report.Consistent() {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: "forward and reverse replay agree",
			Actual:   fmt.Sprintf("forward %s, reverse %s", report.Forward, report.Reverse),
		}
	}
	live, err := actx.Service.Fingerprint()
	if err != nil {
		return err
	}
	if live != report.Forward {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: "replay reproduces the live state " + live,
			Actual:   report.Forward,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result and
// returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertEntitlements:
			err = assertEntitlements(result, a)
		case AssertGoverning:
			err = assertGoverning(result, a)
		case AssertRejected:
			err = assertRejected(result, a)
		case AssertPurchased, AssertState, AssertPlan, AssertReplay:
			if actx == nil || actx.Service == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, a.Type)
				break
			}
			switch a.Type {
			case AssertPurchased:
				err = assertPurchased(actx.Service, a, result.Trace)
			case AssertState:
				err = assertState(actx.Service, a, result.Trace)
			case AssertPlan:
				err = assertPlan(actx.Service, a, result.Trace)
			case AssertReplay:
				if actx.Journal == nil {
					err = fmt.Errorf("assertion[%d]: replay requires a journal", i)
				} else {
					err = assertReplay(actx)
				}
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
