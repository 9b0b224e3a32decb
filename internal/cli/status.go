package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/entitle/internal/app"
	"github.com/roach88/entitle/internal/model"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	EngineOptions
	Product string
	Group   string
	At      int64 // Unix milliseconds; 0 means now
}

// StatusResult is the outcome of the status command.
type StatusResult struct {
	At       string                     `json:"at"`
	Statuses []model.SubscriptionStatus `json:"statuses"`
	Plan     string                     `json:"current_plan,omitempty"`
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status <entitlements.yaml>",
		Short: "Project subscription status from a current-entitlements file",
		Long: `Restore a current-entitlements fixture and project the subscription
status of its products. Restore warnings are logged, not fatal.

Exit codes:
  0 - Status projected
  1 - The requested product has no transactions
  2 - Command error (file not found, etc.)

Examples:
  entitle status ./entitlements.yaml
  entitle status ./entitlements.yaml --product com.app.sub.monthly
  entitle status ./entitlements.yaml --group premium --at 1700000000000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "CUE product catalog (supplies subscription groups)")
	cmd.Flags().StringVar(&opts.Product, "product", "", "project one product only")
	cmd.Flags().StringVar(&opts.Group, "group", "", "project one subscription group only")
	cmd.Flags().Int64Var(&opts.At, "at", 0, "evaluate at this Unix millisecond instead of now")

	return cmd
}

func runStatus(opts *StatusOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	now := time.Now().UTC()
	if opts.At != 0 {
		now = time.UnixMilli(opts.At).UTC()
	}

	e, txs, restoreErr, err := restoreFrom(ctx, opts.RootOptions, opts.EngineOptions, path,
		app.WithClock(fixedClock(now)))
	if err != nil {
		return err
	}
	defer e.close()
	if restoreErr != nil {
		opts.logger().Warn("restore was partial", "error", restoreErr)
	}

	result := StatusResult{At: now.Format(time.RFC3339)}
	switch {
	case opts.Product != "":
		st := e.svc.Status(opts.Product, opts.Group)
		if st == nil {
			return NewExitError(ExitFailure, "no transactions for product "+opts.Product)
		}
		result.Statuses = []model.SubscriptionStatus{*st}
	case opts.Group != "":
		result.Statuses = e.svc.GroupStatuses(opts.Group)
		if plan, ok := e.svc.CurrentPlan(opts.Group); ok {
			result.Plan = plan.ProductID
		}
	default:
		var products []string
		for _, tx := range txs {
			if !slices.Contains(products, tx.ProductID) {
				products = append(products, tx.ProductID)
			}
		}
		slices.Sort(products)
		for _, id := range products {
			if st := e.svc.Status(id, ""); st != nil {
				result.Statuses = append(result.Statuses, *st)
			}
		}
	}
	if result.Statuses == nil {
		result.Statuses = []model.SubscriptionStatus{}
	}

	if opts.Format == "json" {
		return writeJSONResult(cmd.OutOrStdout(), result, "", nil)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Status at %s\n", result.At)
	for _, st := range result.Statuses {
		fmt.Fprintf(w, "  %-28s %-22s", st.ProductID, st.State)
		if st.GroupID != "" {
			fmt.Fprintf(w, " group=%s", st.GroupID)
		}
		if st.Transaction != nil {
			fmt.Fprintf(w, " tx=%s", st.Transaction.ID)
		}
		fmt.Fprintln(w)
	}
	if result.Plan != "" {
		fmt.Fprintf(w, "Current plan: %s\n", result.Plan)
	}
	return nil
}
