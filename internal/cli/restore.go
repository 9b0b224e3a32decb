package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/entitle/internal/app"
	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/storeerr"
)

// RestoreOptions holds flags for the restore command.
type RestoreOptions struct {
	*RootOptions
	EngineOptions
}

// EntitlementSummary is the printable view of one governing transaction.
type EntitlementSummary struct {
	ProductID     string `json:"product_id"`
	TransactionID string `json:"transaction_id"`
	PurchaseDate  string `json:"purchase_date"`
	Expires       string `json:"expires,omitempty"`
	Ownership     string `json:"ownership"`
}

// RestoreResult is the outcome of a restore.
type RestoreResult struct {
	Loaded       int                  `json:"loaded"`
	Purchased    []string             `json:"purchased"`
	Entitlements []EntitlementSummary `json:"entitlements"`
	Skipped      string               `json:"skipped,omitempty"`
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RestoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "restore <entitlements.yaml>",
		Short: "Rebuild the entitlement set from a current-entitlements file",
		Long: `Rebuild the entitlement set from a current-entitlements fixture and print
what the user owns. Elements that fail verification are skipped.

Exit codes:
  0 - Every element was loaded
  1 - Some elements failed verification (the rest were loaded)
  2 - Command error (file not found, etc.)

Examples:
  entitle restore ./entitlements.yaml
  entitle restore ./entitlements.yaml --db ./entitle.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal ingested transactions to this SQLite database")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "CUE product catalog")

	return cmd
}

func runRestore(opts *RestoreOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	e, txs, restoreErr, err := restoreFrom(ctx, opts.RootOptions, opts.EngineOptions, path)
	if err != nil {
		return err
	}
	defer e.close()

	result := RestoreResult{
		Loaded:       len(txs),
		Purchased:    e.svc.PurchasedProductIDs(),
		Entitlements: summarizeEntitlements(e.svc.CurrentEntitlements()),
	}
	if result.Purchased == nil {
		result.Purchased = []string{}
	}

	var failure *ExitError
	if restoreErr != nil {
		result.Skipped = restoreErr.Error()
		failure = WrapExitError(ExitFailure, "restore was partial", restoreErr)
	}

	if opts.Format == "json" {
		return writeJSONResult(cmd.OutOrStdout(), result, "E_PARTIAL_RESTORE", failure)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Restored %d transaction(s), %d product(s) purchased\n", result.Loaded, len(result.Purchased))
	for _, s := range result.Entitlements {
		fmt.Fprintf(w, "  %-28s tx=%s purchased=%s", s.ProductID, s.TransactionID, s.PurchaseDate)
		if s.Expires != "" {
			fmt.Fprintf(w, " expires=%s", s.Expires)
		}
		fmt.Fprintln(w)
	}
	if failure != nil {
		fmt.Fprintf(w, "✗ %s\n", result.Skipped)
		return failure
	}
	return nil
}

// restoreFrom opens an engine fed by the fixture at path and restores it. A
// partial restore is reported in restoreErr; err is a command error.
func restoreFrom(ctx context.Context, opts *RootOptions, eo EngineOptions, path string, extra ...app.Option) (e *engine, txs []model.Transaction, restoreErr error, err error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "entitlements file not found", err)
	}

	e, err = openEngine(ctx, opts, eo, append(extra, app.WithEntitlementSource(app.FixtureSource(path)))...)
	if err != nil {
		return nil, nil, nil, err
	}

	txs, restoreErr = e.svc.Restore(ctx)
	if restoreErr != nil && !storeerr.IsVerificationFailed(restoreErr) {
		e.close()
		return nil, nil, nil, WrapExitError(ExitCommandError, "restore failed", restoreErr)
	}
	return e, txs, restoreErr, nil
}

func summarizeEntitlements(txs []model.Transaction) []EntitlementSummary {
	slices.SortFunc(txs, func(a, b model.Transaction) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	out := make([]EntitlementSummary, len(txs))
	for i, tx := range txs {
		out[i] = EntitlementSummary{
			ProductID:     tx.ProductID,
			TransactionID: tx.ID,
			PurchaseDate:  tx.PurchaseDate.Format(time.RFC3339),
			Ownership:     string(tx.OwnershipType),
		}
		if tx.ExpirationDate != nil {
			out[i].Expires = tx.ExpirationDate.Format(time.RFC3339)
		}
	}
	return out
}

// commandContext returns the command's context, which tests may set.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
