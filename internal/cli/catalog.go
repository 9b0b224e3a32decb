package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/entitle/internal/catalog"
	"github.com/roach88/entitle/internal/model"
)

// ProductSummary is the printable view of one catalog product.
type ProductSummary struct {
	ID     string            `json:"id"`
	Name   string            `json:"display_name"`
	Type   model.ProductType `json:"type"`
	Price  string            `json:"price"`
	Label  string            `json:"price_formatted"`
	Group  string            `json:"group,omitempty"`
	Period string            `json:"period,omitempty"`
	Offers int               `json:"offers"`
}

func summarizeProduct(p model.Product) ProductSummary {
	s := ProductSummary{
		ID:    p.ID,
		Name:  p.DisplayName,
		Type:  p.Type,
		Price: p.Price.String(),
		Label: p.PriceFormatted,
	}
	if info := p.SubscriptionInfo; info != nil {
		s.Group = info.GroupID
		s.Period = info.Period
		s.Offers = len(info.PromotionalOffers)
		if info.IntroductoryOffer != nil {
			s.Offers++
		}
	}
	return s
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [file.cue]",
		Short: "Validate a product catalog and list its products",
		Long: `Validate a CUE product catalog against the catalog schema and list its
products. The file defaults to the catalog setting of the config.

Exit codes:
  0 - Catalog is valid
  1 - Catalog failed validation
  2 - Command error (file not found, etc.)

Examples:
  entitle catalog ./catalog.cue
  entitle catalog --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config.Catalog
			if len(args) == 1 {
				path = args[0]
			}
			return runCatalog(rootOpts, path, cmd)
		},
	}
}

func runCatalog(opts *RootOptions, path string, cmd *cobra.Command) error {
	if path == "" {
		return NewExitError(ExitCommandError, "no catalog file given")
	}

	cat, err := catalog.Load(path)
	if err != nil {
		var loadErr *catalog.LoadError
		if errors.As(err, &loadErr) {
			failure := WrapExitError(ExitFailure, "catalog is invalid", err)
			if opts.Format == "json" {
				return writeJSONResult(cmd.OutOrStdout(), map[string]string{"product": loadErr.Product, "error": err.Error()}, "E_CATALOG_INVALID", failure)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✗ %v\n", err)
			return failure
		}
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	products := cat.Products()
	summaries := make([]ProductSummary, len(products))
	for i, p := range products {
		summaries[i] = summarizeProduct(p)
	}
	opts.logger().Debug("catalog loaded", "path", path, "products", len(summaries))

	if opts.Format == "json" {
		return writeJSONResult(cmd.OutOrStdout(), summaries, "", nil)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s: %d product(s)\n", path, len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(w, "  %-28s %-26s %s", s.ID, s.Type, s.Label)
		if s.Group != "" {
			fmt.Fprintf(w, "  group=%s period=%s offers=%d", s.Group, s.Period, s.Offers)
		}
		fmt.Fprintln(w)
	}
	return nil
}
