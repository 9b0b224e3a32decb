// Package catalog serves product metadata from a CUE catalog file.
//
// The file is unified with an embedded schema before anything is decoded,
// so malformed entries fail with a file position instead of surfacing later
// as zero values. Prices are decimals quantized to the currency's minor unit.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/entitle/internal/model"
	"github.com/roach88/entitle/internal/storeerr"
)

//go:embed schema.cue
var schemaCUE string

// LoadError is a catalog that failed to compile, validate or decode.
type LoadError struct {
	Product string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Product != "" {
		fmt.Fprintf(&b, "%s: ", e.Product)
	}
	b.WriteString(e.Message)
	return b.String()
}

// Catalog is an immutable set of products.
type Catalog struct {
	products map[string]model.Product
}

// Load reads and validates a CUE catalog file.
func Load(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(src, path)
}

// Parse compiles src against the catalog schema and decodes every product.
// filename is only used in error positions.
func Parse(src []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, cueError(err)
	}

	v := schema.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(err)
	}

	iter, err := v.LookupPath(cue.ParsePath("products")).Fields()
	if err != nil {
		return nil, cueError(err)
	}

	c := &Catalog{products: make(map[string]model.Product)}
	for iter.Next() {
		id := iter.Selector().Unquoted()

		var e entry
		if err := iter.Value().Decode(&e); err != nil {
			return nil, &LoadError{Product: id, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		p, err := e.product(id)
		if err != nil {
			return nil, &LoadError{Product: id, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		c.products[id] = p
	}
	return c, nil
}

// cueError keeps the first error's position when CUE reports one.
func cueError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		le.Pos = pos[0]
	}
	return le
}

// Fetch returns the products with the given ids, in request order. Any id
// the catalog does not know fails the whole request with invalidProductId.
func (c *Catalog) Fetch(ctx context.Context, ids []string) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeerr.Classify(err)
	}

	out := make([]model.Product, 0, len(ids))
	var missing []string
	for _, id := range ids {
		p, ok := c.products[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, p)
	}
	if len(missing) > 0 {
		return nil, storeerr.New(storeerr.CodeInvalidProductID,
			"unknown product ids: "+strings.Join(missing, ", "))
	}
	return out, nil
}

// Product looks up one product.
func (c *Catalog) Product(id string) (model.Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// Products returns every product ordered by id.
func (c *Catalog) Products() []model.Product {
	ids := c.IDs()
	out := make([]model.Product, len(ids))
	for i, id := range ids {
		out[i] = c.products[id]
	}
	return out
}

// IDs returns every product id in ascending order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.products))
	for id := range c.products {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.products) }
