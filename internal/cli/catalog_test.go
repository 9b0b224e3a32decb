package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Valid(t *testing.T) {
	out, err := runCommand(t, NewCatalogCommand(textOpts()), "../catalog/testdata/catalog.cue")
	require.NoError(t, err)

	assert.Contains(t, out, "4 product(s)")
	assert.Contains(t, out, "com.app.sub.monthly")
	assert.Contains(t, out, "group=premium period=P1M offers=2")
}

func TestCatalog_JSON(t *testing.T) {
	out, err := runCommand(t, NewCatalogCommand(jsonOpts()), "../catalog/testdata/catalog.cue")
	require.NoError(t, err)

	var products []ProductSummary
	resp := decodeEnvelope(t, out, &products)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, products, 4)

	byID := map[string]ProductSummary{}
	for _, p := range products {
		byID[p.ID] = p
	}
	assert.Equal(t, "premium", byID["com.app.sub.yearly"].Group)
	assert.Equal(t, 0, byID["com.app.sub.yearly"].Offers)
	assert.Empty(t, byID["com.app.pro"].Group)
}

func TestCatalog_Invalid(t *testing.T) {
	for _, file := range []string{"bad_currency.cue", "unknown_field.cue"} {
		t.Run(file, func(t *testing.T) {
			out, err := runCommand(t, NewCatalogCommand(jsonOpts()), "../catalog/testdata/"+file)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			resp := decodeEnvelope(t, out, nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "E_CATALOG_INVALID", resp.Error.Code)
		})
	}
}

func TestCatalog_CommandErrors(t *testing.T) {
	_, err := runCommand(t, NewCatalogCommand(textOpts()))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runCommand(t, NewCatalogCommand(textOpts()), "testdata/absent.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
