package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statespace/dsgefc/internal/common"
)

func TestParseEnums(t *testing.T) {
	ct, err := ParseCondType("semi")
	require.NoError(t, err)
	assert.Equal(t, CondSemi, ct)

	it, err := ParseInputType("subset")
	require.NoError(t, err)
	assert.Equal(t, InputSubset, it)

	ot, err := ParseOutputType("shocks_nonstandardized")
	require.NoError(t, err)
	assert.Equal(t, OutputShocksNS, ot)

	for _, bad := range []string{"", "nonee", "SEMI", "forecast "} {
		_, err := ParseCondType(bad)
		assert.ErrorIs(t, err, common.ErrInvalidEnumValue, "cond %q", bad)
	}
	_, err = ParseInputType("median")
	assert.ErrorIs(t, err, common.ErrInvalidEnumValue)
	_, err = ParseOutputType("trend")
	assert.ErrorIs(t, err, common.ErrInvalidEnumValue)
}

func TestExpandOutputTypes(t *testing.T) {
	all := ExpandOutputTypes([]OutputType{OutputAll})
	assert.Len(t, all, 9)
	assert.NotContains(t, all, OutputAll)

	// The union is deduplicated and stable under repeats.
	mixed := ExpandOutputTypes([]OutputType{OutputForecast, OutputAll, OutputForecast})
	assert.ElementsMatch(t, all, mixed)

	few := ExpandOutputTypes([]OutputType{OutputStates, OutputStates, OutputShockdec})
	assert.Equal(t, []OutputType{OutputStates, OutputShockdec}, few)
}

func TestResultNames(t *testing.T) {
	assert.Equal(t, []string{"histstates", "histpseudo"}, OutputStates.ResultNames())
	assert.Equal(t, []string{"forecaststates", "forecastobs"}, OutputForecast.ResultNames())
	assert.Equal(t, []string{"shockdecstates", "shockdecobs"}, OutputShockdec.ResultNames())

	// "all" covers every concrete result exactly once.
	names := OutputAll.ResultNames()
	seen := make(map[string]bool)
	for _, n := range names {
		assert.False(t, seen[n], "duplicate result name %s", n)
		seen[n] = true
	}
	assert.Len(t, names, 16)
}

func TestArtifactKey(t *testing.T) {
	key := ArtifactKey(37, InputFull, CondSemi, "forecastobs")
	assert.Equal(t, "37_para=full_cond=semi_forecastobs", key)
}
