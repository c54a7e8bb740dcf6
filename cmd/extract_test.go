package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlayerFilterEmpty(t *testing.T) {
	ids, err := parsePlayerFilter("")
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestParsePlayerFilterValid(t *testing.T) {
	ids, err := parsePlayerFilter("76561198000000000, 76561198000000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"76561198000000000", "76561198000000001"}, ids)
}

func TestParsePlayerFilterAllInvalid(t *testing.T) {
	_, err := parsePlayerFilter("notasteamid")
	require.Error(t, err)
}

func TestParsePlayerFilterMixedSkipsInvalid(t *testing.T) {
	ids, err := parsePlayerFilter("76561198000000000,garbage")
	require.NoError(t, err)
	assert.Equal(t, []string{"76561198000000000"}, ids)
}
