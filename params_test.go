package xcallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParamsOrderAndValues(t *testing.T) {
	params, err := ParseParams([]string{"title=My Note", "text=First line", "flag="})
	require.NoError(t, err)
	assert.Equal(t, []Param{
		{Key: "title", Value: "My Note"},
		{Key: "text", Value: "First line"},
		{Key: "flag", Value: ""},
	}, params)
}

func TestParseParamsValueMayContainEquals(t *testing.T) {
	params, err := ParseParams([]string{"expr=a=b=c"})
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, "expr", params[0].Key)
	assert.Equal(t, "a=b=c", params[0].Value)
}

func TestParseParamsMalformed(t *testing.T) {
	for _, tok := range []string{"noseparator", "", "=value"} {
		t.Run(tok, func(t *testing.T) {
			params, err := ParseParams([]string{"ok=1", tok})
			require.Error(t, err)
			assert.Nil(t, params, "no partial result on error")
			var perr *ParamError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, ParamErrMalformedPair, perr.Kind)
		})
	}
}

func TestParseParamsRejectsReservedKeys(t *testing.T) {
	reserved := []string{"x-source", "x-success", "x-error", "x-cancel"}
	for _, key := range reserved {
		// Position in the list must not matter.
		for _, raw := range [][]string{
			{key + "=v"},
			{"a=1", key + "=v"},
			{key + "=v", "a=1"},
		} {
			params, err := ParseParams(raw)
			require.Error(t, err, "%v", raw)
			assert.Nil(t, params)
			var perr *ParamError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, ParamErrReservedKey, perr.Kind)
			assert.Equal(t, key, perr.Token)
		}
	}
}

func TestParseParamsRejectsDuplicateKeys(t *testing.T) {
	_, err := ParseParams([]string{"title=a", "text=b", "title=c"})
	require.Error(t, err)
	var perr *ParamError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ParamErrDuplicateKey, perr.Kind)
	assert.Equal(t, "title", perr.Token)
}

func TestReservedKey(t *testing.T) {
	assert.True(t, ReservedKey("x-success"))
	assert.False(t, ReservedKey("x-other"))
	assert.False(t, ReservedKey("title"))
}
