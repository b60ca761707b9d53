package jsonutil_test

import (
	"testing"

	"github.com/smartguitar/sgc/pkg/jsonutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalMarshal_SortedKeys(t *testing.T) {
	input := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"mid":   3,
	}
	out, err := jsonutil.CanonicalMarshal(input)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zebra":1}`, string(out))
}

func TestCanonicalMarshal_Nested(t *testing.T) {
	input := map[string]any{
		"b": map[string]any{"z": 1, "a": 2},
		"a": []any{map[string]any{"y": nil, "x": true}},
	}
	out, err := jsonutil.CanonicalMarshal(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":[{"x":true,"y":null}],"b":{"a":2,"z":1}}`, string(out))
}

func TestCanonicalMarshal_StructSortsFields(t *testing.T) {
	type sample struct {
		Zebra int    `json:"zebra"`
		Alpha string `json:"alpha"`
	}
	out, err := jsonutil.CanonicalMarshal(sample{Zebra: 1, Alpha: "a"})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","zebra":1}`, string(out))
}

func TestCanonicalMarshal_NumbersKeepPrecision(t *testing.T) {
	out, err := jsonutil.CanonicalMarshal([]byte(`{"big":12345678901234567890,"f":0.125}`))
	require.NoError(t, err)
	assert.Equal(t, `{"big":12345678901234567890,"f":0.125}`, string(out))
}

func TestCanonicalMarshal_KeyOrderIndependent(t *testing.T) {
	a, err := jsonutil.CanonicalMarshal([]byte(`{"b":1,"a":{"d":2,"c":3}}`))
	require.NoError(t, err)
	b, err := jsonutil.CanonicalMarshal([]byte(`{"a":{"c":3,"d":2},"b":1}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonicalIndent(t *testing.T) {
	out, err := jsonutil.CanonicalIndent(map[string]any{"b": 1, "a": []any{}})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": [],\n  \"b\": 1\n}\n", string(out))
}

func TestCanonicalWithout(t *testing.T) {
	doc := map[string]any{"name": "x", "signature": map[string]any{"value": "ab"}}
	out, err := jsonutil.CanonicalWithout(doc, "signature")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"x"}`, string(out))
	assert.Contains(t, doc, "signature", "input must not be modified")
}

func TestCanonicalWithout_RejectsNonObject(t *testing.T) {
	_, err := jsonutil.CanonicalWithout([]any{1, 2}, "signature")
	assert.Error(t, err)
}

func TestCanonicalMarshal_InvalidRaw(t *testing.T) {
	_, err := jsonutil.CanonicalMarshal([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestCanonicalMarshal_NoHTMLEscaping(t *testing.T) {
	out, err := jsonutil.CanonicalMarshal(map[string]any{"display_name": "Rock & Roll <live>"})
	require.NoError(t, err)
	assert.Equal(t, `{"display_name":"Rock & Roll <live>"}`, string(out))
}

func TestCanonicalMarshal_RejectsTrailingData(t *testing.T) {
	_, err := jsonutil.CanonicalMarshal([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)
}
