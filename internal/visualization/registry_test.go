package visualization

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDs(t *testing.T) {
	require.Equal(t, []string{"ClickHexbins", "EnumeratedFrequencyTable", "FrequencyTable", "SortedTiles"}, IDs())
}

func TestGet_InvalidID(t *testing.T) {
	_, err := Get("invalid_visualization_id")
	require.EqualError(t, err, "invalid_visualization_id is not a valid visualization id.")

	_, err = New("invalid_visualization_id", AnswerFrequencies, nil, true)
	require.Error(t, err)
}

func TestValidate_OptionNames(t *testing.T) {
	v, err := New("SortedTiles", AnswerFrequencies, map[string]interface{}{}, true)
	require.NoError(t, err)
	require.EqualError(t, v.Validate(),
		"For visualization SortedTiles, expected option names ['header', 'use_percentages']; received names []")
}

func TestValidate_OptionValue(t *testing.T) {
	v, err := New("SortedTiles", AnswerFrequencies, map[string]interface{}{
		"header":          "Pretty Tiles!",
		"use_percentages": "invalid_value",
	}, true)
	require.NoError(t, err)
	require.EqualError(t, v.Validate(), "Expected bool, received invalid_value")
}

func TestValidate_AddressedInfoFlag(t *testing.T) {
	v, err := New("SortedTiles", AnswerFrequencies, map[string]interface{}{
		"header":          "Pretty Tiles!",
		"use_percentages": true,
	}, "invalid_value")
	require.NoError(t, err)
	require.EqualError(t, v.Validate(),
		"For visualization SortedTiles, expected a bool value for addressed_info_is_supported; received invalid_value")
}

func TestValidate_UnknownCalculation(t *testing.T) {
	v, err := New("ClickHexbins", "Nope", nil, false)
	require.NoError(t, err)
	require.EqualError(t, v.Validate(), "'Nope' is not a valid calculation id.")
}

func TestValidate_OKAndToMap(t *testing.T) {
	v, err := New("FrequencyTable", Top10AnswerFrequencies, map[string]interface{}{
		"column_headers": []interface{}{"Answer", "Count"},
	}, true)
	require.NoError(t, err)
	require.NoError(t, v.Validate())

	m := v.ToMap()
	require.Equal(t, "FrequencyTable", m["id"])
	require.Equal(t, Top10AnswerFrequencies, m["calculation_id"])
	require.Equal(t, true, m["addressed_info_is_supported"])
	require.Equal(t, []interface{}{"Answer", "Count"}, m["options"].(map[string]interface{})["column_headers"])
}
