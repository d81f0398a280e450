package changes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var testSpec = NewSpec(
	Command{Name: "create_new", Required: []string{"category", "title"}},
	Command{
		Name:     "edit_node_property",
		Required: []string{"exploration_id", "property_name", "new_value"},
		Optional: []string{"old_value"},
	},
	Command{
		Name:          "edit_property",
		Required:      []string{"property_name", "new_value"},
		Optional:      []string{"old_value"},
		AllowedValues: map[string][]string{"property_name": {"title", "category"}},
	},
	Command{Name: "legacy", Deprecated: true},
)

func requireValidationError(t *testing.T, err error, msg string) {
	t.Helper()
	require.Error(t, err)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %T", err)
	require.Equal(t, msg, ve.Msg)
}

func TestValidate_MissingCmd(t *testing.T) {
	_, err := testSpec.Validate(map[string]interface{}{"invalid": "data"})
	requireValidationError(t, err, "Missing cmd key in change dict")
}

func TestValidate_UnknownAndDeprecated(t *testing.T) {
	_, err := testSpec.Validate(map[string]interface{}{"cmd": "invalid"})
	requireValidationError(t, err, "Command invalid is not allowed")

	_, err = testSpec.Validate(map[string]interface{}{"cmd": "legacy"})
	requireValidationError(t, err, "Command legacy is deprecated")
}

func TestValidate_MissingAndExtraAttributes(t *testing.T) {
	_, err := testSpec.Validate(map[string]interface{}{
		"cmd":           "edit_node_property",
		"property_name": "category",
		"old_value":     "old_value",
	})
	requireValidationError(t, err, "The following required attributes are missing: exploration_id, new_value")

	_, err = testSpec.Validate(map[string]interface{}{
		"cmd":            "edit_node_property",
		"exploration_id": "exploration_id",
		"property_name":  "category",
		"old_value":      "old_value",
		"new_value":      "new_value",
		"invalid":        "invalid",
	})
	requireValidationError(t, err, "The following extra attributes are present: invalid")

	_, err = testSpec.Validate(map[string]interface{}{"cmd": "create_new", "title": "t", "bogus": 1})
	requireValidationError(t, err, "The following required attributes are missing: category, The following extra attributes are present: bogus")
}

func TestValidate_AllowedValues(t *testing.T) {
	_, err := testSpec.Validate(map[string]interface{}{
		"cmd":           "edit_property",
		"property_name": "invalid",
		"old_value":     "old_value",
		"new_value":     "new_value",
	})
	requireValidationError(t, err, "Value for property_name in cmd edit_property: invalid is not allowed")
}

func TestValidate_ChangeAccessors(t *testing.T) {
	in := map[string]interface{}{"cmd": "create_new", "category": "category", "title": "title"}
	c, err := testSpec.Validate(in)
	require.NoError(t, err)
	require.Equal(t, "create_new", c.Cmd())
	require.Equal(t, "category", c.String("category"))
	require.Equal(t, "title", c.Get("title"))
	require.False(t, c.Has("objective"))
	require.Equal(t, in, c.ToMap())
}

func TestValidate_DeleteCommitAlwaysAllowed(t *testing.T) {
	c, err := NewSpec().Validate(map[string]interface{}{"cmd": CmdDeleteCommit})
	require.NoError(t, err)
	require.Equal(t, CmdDeleteCommit, c.Cmd())
	require.Equal(t, []string{CmdDeleteCommit}, NewSpec().Commands())
}

func TestChange_IntAndStringSlice(t *testing.T) {
	c := New("swap", map[string]interface{}{"a": float64(2), "b": 2.5, "tags": []interface{}{"x", "y"}, "bad": []interface{}{1}})
	n, err := c.Int("a")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	_, err = c.Int("b")
	require.Error(t, err)

	tags, err := c.StringSlice("tags")
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, tags)
	_, err = c.StringSlice("bad")
	require.Error(t, err)
}

func TestValidateList_StopsAtFirstError(t *testing.T) {
	_, err := testSpec.ValidateList([]map[string]interface{}{
		{"cmd": "create_new", "category": "c", "title": "t"},
		{"cmd": "nope"},
	})
	requireValidationError(t, err, "Command nope is not allowed")
}
