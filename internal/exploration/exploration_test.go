package exploration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	e := NewDefault("e1", "Fractions", "Math")
	require.NoError(t, e.Validate(false))
	require.EqualError(t, e.Validate(true), "An objective must be specified (in the 'Objective' section of the page editor)")

	e.Objective = "o"
	require.NoError(t, e.Validate(true))

	e.InitStateName = "Missing"
	require.EqualError(t, e.Validate(false), "There is no state in [Introduction] corresponding to the exploration's initial state name Missing.")
	e.InitStateName = DefaultInitStateName

	e.LanguageCode = "zz"
	require.EqualError(t, e.Validate(false), "Invalid language_code: zz")
	e.LanguageCode = "en"

	e.States[DefaultInitStateName].RecordedVoiceovers.VoiceoversMapping = map[string]map[string]Voiceover{}
	require.EqualError(t, e.Validate(false), "Expected recorded voiceovers to include content id content")
}

func TestApplyChanges(t *testing.T) {
	e := NewDefault("e1", "Fractions", "Math")

	applied, err := e.ApplyChanges([]map[string]interface{}{
		{"cmd": "add_state", "state_name": "End"},
		{"cmd": "rename_state", "old_state_name": "Introduction", "new_state_name": "Start"},
		{"cmd": "edit_state_property", "state_name": "Start", "property_name": "content",
			"new_value": map[string]interface{}{"content_id": "content", "html": `<p onclick="x()">Hi</p><img src="a.png">`}},
		{"cmd": "edit_state_property", "state_name": "Start", "property_name": "recorded_voiceovers",
			"new_value": map[string]interface{}{"voiceovers_mapping": map[string]interface{}{
				"content": map[string]interface{}{"en": map[string]interface{}{"filename": "a.mp3", "file_size_bytes": 10, "needs_update": false, "duration_secs": 1.5}},
			}}},
		{"cmd": "edit_exploration_property", "property_name": "tags", "new_value": []interface{}{"math"}},
	})
	require.NoError(t, err)
	assert.Len(t, applied, 5)

	assert.Equal(t, "Start", e.InitStateName)
	assert.Equal(t, []string{"End", "Start"}, e.StateNames())
	assert.Equal(t, "<p>Hi</p>", e.States["Start"].Content.HTML)
	assert.Equal(t, 10, e.States["Start"].RecordedVoiceovers.VoiceoversMapping["content"]["en"].FileSizeBytes)
	assert.Equal(t, []string{"math"}, e.Tags)

	_, err = e.ApplyChanges([]map[string]interface{}{{"cmd": "delete_state", "state_name": "Start"}})
	require.EqualError(t, err, "Cannot delete initial state of an exploration.")

	_, err = e.ApplyChanges([]map[string]interface{}{{"cmd": "edit_state_property", "state_name": "Start", "property_name": "bogus", "new_value": 1}})
	require.Error(t, err)

	_, err = e.ApplyChanges([]map[string]interface{}{{"cmd": "add_state", "state_name": "End"}})
	require.EqualError(t, err, "Duplicate state name End")
}

func TestCloneAndSerialize(t *testing.T) {
	e := NewDefault("e1", "T", "C")
	e.Version = 3
	e.LastUpdated = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	cp, err := e.Clone()
	require.NoError(t, err)
	cp.States[DefaultInitStateName].Content.HTML = "changed"
	assert.Equal(t, "", e.States[DefaultInitStateName].Content.HTML)
	assert.Equal(t, 3, cp.Version)
	assert.True(t, cp.LastUpdated.Equal(e.LastUpdated))

	_, err = Deserialize([]byte("{"))
	require.Error(t, err)
}

func TestRights(t *testing.T) {
	r := NewRights("e1", "owner")
	assert.True(t, r.IsPrivate())
	assert.True(t, r.CanEdit("owner"))
	assert.False(t, r.CanView("someone"))

	require.EqualError(t, r.Assign("va", RoleVoiceArtist), "Could not assign voice artist to private activity.")
	require.NoError(t, r.Assign("viewer", RoleViewer))
	assert.True(t, r.CanView("viewer"))
	assert.False(t, r.CanEdit("viewer"))

	r.Status = StatusPublic
	assert.True(t, r.CanView("anyone"))
	require.EqualError(t, r.Assign("x", RoleViewer), "Public explorations can be viewed by anyone.")

	require.NoError(t, r.Assign("va", RoleVoiceArtist))
	assert.True(t, r.CanVoiceover("va"))
	assert.False(t, r.CanEdit("va"))
	require.EqualError(t, r.Assign("va", RoleVoiceArtist), "This user already can voiceover this exploration.")
	require.EqualError(t, r.Assign("owner", RoleVoiceArtist), "This user already can voiceover this exploration.")

	require.NoError(t, r.Assign("va", RoleEditor))
	assert.Empty(t, r.VoiceArtistIDs)
	assert.True(t, r.CanEdit("va"))

	require.EqualError(t, r.Assign("x", "wizard"), "Invalid role: wizard")

	require.NoError(t, r.Deassign("va"))
	assert.False(t, r.CanVoiceover("va"))
	require.EqualError(t, r.Deassign("va"), "This user does not have any role in this exploration.")
}

func TestSummary(t *testing.T) {
	e := NewDefault("e1", "T", "C")
	r := NewRights("e1", "owner")
	s := NewSummary(e, r)
	require.NoError(t, s.Validate())

	s.AddContributionByUser("u2")
	s.AddContributionByUser("admin")
	s.AddContributionByUser("u1")
	s.AddContributionByUser("u2")
	assert.Equal(t, []string{"u1", "u2"}, s.ContributorIDs)
	assert.Equal(t, 2, s.ContributorsSummary["u2"])

	s.Ratings["4"] = 3
	s.SearchRank = 35
	e.Title = "New"
	r.Status = StatusPublic
	next := Refresh(s, e, r)
	assert.Equal(t, "New", next.Title)
	assert.Equal(t, 3, next.Ratings["4"])
	assert.Equal(t, 35, next.SearchRank)
	assert.Equal(t, []string{"u1", "u2"}, next.ContributorIDs)
	assert.False(t, next.IsPrivate())

	d := next.ToDict()
	assert.Equal(t, "exploration", d["activity_type"])
	assert.Equal(t, "New", d["title"])

	next.Ratings["6"] = 1
	require.EqualError(t, next.Validate(), "Invalid rating key: 6")
	next.Status = "odd"
	require.EqualError(t, next.Validate(), "Invalid status: odd")
}
