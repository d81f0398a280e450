package voiceartist

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearn/openlearn/backend/go-services/internal/exploration"
	"github.com/openlearn/openlearn/backend/go-services/internal/exploration/repository"
	expservice "github.com/openlearn/openlearn/backend/go-services/internal/exploration/service"
	"github.com/openlearn/openlearn/backend/go-services/internal/models"
	"github.com/openlearn/openlearn/backend/go-services/internal/snapshot"
	"github.com/openlearn/openlearn/backend/go-services/internal/storage"
	"github.com/openlearn/openlearn/backend/go-services/internal/users"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

const recordedVoiceovers = `{
	"voiceovers_mapping": {
		"ca_placeholder_0": {},
		"content": {"en": {"filename": "testFile.mp3", "file_size_bytes": 12200, "needs_update": false, "duration_secs": 4.5}},
		"default_outcome": {}
	}
}`

var (
	validChangeList = `[{"cmd":"edit_state_property","state_name":"Introduction","property_name":"recorded_voiceovers","old_value":null,"new_value":` + recordedVoiceovers + `}]`
	titleChangeList = `[{"cmd":"edit_exploration_property","property_name":"title","old_value":null,"new_value":"New title"}]`
)

// headerAuth trusts X-User and X-Roles; tests only.
func headerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.GetHeader("X-User")
		if user == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		roles := []interface{}{}
		if r := c.GetHeader("X-Roles"); r != "" {
			for _, role := range strings.Split(r, ",") {
				roles = append(roles, role)
			}
		}
		c.Set(middleware.ClaimsKey, map[string]interface{}{"sub": user, "roles": roles})
		c.Next()
	}
}

type fixture struct {
	router  *gin.Engine
	svc     *Service
	exps    *expservice.Service
	users   *users.Service
	drafts  *MemoryDraftStore
	objects *storage.MemoryStorage
	expID   string
}

// newFixture publishes an exploration owned by "owner" and makes "artist" a
// voice artist on it. Its version is 2.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	exps := expservice.New(repository.NewMemoryRepo(), snapshot.NewMemoryStore())
	uSvc := users.NewService(users.NewMemoryUserRepository())
	for sub, name := range map[string]string{"owner": "owner", "artist": "artist", "artist2": "artist2", "vadmin": "vadmin"} {
		_, err := uSvc.UpsertFromClaims(ctx, map[string]interface{}{"sub": sub, "preferred_username": name})
		require.NoError(t, err)
	}
	require.NoError(t, uSvc.AddRole(ctx, "vadmin", models.RoleVoiceoverAdmin))

	e, err := exps.Create(ctx, "owner", "Fractions", "Math")
	require.NoError(t, err)
	_, err = exps.UpdateWithChangeList(ctx, e.ID, "owner", []map[string]interface{}{
		{"cmd": "edit_exploration_property", "property_name": "objective", "new_value": "Add fractions"},
	}, "Set objective")
	require.NoError(t, err)
	require.NoError(t, exps.Publish(ctx, e.ID, "owner"))
	require.NoError(t, exps.AssignRole(ctx, e.ID, "artist", exploration.RoleVoiceArtist))

	drafts := NewMemoryDraftStore(time.Hour)
	objects := storage.NewMemoryStorage()
	svc := New(exps, uSvc, drafts, objects, time.Minute)
	r := gin.New()
	RegisterRoutes(r, svc, headerAuth())
	return &fixture{router: r, svc: svc, exps: exps, users: uSvc, drafts: drafts, objects: objects, expID: e.ID}
}

func (f *fixture) do(method, path, user, roles, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", user)
	if roles != "" {
		req.Header.Set("X-Roles", roles)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSaveChanges(t *testing.T) {
	f := newFixture(t)
	path := "/createhandler/data/" + f.expID

	w := f.do(http.MethodPut, path, "artist", "", `{"commit_message":"m","change_list":`+validChangeList+`}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid POST request: a version must be specified.", decode(t, w)["error"])

	w = f.do(http.MethodPut, path, "artist", "", `{"version":3,"commit_message":"m","change_list":`+validChangeList+`}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Trying to update version 2 of exploration from version 3, which is not possible. Please reload the page and try again.", decode(t, w)["error"])

	w = f.do(http.MethodPut, path, "artist", "", `{"version":2,"commit_message":"Changed exp objective","change_list":[{"cmd":"edit_exploration_property","property_name":"objective","new_value":"the objective"}]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"status_code":400,"error":"Voice artist does not have permission to make some changes in the change list."}`, w.Body.String())

	w = f.do(http.MethodPut, path, "stranger", "", `{"version":2,"commit_message":"m","change_list":`+validChangeList+`}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPut, path, "artist", "", `{"version":2,"commit_message":"Translated first state content","change_list":`+validChangeList+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode(t, w)
	assert.Equal(t, float64(3), got["version"])
	assert.Equal(t, f.expID, got["exploration_id"])
	assert.Equal(t, true, got["show_translation_tutorial_on_load"])
	rv, err := json.Marshal(got["states"].(map[string]interface{})["Introduction"].(map[string]interface{})["recorded_voiceovers"])
	require.NoError(t, err)
	assert.JSONEq(t, recordedVoiceovers, string(rv))

	// editors are not limited to voiceovers
	w = f.do(http.MethodPut, path, "owner", "", `{"version":3,"commit_message":"m","change_list":`+titleChangeList+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "New title", decode(t, w)["title"])
}

func seedDraft(t *testing.T, f *fixture) {
	t.Helper()
	var cl []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(validChangeList), &cl))
	require.NoError(t, f.drafts.Save(context.Background(), "artist", f.expID, &Draft{
		ChangeList:  cl,
		ExpVersion:  2,
		ID:          1,
		LastUpdated: time.Date(2015, 3, 16, 0, 0, 0, 0, time.UTC),
	}))
}

func storedDraft(t *testing.T, f *fixture) *Draft {
	t.Helper()
	d, err := f.drafts.Get(context.Background(), "artist", f.expID)
	require.NoError(t, err)
	require.NotNil(t, d)
	return d
}

func TestAutosaveDraft_VersionValid(t *testing.T) {
	f := newFixture(t)
	seedDraft(t, f)

	w := f.do(http.MethodPut, "/createhandler/autosave_draft/"+f.expID, "artist", "", `{"version":2,"change_list":`+validChangeList+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode(t, w)
	assert.Equal(t, float64(2), got["draft_change_list_id"])
	assert.Equal(t, true, got["is_version_of_draft_valid"])
	assert.Equal(t, true, got["changes_are_mergeable"])

	d := storedDraft(t, f)
	assert.Equal(t, 2, d.ExpVersion)
	cl, err := json.Marshal(d.ChangeList)
	require.NoError(t, err)
	assert.JSONEq(t, validChangeList, string(cl))
}

func TestAutosaveDraft_RejectsNonVoiceoverChanges(t *testing.T) {
	f := newFixture(t)
	seedDraft(t, f)

	w := f.do(http.MethodPut, "/createhandler/autosave_draft/"+f.expID, "artist", "", `{"version":2,"change_list":`+titleChangeList+`}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"status_code":400,"error":"Voice artist does not have permission to make some changes in the change list."}`, w.Body.String())

	d := storedDraft(t, f)
	assert.Equal(t, 1, d.ID)
	assert.Equal(t, "recorded_voiceovers", d.ChangeList[0]["property_name"])
}

func TestAutosaveDraft_VersionInvalid(t *testing.T) {
	f := newFixture(t)
	seedDraft(t, f)

	w := f.do(http.MethodPut, "/createhandler/autosave_draft/"+f.expID, "artist", "", `{"version":10,"change_list":`+validChangeList+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode(t, w)
	assert.Equal(t, float64(2), got["draft_change_list_id"])
	assert.Equal(t, false, got["is_version_of_draft_valid"])
	assert.Equal(t, false, got["changes_are_mergeable"])
	assert.Equal(t, 10, storedDraft(t, f).ExpVersion)
}

func TestAutosaveDraft_FirstSaveAndInvalidContent(t *testing.T) {
	f := newFixture(t)

	bad := `[{"cmd":"edit_state_property","state_name":"Introduction","property_name":"recorded_voiceovers","new_value":{"voiceovers_mapping":{"content":{"xx":{"filename":"a.mp3","file_size_bytes":1,"needs_update":false,"duration_secs":1}}}}}]`
	w := f.do(http.MethodPut, "/createhandler/autosave_draft/"+f.expID, "artist", "", `{"version":2,"change_list":`+bad+`}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid language_code: xx", decode(t, w)["error"])

	w = f.do(http.MethodPut, "/createhandler/autosave_draft/"+f.expID, "artist", "", `{"version":2,"change_list":`+validChangeList+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["draft_change_list_id"])
}

func TestAutosaveDraft_ConcurrentSavesGetDistinctIDs(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }

	const workers = 10
	ids := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var cl []map[string]interface{}
			if !assert.NoError(t, json.Unmarshal([]byte(validChangeList), &cl)) {
				return
			}
			res, err := f.svc.AutosaveDraft(context.Background(), "artist", f.expID, cl, 2)
			if assert.NoError(t, err) {
				ids <- res.DraftChangeListID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate draft id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
	assert.Equal(t, workers, storedDraft(t, f).ID)
}

func TestDiscardDraft(t *testing.T) {
	f := newFixture(t)
	seedDraft(t, f)

	w := f.do(http.MethodPost, "/createhandler/autosave_draft/"+f.expID, "artist", "", `{}`)
	require.Equal(t, http.StatusOK, w.Code)

	d := storedDraft(t, f)
	assert.Nil(t, d.ChangeList)
	assert.Zero(t, d.ExpVersion)
	assert.True(t, d.LastUpdated.IsZero())
	assert.Equal(t, 1, d.ID)
}

func TestStartedTranslationTutorial(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/createhandler/started_translation_tutorial_event/"+f.expID, "artist", "", `{}`)
	require.Equal(t, http.StatusOK, w.Code)

	u, err := f.users.GetBySub(context.Background(), "artist")
	require.NoError(t, err)
	assert.True(t, u.TranslationTutorialStarted)

	w = f.do(http.MethodPost, "/createhandler/started_translation_tutorial_event/missing", "artist", "", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVoiceArtistManagement(t *testing.T) {
	f := newFixture(t)
	path := "/voice_artist_management_handler/exploration/" + f.expID
	admin := models.RoleVoiceoverAdmin

	w := f.do(http.MethodPost, path, "owner", "", `{"username":"artist2"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, path, "vadmin", admin, `{"username":"random_user"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Sorry, we could not find the specified user.", decode(t, w)["error"])

	w = f.do(http.MethodPost, path, "vadmin", admin, `{"username":"artist2"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rights, err := f.exps.Rights(context.Background(), f.expID)
	require.NoError(t, err)
	assert.True(t, rights.CanVoiceover("artist2"))

	w = f.do(http.MethodDelete, path+"?voice_artist=random_user", "vadmin", admin, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Sorry, we could not find the specified user.", decode(t, w)["error"])

	w = f.do(http.MethodDelete, path+"?voice_artist=artist2", "vadmin", admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	rights, err = f.exps.Rights(context.Background(), f.expID)
	require.NoError(t, err)
	assert.False(t, rights.CanVoiceover("artist2"))
}

func TestUploadVoiceover(t *testing.T) {
	f := newFixture(t)

	upload := func(user string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("raw_audio_file", "intro.mp3")
		require.NoError(t, err)
		_, _ = part.Write([]byte("ID3 fake audio"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/createhandler/voiceover_upload/"+f.expID, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, upload("stranger").Code)

	w := upload("artist")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := decode(t, w)
	key := got["key"].(string)
	assert.True(t, strings.HasPrefix(key, "voiceovers/"+f.expID+"/"))
	assert.True(t, strings.HasSuffix(key, "-intro.mp3"))
	assert.True(t, strings.HasPrefix(got["url"].(string), "memory://"))

	rc, err := f.objects.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	ct, cd := f.objects.Header(key)
	assert.Equal(t, "application/octet-stream", ct)
	assert.Equal(t, "attachment; filename=intro.mp3", cd)
}

func TestIsVoiceArtistChangeList(t *testing.T) {
	assert.True(t, IsVoiceArtistChangeList(nil))
	assert.True(t, IsVoiceArtistChangeList([]map[string]interface{}{
		{"cmd": "edit_state_property", "property_name": "recorded_voiceovers"},
	}))
	assert.False(t, IsVoiceArtistChangeList([]map[string]interface{}{
		{"cmd": "edit_state_property", "property_name": "recorded_voiceovers"},
		{"cmd": "edit_state_property", "property_name": "content"},
	}))
	assert.False(t, IsVoiceArtistChangeList([]map[string]interface{}{{"cmd": "add_state", "state_name": "x"}}))
}

func TestChangesAreMergeable(t *testing.T) {
	e := exploration.NewDefault("e", "t", "c")
	e.Version = 5
	edit := []map[string]interface{}{{"cmd": "edit_state_property", "state_name": "Introduction"}}

	assert.True(t, ChangesAreMergeable(e, 5, []map[string]interface{}{{"cmd": "add_state"}}))
	assert.False(t, ChangesAreMergeable(e, 6, edit))
	assert.True(t, ChangesAreMergeable(e, 3, edit))
	assert.False(t, ChangesAreMergeable(e, 3, []map[string]interface{}{{"cmd": "edit_state_property", "state_name": "Gone"}}))
	assert.False(t, ChangesAreMergeable(e, 3, []map[string]interface{}{{"cmd": "rename_state"}}))
}
