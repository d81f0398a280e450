// Package voiceartist lets voice artists record audio for published
// explorations. Voice artists may only change recorded voiceovers; everything
// else in a change list needs edit rights.
package voiceartist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/openlearn/openlearn/backend/go-services/internal/exploration"
	expservice "github.com/openlearn/openlearn/backend/go-services/internal/exploration/service"
	"github.com/openlearn/openlearn/backend/go-services/internal/storage"
	"github.com/openlearn/openlearn/backend/go-services/internal/users"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
	"github.com/openlearn/openlearn/backend/go-services/pkg/metrics"
)

var (
	ErrNotFound     = errors.New("exploration not found")
	ErrUnauthorized = errors.New("You do not have permissions to save this exploration.")
	// ErrNotVoiceoverChange rejects voice artists' change lists that touch
	// anything but recorded voiceovers.
	ErrNotVoiceoverChange = errors.New("Voice artist does not have permission to make some changes in the change list.")
	ErrUnknownUser        = errors.New("Sorry, we could not find the specified user.")
	ErrStorageDisabled    = errors.New("object storage is not configured")
)

// IsVoiceArtistChangeList reports whether every change only edits a state's
// recorded voiceovers. An empty list qualifies.
func IsVoiceArtistChangeList(changeList []map[string]interface{}) bool {
	for _, ch := range changeList {
		if ch["cmd"] != exploration.CmdEditStateProperty || ch["property_name"] != exploration.StatePropertyRecordedVoiceovers {
			return false
		}
	}
	return true
}

type Service struct {
	explorations *expservice.Service
	users        *users.Service
	drafts       DraftStore
	objects      storage.ObjectStore
	presignTTL   time.Duration
	now          func() time.Time
}

// New builds the service. objects may be nil, in which case uploads fail
// with ErrStorageDisabled.
func New(explorations *expservice.Service, u *users.Service, drafts DraftStore, objects storage.ObjectStore, presignTTL time.Duration) *Service {
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &Service{explorations: explorations, users: u, drafts: drafts, objects: objects, presignTTL: presignTTL, now: time.Now}
}

func (s *Service) load(ctx context.Context, expID string) (*exploration.Exploration, *exploration.Rights, error) {
	e, err := s.explorations.Get(ctx, expID)
	if errors.Is(err, expservice.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	r, err := s.explorations.Rights(ctx, expID)
	if err != nil {
		return nil, nil, err
	}
	return e, r, nil
}

// checkChangePermission lets editors make any change and voice artists make
// voiceover changes only.
func checkChangePermission(r *exploration.Rights, userID string, changeList []map[string]interface{}, endpoint string) error {
	if r.CanEdit(userID) {
		return nil
	}
	if !r.CanVoiceover(userID) {
		return ErrUnauthorized
	}
	if !IsVoiceArtistChangeList(changeList) {
		metrics.VoiceArtistRejections.WithLabelValues(endpoint).Inc()
		return ErrNotVoiceoverChange
	}
	return nil
}

func versionMismatch(expVersion, payloadVersion int) error {
	return &exploration.ValidationError{Msg: fmt.Sprintf(
		"Trying to update version %d of exploration from version %d, which is not possible. Please reload the page and try again.",
		expVersion, payloadVersion)}
}

// SaveRequest is the body of a commit from the exploration editor.
type SaveRequest struct {
	Version       *int                     `json:"version"`
	CommitMessage string                   `json:"commit_message"`
	ChangeList    []map[string]interface{} `json:"change_list"`
}

// SaveChanges commits req as the next version of expID and discards the
// user's draft. It returns the editor view of the updated exploration.
func (s *Service) SaveChanges(ctx context.Context, userID, expID string, req SaveRequest) (map[string]interface{}, error) {
	if req.Version == nil {
		return nil, &exploration.ValidationError{Msg: "Invalid POST request: a version must be specified."}
	}
	e, r, err := s.load(ctx, expID)
	if err != nil {
		return nil, err
	}
	if e.Version != *req.Version {
		return nil, versionMismatch(e.Version, *req.Version)
	}
	if err := checkChangePermission(r, userID, req.ChangeList, "data"); err != nil {
		return nil, err
	}
	updated, err := s.explorations.UpdateWithChangeList(ctx, expID, userID, req.ChangeList, req.CommitMessage)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Discard(ctx, userID, expID); err != nil {
		logger.With("exploration", expID, "user", userID).Warnf("discard draft after save: %v", err)
	}
	return s.editorData(ctx, userID, updated)
}

// editorData is the exploration dict plus the user's draft state.
func (s *Service) editorData(ctx context.Context, userID string, e *exploration.Exploration) (map[string]interface{}, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	out["exploration_id"] = e.ID
	draft, err := s.drafts.Get(ctx, userID, e.ID)
	if err != nil {
		return nil, err
	}
	out["draft_change_list_id"] = 0
	out["is_version_of_draft_valid"] = nil
	out["draft_changes"] = nil
	if draft != nil {
		out["draft_change_list_id"] = draft.ID
		if !draft.IsEmpty() {
			out["draft_changes"] = draft.ChangeList
			out["is_version_of_draft_valid"] = draft.ExpVersion == e.Version
		}
	}
	tutorial := false
	if u, err := s.users.GetBySub(ctx, userID); err == nil && u != nil {
		tutorial = !u.TranslationTutorialStarted
	}
	out["show_translation_tutorial_on_load"] = tutorial
	return out, nil
}

// AutosaveResult is returned after a draft save.
type AutosaveResult struct {
	DraftChangeListID     int  `json:"draft_change_list_id"`
	IsVersionOfDraftValid bool `json:"is_version_of_draft_valid"`
	ChangesAreMergeable   bool `json:"changes_are_mergeable"`
}

// AutosaveDraft stores changeList as the user's draft for expID without
// committing it. The draft is saved even when version is stale so it can be
// recovered later.
func (s *Service) AutosaveDraft(ctx context.Context, userID, expID string, changeList []map[string]interface{}, version int) (*AutosaveResult, error) {
	e, r, err := s.load(ctx, expID)
	if err != nil {
		return nil, err
	}
	if err := checkChangePermission(r, userID, changeList, "autosave_draft"); err != nil {
		metrics.DraftSaves.WithLabelValues("rejected").Inc()
		return nil, err
	}

	draft, err := s.drafts.Get(ctx, userID, expID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if draft != nil && !draft.IsEmpty() && draft.LastUpdated.After(now) {
		metrics.DraftSaves.WithLabelValues("skipped").Inc()
		return s.autosaveResult(e, draft.ID, version, changeList), nil
	}

	scratch, err := e.Clone()
	if err != nil {
		return nil, err
	}
	if _, err := scratch.ApplyChanges(changeList); err != nil {
		metrics.DraftSaves.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if err := scratch.Validate(false); err != nil {
		metrics.DraftSaves.WithLabelValues("invalid").Inc()
		return nil, err
	}

	// The ID is allocated inside the update so concurrent saves get distinct IDs.
	skippedID := 0
	next, err := s.drafts.Update(ctx, userID, expID, func(cur *Draft) (*Draft, error) {
		if cur != nil && !cur.IsEmpty() && cur.LastUpdated.After(now) {
			skippedID = cur.ID
			return nil, nil
		}
		d := &Draft{ChangeList: changeList, ExpVersion: version, LastUpdated: now, ID: 1}
		if cur != nil {
			d.ID = cur.ID + 1
		}
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	if next == nil {
		metrics.DraftSaves.WithLabelValues("skipped").Inc()
		return s.autosaveResult(e, skippedID, version, changeList), nil
	}
	metrics.DraftSaves.WithLabelValues("saved").Inc()
	return s.autosaveResult(e, next.ID, version, changeList), nil
}

func (s *Service) autosaveResult(e *exploration.Exploration, draftID, version int, changeList []map[string]interface{}) *AutosaveResult {
	return &AutosaveResult{
		DraftChangeListID:     draftID,
		IsVersionOfDraftValid: version == e.Version,
		ChangesAreMergeable:   ChangesAreMergeable(e, version, changeList),
	}
}

// ChangesAreMergeable reports whether a change list made against version
// can still be applied to e. Lists made against an older version merge only
// when they edit state properties of states that still exist.
func ChangesAreMergeable(e *exploration.Exploration, version int, changeList []map[string]interface{}) bool {
	switch {
	case version == e.Version:
		return true
	case version > e.Version:
		return false
	}
	for _, ch := range changeList {
		if ch["cmd"] != exploration.CmdEditStateProperty {
			return false
		}
		name, _ := ch["state_name"].(string)
		if _, ok := e.States[name]; !ok {
			return false
		}
	}
	return true
}

// DiscardDraft clears the user's draft for expID.
func (s *Service) DiscardDraft(ctx context.Context, userID, expID string) error {
	if _, _, err := s.load(ctx, expID); err != nil {
		return err
	}
	return s.drafts.Discard(ctx, userID, expID)
}

// DeleteExpiredDrafts is run by the cleanup cron.
func (s *Service) DeleteExpiredDrafts(ctx context.Context) (int, error) {
	return s.drafts.DeleteExpired(ctx)
}

// StartedTranslationTutorial records that userID opened the translation
// tutorial from an exploration they can see.
func (s *Service) StartedTranslationTutorial(ctx context.Context, userID, expID string) error {
	_, r, err := s.load(ctx, expID)
	if err != nil {
		return err
	}
	if !r.CanView(userID) {
		return ErrNotFound
	}
	return s.users.RecordTranslationTutorialStarted(ctx, userID)
}

func (s *Service) userIDFor(ctx context.Context, username string) (string, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUnknownUser
	}
	return u.Sub, nil
}

// AssignVoiceArtist gives username the voice artist role on expID.
func (s *Service) AssignVoiceArtist(ctx context.Context, expID, username string) error {
	if _, _, err := s.load(ctx, expID); err != nil {
		return err
	}
	id, err := s.userIDFor(ctx, username)
	if err != nil {
		return err
	}
	return s.explorations.AssignRole(ctx, expID, id, exploration.RoleVoiceArtist)
}

// DeassignVoiceArtist removes username's role on expID.
func (s *Service) DeassignVoiceArtist(ctx context.Context, expID, username string) error {
	if _, _, err := s.load(ctx, expID); err != nil {
		return err
	}
	id, err := s.userIDFor(ctx, username)
	if err != nil {
		return err
	}
	return s.explorations.DeassignRole(ctx, expID, id)
}

// UploadResult locates an uploaded voiceover.
type UploadResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// UploadVoiceover stores an audio file for expID and returns a presigned URL
// for it. Only users who may voiceover the exploration can upload.
func (s *Service) UploadVoiceover(ctx context.Context, userID, expID, filename string, body io.Reader, size int64, contentType string) (*UploadResult, error) {
	if s.objects == nil {
		return nil, ErrStorageDisabled
	}
	_, r, err := s.load(ctx, expID)
	if err != nil {
		return nil, err
	}
	if !r.CanVoiceover(userID) {
		return nil, ErrUnauthorized
	}
	name := path.Base(filename)
	if name == "." || name == "/" || name == "" {
		return nil, &exploration.ValidationError{Msg: "No audio supplied"}
	}
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	key := fmt.Sprintf("voiceovers/%s/%s-%s", expID, uuid.NewString(), name)
	if err := s.objects.Put(ctx, storage.Object{Key: key, Body: body, Size: size, ContentType: contentType, Filename: name}); err != nil {
		return nil, err
	}
	url, err := s.objects.SignedURL(ctx, key, s.presignTTL)
	if err != nil {
		return nil, err
	}
	logger.With("exploration", expID, "user", userID).Infof("uploaded voiceover %s", key)
	return &UploadResult{Key: key, URL: url}, nil
}
