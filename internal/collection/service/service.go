package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
	"github.com/openlearn/openlearn/backend/go-services/internal/collection"
	"github.com/openlearn/openlearn/backend/go-services/internal/collection/repository"
	"github.com/openlearn/openlearn/backend/go-services/internal/snapshot"
	"github.com/openlearn/openlearn/backend/go-services/internal/storage"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrVersionMismatch = errors.New("version mismatch")
)

// VersionError reports an update against a stale version.
type VersionError struct {
	Expected, Actual int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("Trying to update version %d of collection from version %d, which is too old. Please reload the page and try again.", e.Actual, e.Expected)
}

func (e *VersionError) Unwrap() error { return ErrVersionMismatch }

// Export is the result of ExportYAML.
type Export struct {
	YAML string `json:"yaml"`
	// URL is a presigned download link, empty when no object store is configured.
	URL string `json:"url,omitempty"`
}

type Service struct {
	repo       repository.Repository
	snapshots  snapshot.Store
	objects    storage.ObjectStore
	presignTTL time.Duration
	now        func() time.Time
}

// New wires the service. objects may be nil.
func New(repo repository.Repository, snapshots snapshot.Store, objects storage.ObjectStore, presignTTL time.Duration) *Service {
	return &Service{repo: repo, snapshots: snapshots, objects: objects, presignTTL: presignTTL, now: time.Now}
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *Service) Get(ctx context.Context, id string) (*collection.Collection, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return collection.FromModel(m)
}

// Create saves a new private collection owned by committerID.
func (s *Service) Create(ctx context.Context, committerID, title, category, objective string) (*collection.Collection, error) {
	c := collection.NewDefault(newID(), title, category, objective)
	cmds := []map[string]interface{}{{"cmd": collection.CmdCreateNew, "title": title, "category": category}}
	if err := s.save(ctx, committerID, c, "New collection created.", cmds); err != nil {
		return nil, err
	}
	return c, nil
}

// ImportYAML creates a collection from YAML of any supported schema version.
func (s *Service) ImportYAML(ctx context.Context, committerID, text string) (*collection.Collection, error) {
	c, err := collection.FromYAML(newID(), text)
	if err != nil {
		return nil, err
	}
	cmds := []map[string]interface{}{{"cmd": collection.CmdCreateNew, "title": c.Title, "category": c.Category}}
	if err := s.save(ctx, committerID, c, "New collection created from YAML file.", cmds); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, committerID string, c *collection.Collection, message string, cmds []map[string]interface{}) error {
	if err := c.Validate(false); err != nil {
		return err
	}
	now := s.now().UTC()
	c.Version = 1
	c.CreatedOn = now
	c.LastUpdated = now
	if err := s.repo.Create(ctx, c.ToModel()); err != nil {
		return err
	}
	if err := s.record(ctx, c, committerID, snapshot.CommitTypeCreate, message, cmds); err != nil {
		return err
	}
	sum := collection.NewSummary(c, collection.StatusPrivate, []string{committerID})
	sum.AddContributionByUser(committerID)
	if err := s.repo.SaveSummary(ctx, sum); err != nil {
		return err
	}
	logger.With("collection", c.ID, "user", committerID).Infof("created")
	return nil
}

func (s *Service) record(ctx context.Context, c *collection.Collection, committerID, commitType, message string, cmds []map[string]interface{}) error {
	content, err := c.Serialize()
	if err != nil {
		return err
	}
	return s.snapshots.Record(ctx, snapshot.Commit{
		Kind:        snapshot.KindCollection,
		EntityID:    c.ID,
		Version:     c.Version,
		CommitterID: committerID,
		CommitType:  commitType,
		Message:     message,
		Cmds:        cmds,
		Content:     content,
	})
}

// Update applies changeList on top of expectedVersion and commits the result
// as the next version.
func (s *Service) Update(ctx context.Context, id, committerID string, changeList []map[string]interface{}, message string, expectedVersion int) (*collection.Collection, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sum, err := s.repo.GetSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sum.IsEditableBy(committerID) {
		return nil, ErrForbidden
	}
	if expectedVersion != c.Version {
		return nil, &VersionError{Expected: expectedVersion, Actual: c.Version}
	}
	if len(changeList) > 0 && message == "" {
		return nil, &collection.ValidationError{Msg: "Expected a commit message, received none."}
	}

	applied, err := c.ApplyChanges(changeList)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(!sum.IsPrivate()); err != nil {
		return nil, err
	}

	prev := c.Version
	c.Version++
	c.LastUpdated = s.now().UTC()
	if err := s.repo.Update(ctx, c.ToModel(), prev); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, &VersionError{Expected: expectedVersion, Actual: prev + 1}
		}
		return nil, err
	}
	if err := s.record(ctx, c, committerID, snapshot.CommitTypeEdit, message, changes.ToMaps(applied)); err != nil {
		return nil, err
	}

	updated := collection.NewSummary(c, sum.Status, sum.OwnerIDs)
	updated.EditorIDs = sum.EditorIDs
	updated.ViewerIDs = sum.ViewerIDs
	updated.CommunityOwned = sum.CommunityOwned
	updated.ContributorsSummary = sum.ContributorsSummary
	updated.AddContributionByUser(committerID)
	if err := s.repo.SaveSummary(ctx, updated); err != nil {
		return nil, err
	}
	return c, nil
}

// SetStatus publishes or unpublishes a collection. Publishing requires the
// collection to pass strict validation.
func (s *Service) SetStatus(ctx context.Context, id, userID, status string) error {
	sum, err := s.repo.GetSummary(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !sum.IsEditableBy(userID) {
		return ErrForbidden
	}
	if status == collection.StatusPublic {
		c, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := c.Validate(true); err != nil {
			return err
		}
	}
	sum.Status = status
	return s.repo.SaveSummary(ctx, sum)
}

// ExportYAML renders the collection as YAML and, when an object store is
// configured, uploads it and returns a presigned link.
func (s *Service) ExportYAML(ctx context.Context, id string) (*Export, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	text, err := c.ToYAML()
	if err != nil {
		return nil, err
	}
	out := &Export{YAML: text}
	if s.objects == nil {
		return out, nil
	}
	key := fmt.Sprintf("exports/collections/%s/v%d.yaml", c.ID, c.Version)
	obj := storage.Object{
		Key:         key,
		Body:        strings.NewReader(text),
		Size:        int64(len(text)),
		ContentType: "application/x-yaml",
		Filename:    fmt.Sprintf("%s-v%d.yaml", c.ID, c.Version),
	}
	if err := s.objects.Put(ctx, obj); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}
	if out.URL, err = s.objects.SignedURL(ctx, key, s.presignTTL); err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}
	return out, nil
}

// Summaries lists public collections and the ones userID has a role in.
func (s *Service) Summaries(ctx context.Context, userID string) ([]*collection.Summary, error) {
	all, err := s.repo.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*collection.Summary, 0, len(all))
	for _, sum := range all {
		if !sum.IsPrivate() || (userID != "" && sum.DoesUserHaveAnyRole(userID)) {
			out = append(out, sum)
		}
	}
	return out, nil
}

// Summary returns the stored summary of one collection.
func (s *Service) Summary(ctx context.Context, id string) (*collection.Summary, error) {
	sum, err := s.repo.GetSummary(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return sum, err
}

// CountByOwner returns, per owner id, the number of collections they own.
func (s *Service) CountByOwner(ctx context.Context) (map[string]int, error) {
	all, err := s.repo.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, sum := range all {
		for _, o := range sum.OwnerIDs {
			out[o]++
		}
	}
	return out, nil
}
