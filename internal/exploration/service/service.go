package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
	"github.com/openlearn/openlearn/backend/go-services/internal/exploration"
	"github.com/openlearn/openlearn/backend/go-services/internal/exploration/repository"
	"github.com/openlearn/openlearn/backend/go-services/internal/snapshot"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrVersionConflict = errors.New("exploration was modified concurrently")
)

type Service struct {
	repo      repository.Repository
	snapshots snapshot.Store
	now       func() time.Time
}

func New(repo repository.Repository, snapshots snapshot.Store) *Service {
	return &Service{repo: repo, snapshots: snapshots, now: time.Now}
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Create saves a new private exploration owned by committerID.
func (s *Service) Create(ctx context.Context, committerID, title, category string) (*exploration.Exploration, error) {
	e := exploration.NewDefault(newID(), title, category)
	if err := e.Validate(false); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	e.Version = 1
	e.CreatedOn = now
	e.LastUpdated = now
	rights := exploration.NewRights(e.ID, committerID)
	if err := s.repo.Create(ctx, e, rights); err != nil {
		return nil, err
	}
	cmds := []map[string]interface{}{{"cmd": exploration.CmdCreateNew, "title": title, "category": category}}
	if err := s.record(ctx, e, committerID, snapshot.CommitTypeCreate, "New exploration created with title '"+title+"'.", cmds); err != nil {
		return nil, err
	}
	sum := exploration.NewSummary(e, rights)
	sum.AddContributionByUser(committerID)
	if err := s.repo.SaveSummary(ctx, sum); err != nil {
		return nil, err
	}
	logger.With("exploration", e.ID, "user", committerID).Infof("created")
	return e, nil
}

func (s *Service) record(ctx context.Context, e *exploration.Exploration, committerID, commitType, message string, cmds []map[string]interface{}) error {
	content, err := e.Serialize()
	if err != nil {
		return err
	}
	return s.snapshots.Record(ctx, snapshot.Commit{
		Kind:        snapshot.KindExploration,
		EntityID:    e.ID,
		Version:     e.Version,
		CommitterID: committerID,
		CommitType:  commitType,
		Message:     message,
		Cmds:        cmds,
		Content:     content,
	})
}

func (s *Service) Get(ctx context.Context, id string) (*exploration.Exploration, error) {
	e, err := s.repo.Get(ctx, id)
	return e, mapNotFound(err)
}

func (s *Service) Rights(ctx context.Context, id string) (*exploration.Rights, error) {
	r, err := s.repo.GetRights(ctx, id)
	return r, mapNotFound(err)
}

func (s *Service) Summary(ctx context.Context, id string) (*exploration.Summary, error) {
	sum, err := s.repo.GetSummary(ctx, id)
	return sum, mapNotFound(err)
}

// Summaries returns the summaries of ids in order, skipping unknown ids.
func (s *Service) Summaries(ctx context.Context, ids []string) ([]*exploration.Summary, error) {
	out := make([]*exploration.Summary, 0, len(ids))
	for _, id := range ids {
		sum, err := s.repo.GetSummary(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

// NonPrivateSummaries returns the summaries of every published exploration.
func (s *Service) NonPrivateSummaries(ctx context.Context) ([]*exploration.Summary, error) {
	all, err := s.repo.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*exploration.Summary, 0, len(all))
	for _, sum := range all {
		if !sum.IsPrivate() {
			out = append(out, sum)
		}
	}
	return out, nil
}

// UpdateWithChangeList applies changeList to the current version and commits
// the result as the next version. Permission and version checks belong to
// the caller.
func (s *Service) UpdateWithChangeList(ctx context.Context, id, committerID string, changeList []map[string]interface{}, message string) (*exploration.Exploration, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rights, err := s.Rights(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(changeList) > 0 && message == "" {
		return nil, &exploration.ValidationError{Msg: "Expected a commit message, received none."}
	}
	applied, err := e.ApplyChanges(changeList)
	if err != nil {
		return nil, err
	}
	if err := e.Validate(!rights.IsPrivate()); err != nil {
		return nil, err
	}

	prev := e.Version
	e.Version++
	e.LastUpdated = s.now().UTC()
	if err := s.repo.Update(ctx, e, prev); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrVersionConflict
		}
		return nil, mapNotFound(err)
	}
	if err := s.record(ctx, e, committerID, snapshot.CommitTypeEdit, message, changes.ToMaps(applied)); err != nil {
		return nil, err
	}
	if err := s.refreshSummary(ctx, e, rights, committerID); err != nil {
		return nil, err
	}
	logger.With("exploration", id, "user", committerID).Infof("updated to version %d", e.Version)
	return e, nil
}

// refreshSummary rebuilds the stored summary from e and r. contributorID may
// be empty when the change is not a content commit.
func (s *Service) refreshSummary(ctx context.Context, e *exploration.Exploration, r *exploration.Rights, contributorID string) error {
	prev, err := s.repo.GetSummary(ctx, e.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	sum := exploration.Refresh(prev, e, r)
	if contributorID != "" {
		sum.AddContributionByUser(contributorID)
	}
	return s.repo.SaveSummary(ctx, sum)
}

func (s *Service) saveRights(ctx context.Context, r *exploration.Rights) error {
	if err := s.repo.SaveRights(ctx, r); err != nil {
		return mapNotFound(err)
	}
	e, err := s.Get(ctx, r.ID)
	if err != nil {
		return err
	}
	return s.refreshSummary(ctx, e, r, "")
}

// Publish makes the exploration public. Only owners may publish and the
// exploration must pass strict validation.
func (s *Service) Publish(ctx context.Context, id, userID string) error {
	r, err := s.Rights(ctx, id)
	if err != nil {
		return err
	}
	if !r.IsOwner(userID) {
		return ErrForbidden
	}
	if !r.IsPrivate() {
		return &exploration.ValidationError{Msg: "This exploration cannot be published."}
	}
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Validate(true); err != nil {
		return err
	}
	r.Status = exploration.StatusPublic
	logger.With("exploration", id, "user", userID).Infof("published")
	return s.saveRights(ctx, r)
}

// Unpublish makes the exploration private again. Callers check that the
// actor is a moderator.
func (s *Service) Unpublish(ctx context.Context, id string) error {
	r, err := s.Rights(ctx, id)
	if err != nil {
		return err
	}
	if r.IsPrivate() {
		return &exploration.ValidationError{Msg: "This exploration cannot be unpublished."}
	}
	r.Status = exploration.StatusPrivate
	logger.With("exploration", id).Infof("unpublished")
	return s.saveRights(ctx, r)
}

// AssignRole grants role to assigneeID.
func (s *Service) AssignRole(ctx context.Context, id, assigneeID, role string) error {
	r, err := s.Rights(ctx, id)
	if err != nil {
		return err
	}
	if err := r.Assign(assigneeID, role); err != nil {
		return err
	}
	logger.With("exploration", id, "user", assigneeID).Infof("assigned role %q", role)
	return s.saveRights(ctx, r)
}

// DeassignRole removes every role userID holds on the exploration.
func (s *Service) DeassignRole(ctx context.Context, id, userID string) error {
	r, err := s.Rights(ctx, id)
	if err != nil {
		return err
	}
	if err := r.Deassign(userID); err != nil {
		return err
	}
	logger.With("exploration", id, "user", userID).Infof("roles removed")
	return s.saveRights(ctx, r)
}

// Rate counts one learner rating between 1 and 5.
func (s *Service) Rate(ctx context.Context, id string, rating int) (*exploration.Summary, error) {
	if rating < 1 || rating > 5 {
		return nil, &exploration.ValidationError{Msg: "Expected a rating 1-5, received " + strconv.Itoa(rating) + "."}
	}
	sum, err := s.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	if sum.Ratings == nil {
		sum.Ratings = exploration.DefaultRatings()
	}
	sum.Ratings[strconv.Itoa(rating)]++
	return sum, s.repo.SaveSummary(ctx, sum)
}

// SetSearchRank stores the rank computed by the ranking job.
func (s *Service) SetSearchRank(ctx context.Context, id string, rank int) error {
	sum, err := s.Summary(ctx, id)
	if err != nil {
		return err
	}
	sum.SearchRank = rank
	return s.repo.SaveSummary(ctx, sum)
}

// CountByOwner returns, per owner id, the number of explorations they own.
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
