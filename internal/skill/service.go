package skill

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
	"github.com/openlearn/openlearn/backend/go-services/internal/snapshot"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
)

type Service struct {
	repo      Repository
	snapshots snapshot.Store
	questions QuestionIndex
}

func NewService(repo Repository, snapshots snapshot.Store, questions QuestionIndex) *Service {
	return &Service{repo: repo, snapshots: snapshots, questions: questions}
}

func (s *Service) Questions() QuestionIndex { return s.questions }

func (s *Service) record(ctx context.Context, sk *Skill, committerID, commitType, message string, cmds []map[string]interface{}) error {
	content, err := json.Marshal(sk)
	if err != nil {
		return err
	}
	return s.snapshots.Record(ctx, snapshot.Commit{
		Kind:        snapshot.KindSkill,
		EntityID:    sk.ID,
		Version:     sk.Version,
		CommitterID: committerID,
		CommitType:  commitType,
		Message:     message,
		Cmds:        cmds,
		Content:     content,
	})
}

func (s *Service) Create(ctx context.Context, committerID, description string) (*Skill, error) {
	sk := New(strings.ReplaceAll(uuid.NewString(), "-", "")[:12], description)
	if err := sk.Validate(); err != nil {
		return nil, err
	}
	sk.Version = 1
	if err := s.repo.Create(ctx, sk); err != nil {
		return nil, err
	}
	cmds := []map[string]interface{}{{"cmd": CmdCreateNew}}
	if err := s.record(ctx, sk, committerID, snapshot.CommitTypeCreate, "New skill created.", cmds); err != nil {
		return nil, err
	}
	logger.With("skill", sk.ID, "user", committerID).Infof("created")
	return sk, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Skill, error) {
	return s.repo.Get(ctx, id)
}

// Update applies changeList to version expectedVersion of the skill and
// records the result as the next version.
func (s *Service) Update(ctx context.Context, id, committerID string, changeList []map[string]interface{}, message string, expectedVersion int) (*Skill, error) {
	sk, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sk.Version != expectedVersion {
		return nil, validationErrorf("Trying to update version %d of skill from version %d, which is too old. Please reload the page and try again.", sk.Version, expectedVersion)
	}
	if message == "" {
		return nil, validationErrorf("Expected a commit message, received none.")
	}
	applied, err := sk.ApplyChanges(changeList)
	if err != nil {
		return nil, err
	}
	if err := sk.Validate(); err != nil {
		return nil, err
	}
	prev := sk.Version
	sk.Version++
	if err := s.repo.Update(ctx, sk, prev); err != nil {
		return nil, err
	}
	if err := s.record(ctx, sk, committerID, snapshot.CommitTypeEdit, message, changes.ToMaps(applied)); err != nil {
		return nil, err
	}
	return sk, nil
}

// LinkQuestions attaches questions to an existing skill.
func (s *Service) LinkQuestions(ctx context.Context, skillID string, questionIDs []string) error {
	if _, err := s.repo.Get(ctx, skillID); err != nil {
		return err
	}
	return s.questions.Link(ctx, skillID, questionIDs...)
}

// AuditCommits validates the recorded commit commands of every skill.
func (s *Service) AuditCommits(ctx context.Context) ([]CommitCmdsError, error) {
	return Audit(ctx, s.snapshots)
}
