package skill

import (
	"context"
	"fmt"
	"strings"

	"github.com/openlearn/openlearn/backend/go-services/internal/objects"
	"github.com/openlearn/openlearn/backend/go-services/internal/snapshot"
)

const (
	ErrorTypeCommitCmdsNone     = "CommitCmdsNoneError"
	ErrorTypeCommitCmdsValidate = "CommitCmdsValidateError"
)

// CommitCmdsError reports a recorded commit whose commands do not match
// ChangeSpec, or a commit that has no command schema at all.
type CommitCmdsError struct {
	Type    string `json:"type"`
	ModelID string `json:"model_id"`
	Message string `json:"message"`
}

func (e CommitCmdsError) Error() string {
	return fmt.Sprintf("%s in %s: %s", e.Type, e.ModelID, e.Message)
}

func commitCmdsNoneError(id string, cmds []map[string]interface{}) CommitCmdsError {
	return CommitCmdsError{
		Type:    ErrorTypeCommitCmdsNone,
		ModelID: id,
		Message: "No commit command domain object defined for entity with commands: " + reprCmds(cmds),
	}
}

func reprCmds(cmds []map[string]interface{}) string {
	parts := make([]string, 0, len(cmds))
	for _, c := range cmds {
		parts = append(parts, objects.Repr(c))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func validateCmds(id string, cmds []map[string]interface{}) []CommitCmdsError {
	var out []CommitCmdsError
	for _, cmd := range cmds {
		if len(cmd) == 0 {
			continue
		}
		if _, err := ChangeSpec.Validate(cmd); err != nil {
			out = append(out, CommitCmdsError{
				Type:    ErrorTypeCommitCmdsValidate,
				ModelID: id,
				Message: fmt.Sprintf("Commit command domain validation for command: %s failed with error: %s", objects.Repr(cmd), err),
			})
		}
	}
	return out
}

// ValidateSnapshotMetadata checks every command of a skill snapshot.
func ValidateSnapshotMetadata(m snapshot.Metadata) []CommitCmdsError {
	return validateCmds(m.ID, m.CommitCmds)
}

// ValidateCommitLogEntry checks the commands of a commit log entry. Only
// entries of skills have a command schema; any other id is reported as a
// CommitCmdsNoneError.
func ValidateCommitLogEntry(e snapshot.CommitLogEntry) []CommitCmdsError {
	if !strings.HasPrefix(e.ID, "skill") {
		return []CommitCmdsError{commitCmdsNoneError(e.ID, e.CommitCmds)}
	}
	return validateCmds(e.ID, e.CommitCmds)
}

// Audit validates every recorded skill snapshot and commit log entry.
func Audit(ctx context.Context, store snapshot.Store) ([]CommitCmdsError, error) {
	metas, err := store.MetadataFor(ctx, snapshot.KindSkill)
	if err != nil {
		return nil, err
	}
	out := []CommitCmdsError{}
	for _, m := range metas {
		out = append(out, ValidateSnapshotMetadata(m)...)
	}
	entries, err := store.CommitLogFor(ctx, snapshot.KindSkill)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		out = append(out, ValidateCommitLogEntry(e)...)
	}
	return out, nil
}
