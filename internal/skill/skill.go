// Package skill holds skills, the change commands that edit them, the
// question index used to offer review tests, and the audit of recorded skill
// commits.
package skill

import (
	"encoding/json"
	"fmt"

	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
	"github.com/openlearn/openlearn/backend/go-services/internal/collection"
)

const (
	CmdCreateNew                         = "create_new"
	CmdUpdateSkillProperty               = "update_skill_property"
	CmdUpdateSkillContentsProperty       = "update_skill_contents_property"
	CmdUpdateSkillMisconceptionsProperty = "update_skill_misconceptions_property"
	CmdUpdateRubrics                     = "update_rubrics"
	CmdAddSkillMisconception             = "add_skill_misconception"
	CmdDeleteSkillMisconception          = "delete_skill_misconception"
	CmdAddPrerequisiteSkill              = "add_prerequisite_skill"
	CmdDeletePrerequisiteSkill           = "delete_prerequisite_skill"
	CmdMigrateContentsSchema             = "migrate_contents_schema_to_latest_version"
	CmdMigrateMisconceptionsSchema       = "migrate_misconceptions_schema_to_latest_version"
	CmdMigrateRubricsSchema              = "migrate_rubrics_schema_to_latest_version"
)

var (
	SkillProperties         = []string{"description", "language_code", "superseding_skill_id", "all_questions_merged", "prerequisite_skill_ids"}
	ContentsProperties      = []string{"explanation", "worked_examples"}
	MisconceptionProperties = []string{"name", "notes", "feedback", "must_be_addressed"}
	Difficulties            = []string{"Easy", "Medium", "Hard"}
)

// ChangeSpec is the schema every skill commit command must match.
var ChangeSpec = changes.NewSpec(
	changes.Command{Name: CmdCreateNew},
	changes.Command{
		Name:          CmdUpdateSkillProperty,
		Required:      []string{"new_value", "old_value", "property_name"},
		AllowedValues: map[string][]string{"property_name": SkillProperties},
	},
	changes.Command{
		Name:          CmdUpdateSkillContentsProperty,
		Required:      []string{"new_value", "old_value", "property_name"},
		AllowedValues: map[string][]string{"property_name": ContentsProperties},
	},
	changes.Command{
		Name:          CmdUpdateSkillMisconceptionsProperty,
		Required:      []string{"misconception_id", "new_value", "old_value", "property_name"},
		AllowedValues: map[string][]string{"property_name": MisconceptionProperties},
	},
	changes.Command{
		Name:          CmdUpdateRubrics,
		Required:      []string{"difficulty", "explanations"},
		AllowedValues: map[string][]string{"difficulty": Difficulties},
	},
	changes.Command{Name: CmdAddSkillMisconception, Required: []string{"new_misconception_dict"}},
	changes.Command{Name: CmdDeleteSkillMisconception, Required: []string{"misconception_id"}},
	changes.Command{Name: CmdAddPrerequisiteSkill, Required: []string{"skill_id"}},
	changes.Command{Name: CmdDeletePrerequisiteSkill, Required: []string{"skill_id"}},
	changes.Command{Name: CmdMigrateContentsSchema, Required: []string{"from_version", "to_version"}},
	changes.Command{Name: CmdMigrateMisconceptionsSchema, Required: []string{"from_version", "to_version"}},
	changes.Command{Name: CmdMigrateRubricsSchema, Required: []string{"from_version", "to_version"}},
)

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, a ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, a...)}
}

type Misconception struct {
	ID              int    `json:"id" bson:"id"`
	Name            string `json:"name" bson:"name"`
	Notes           string `json:"notes" bson:"notes"`
	Feedback        string `json:"feedback" bson:"feedback"`
	MustBeAddressed bool   `json:"must_be_addressed" bson:"must_be_addressed"`
}

type Rubric struct {
	Difficulty   string   `json:"difficulty" bson:"difficulty"`
	Explanations []string `json:"explanations" bson:"explanations"`
}

type Skill struct {
	ID                   string          `json:"id" bson:"_id"`
	Description          string          `json:"description" bson:"description"`
	LanguageCode         string          `json:"language_code" bson:"language_code"`
	Explanation          string          `json:"explanation" bson:"explanation"`
	Misconceptions       []Misconception `json:"misconceptions" bson:"misconceptions"`
	NextMisconceptionID  int             `json:"next_misconception_id" bson:"next_misconception_id"`
	Rubrics              []Rubric        `json:"rubrics" bson:"rubrics"`
	PrerequisiteSkillIDs []string        `json:"prerequisite_skill_ids" bson:"prerequisite_skill_ids"`
	AllQuestionsMerged   bool            `json:"all_questions_merged" bson:"all_questions_merged"`
	SupersedingSkillID   string          `json:"superseding_skill_id,omitempty" bson:"superseding_skill_id,omitempty"`
	Version              int             `json:"version" bson:"version"`
}

func New(id, description string) *Skill {
	rubrics := make([]Rubric, 0, len(Difficulties))
	for _, d := range Difficulties {
		rubrics = append(rubrics, Rubric{Difficulty: d, Explanations: []string{}})
	}
	return &Skill{
		ID:                   id,
		Description:          description,
		LanguageCode:         "en",
		Misconceptions:       []Misconception{},
		Rubrics:              rubrics,
		PrerequisiteSkillIDs: []string{},
	}
}

func (s *Skill) Validate() error {
	if s.Description == "" {
		return validationErrorf("Description field should not be empty")
	}
	if len(s.Description) > 100 {
		return validationErrorf("Skill description should be less than 100 chars, received %s", s.Description)
	}
	if !collection.IsValidLanguageCode(s.LanguageCode) {
		return validationErrorf("Invalid language code: %s", s.LanguageCode)
	}
	seen := map[int]bool{}
	for _, m := range s.Misconceptions {
		if seen[m.ID] {
			return validationErrorf("Duplicate misconception ID found")
		}
		seen[m.ID] = true
		if m.ID >= s.NextMisconceptionID {
			return validationErrorf("The misconception with id %d is out of bounds.", m.ID)
		}
	}
	for _, id := range s.PrerequisiteSkillIDs {
		if id == s.ID {
			return validationErrorf("A skill cannot be a prerequisite of itself")
		}
	}
	return nil
}

func (s *Skill) misconception(id int) (*Misconception, error) {
	for i := range s.Misconceptions {
		if s.Misconceptions[i].ID == id {
			return &s.Misconceptions[i], nil
		}
	}
	return nil, validationErrorf("There is no misconception with the given id.")
}

func decodeInto(v interface{}, out interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// Apply applies one validated change. Migration commands are recorded only.
func (s *Skill) Apply(ch changes.Change) error {
	switch ch.Cmd() {
	case CmdUpdateSkillProperty:
		switch ch.String("property_name") {
		case "description":
			s.Description = ch.String("new_value")
		case "language_code":
			s.LanguageCode = ch.String("new_value")
		case "superseding_skill_id":
			s.SupersedingSkillID = ch.String("new_value")
		case "all_questions_merged":
			b, _ := ch.Get("new_value").(bool)
			s.AllQuestionsMerged = b
		case "prerequisite_skill_ids":
			ids, err := ch.StringSlice("new_value")
			if err != nil {
				return &ValidationError{Msg: err.Error()}
			}
			s.PrerequisiteSkillIDs = ids
		}
	case CmdUpdateSkillContentsProperty:
		if ch.String("property_name") == "explanation" {
			s.Explanation = ch.String("new_value")
		}
	case CmdAddSkillMisconception:
		var m Misconception
		if err := decodeInto(ch.Get("new_misconception_dict"), &m); err != nil {
			return validationErrorf("Expected new_misconception_dict to be a dict, received %v", ch.Get("new_misconception_dict"))
		}
		m.ID = s.NextMisconceptionID
		s.NextMisconceptionID++
		s.Misconceptions = append(s.Misconceptions, m)
	case CmdDeleteSkillMisconception:
		id, err := ch.Int("misconception_id")
		if err != nil {
			return &ValidationError{Msg: err.Error()}
		}
		if _, err := s.misconception(id); err != nil {
			return err
		}
		out := s.Misconceptions[:0]
		for _, m := range s.Misconceptions {
			if m.ID != id {
				out = append(out, m)
			}
		}
		s.Misconceptions = out
	case CmdUpdateSkillMisconceptionsProperty:
		id, err := ch.Int("misconception_id")
		if err != nil {
			return &ValidationError{Msg: err.Error()}
		}
		m, err := s.misconception(id)
		if err != nil {
			return err
		}
		switch ch.String("property_name") {
		case "name":
			m.Name = ch.String("new_value")
		case "notes":
			m.Notes = ch.String("new_value")
		case "feedback":
			m.Feedback = ch.String("new_value")
		case "must_be_addressed":
			b, _ := ch.Get("new_value").(bool)
			m.MustBeAddressed = b
		}
	case CmdUpdateRubrics:
		explanations, err := ch.StringSlice("explanations")
		if err != nil {
			return &ValidationError{Msg: err.Error()}
		}
		for i := range s.Rubrics {
			if s.Rubrics[i].Difficulty == ch.String("difficulty") {
				s.Rubrics[i].Explanations = explanations
			}
		}
	case CmdAddPrerequisiteSkill:
		id := ch.String("skill_id")
		for _, p := range s.PrerequisiteSkillIDs {
			if p == id {
				return validationErrorf("The skill is already a prerequisite skill.")
			}
		}
		s.PrerequisiteSkillIDs = append(s.PrerequisiteSkillIDs, id)
	case CmdDeletePrerequisiteSkill:
		id := ch.String("skill_id")
		out := make([]string, 0, len(s.PrerequisiteSkillIDs))
		for _, p := range s.PrerequisiteSkillIDs {
			if p != id {
				out = append(out, p)
			}
		}
		if len(out) == len(s.PrerequisiteSkillIDs) {
			return validationErrorf("The skill to remove is not a prerequisite skill.")
		}
		s.PrerequisiteSkillIDs = out
	}
	return nil
}

// ApplyChanges validates list against ChangeSpec and applies it in order.
func (s *Skill) ApplyChanges(list []map[string]interface{}) ([]changes.Change, error) {
	validated, err := ChangeSpec.ValidateList(list)
	if err != nil {
		return nil, err
	}
	for _, ch := range validated {
		if err := s.Apply(ch); err != nil {
			return nil, err
		}
	}
	return validated, nil
}
