// Package exploration holds explorations, the playable lessons learners work
// through, together with their access rights and listing summaries.
package exploration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openlearn/openlearn/backend/go-services/internal/collection"
)

const (
	DefaultInitStateName = "Introduction"
	DefaultLanguageCode  = "en"

	// ContentID is the content id of a state's main card.
	ContentID = "content"
)

// ValidationError reports invalid exploration data or input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, a ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, a...)}
}

// SubtitledHTML is a piece of rich text addressable by content id.
type SubtitledHTML struct {
	ContentID string `json:"content_id" bson:"content_id"`
	HTML      string `json:"html" bson:"html"`
}

// Voiceover is one recorded audio file for a content id and language.
type Voiceover struct {
	Filename      string  `json:"filename" bson:"filename"`
	FileSizeBytes int     `json:"file_size_bytes" bson:"file_size_bytes"`
	NeedsUpdate   bool    `json:"needs_update" bson:"needs_update"`
	DurationSecs  float64 `json:"duration_secs" bson:"duration_secs"`
}

// RecordedVoiceovers maps content id -> language code -> voiceover.
type RecordedVoiceovers struct {
	VoiceoversMapping map[string]map[string]Voiceover `json:"voiceovers_mapping" bson:"voiceovers_mapping"`
}

type State struct {
	Content            SubtitledHTML      `json:"content" bson:"content"`
	RecordedVoiceovers RecordedVoiceovers `json:"recorded_voiceovers" bson:"recorded_voiceovers"`
}

// NewDefaultState returns an empty card with an empty voiceover entry for its
// content.
func NewDefaultState() *State {
	return &State{
		Content: SubtitledHTML{ContentID: ContentID},
		RecordedVoiceovers: RecordedVoiceovers{
			VoiceoversMapping: map[string]map[string]Voiceover{ContentID: {}},
		},
	}
}

func (s *State) Validate() error {
	if s.Content.ContentID == "" {
		return validationErrorf("Expected content id to be a non-empty string")
	}
	for contentID, byLang := range s.RecordedVoiceovers.VoiceoversMapping {
		for lang, v := range byLang {
			if !collection.IsValidLanguageCode(lang) {
				return validationErrorf("Invalid language_code: %s", lang)
			}
			if v.Filename == "" {
				return validationErrorf("Expected a filename for the %s voiceover of %s", lang, contentID)
			}
			if v.FileSizeBytes < 0 {
				return validationErrorf("Invalid file size: %d", v.FileSizeBytes)
			}
			if v.DurationSecs < 0 {
				return validationErrorf("Expected duration_secs to be positive number, or zero if not yet specified %v", v.DurationSecs)
			}
		}
	}
	if _, ok := s.RecordedVoiceovers.VoiceoversMapping[s.Content.ContentID]; !ok {
		return validationErrorf("Expected recorded voiceovers to include content id %s", s.Content.ContentID)
	}
	return nil
}

// Exploration is stored as is; states are keyed by name.
type Exploration struct {
	ID            string            `json:"id" bson:"_id"`
	Title         string            `json:"title" bson:"title"`
	Category      string            `json:"category" bson:"category"`
	Objective     string            `json:"objective" bson:"objective"`
	LanguageCode  string            `json:"language_code" bson:"language_code"`
	Tags          []string          `json:"tags" bson:"tags"`
	InitStateName string            `json:"init_state_name" bson:"init_state_name"`
	States        map[string]*State `json:"states" bson:"states"`
	Version       int               `json:"version" bson:"version"`
	CreatedOn     time.Time         `json:"created_on" bson:"created_on"`
	LastUpdated   time.Time         `json:"last_updated" bson:"last_updated"`
}

// NewDefault returns an exploration with a single empty initial state.
func NewDefault(id, title, category string) *Exploration {
	return &Exploration{
		ID:            id,
		Title:         title,
		Category:      category,
		LanguageCode:  DefaultLanguageCode,
		Tags:          []string{},
		InitStateName: DefaultInitStateName,
		States:        map[string]*State{DefaultInitStateName: NewDefaultState()},
	}
}

// Validate checks structural consistency. strict adds the checks required
// before publishing.
func (e *Exploration) Validate(strict bool) error {
	if err := collection.RequireValidName(e.Title, "the exploration title", true); err != nil {
		return err
	}
	if err := collection.RequireValidName(e.Category, "the exploration category", true); err != nil {
		return err
	}
	if !collection.IsValidLanguageCode(e.LanguageCode) {
		return validationErrorf("Invalid language_code: %s", e.LanguageCode)
	}
	if len(e.States) == 0 {
		return validationErrorf("This exploration has no states.")
	}
	if _, ok := e.States[e.InitStateName]; !ok {
		return validationErrorf("There is no state in %v corresponding to the exploration's initial state name %s.", e.StateNames(), e.InitStateName)
	}
	for name, s := range e.States {
		if err := collection.RequireValidName(name, "a state name", false); err != nil {
			return err
		}
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if strict {
		if e.Title == "" {
			return validationErrorf("A title must be specified (in the 'Title' section of the page editor)")
		}
		if e.Category == "" {
			return validationErrorf("A category must be specified (in the 'Category' section of the page editor)")
		}
		if e.Objective == "" {
			return validationErrorf("An objective must be specified (in the 'Objective' section of the page editor)")
		}
	}
	return nil
}

// StateNames returns the state names, sorted.
func (e *Exploration) StateNames() []string {
	return sortedKeys(e.States)
}

// Clone returns a deep copy, used to apply change lists without touching the
// stored value until they validate.
func (e *Exploration) Clone() (*Exploration, error) {
	data, err := e.Serialize()
	if err != nil {
		return nil, err
	}
	return Deserialize(data)
}

func (e *Exploration) Serialize() ([]byte, error) {
	return json.Marshal(e)
}

func Deserialize(data []byte) (*Exploration, error) {
	var e Exploration
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("deserialize exploration: %w", err)
	}
	return &e, nil
}
