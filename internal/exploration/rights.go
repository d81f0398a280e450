package exploration

import (
	"sort"
	"strconv"
	"time"
)

const (
	StatusPrivate = "private"
	StatusPublic  = "public"

	RoleOwner       = "owner"
	RoleEditor      = "editor"
	RoleVoiceArtist = "voice artist"
	RoleViewer      = "viewer"
)

// SystemUserIDs never count as contributors.
var SystemUserIDs = map[string]bool{"admin": true, "SYSTEM_COMMITTER_ID": true}

// Rights records who may do what with an exploration.
type Rights struct {
	ID             string   `json:"id" bson:"_id"`
	OwnerIDs       []string `json:"owner_ids" bson:"owner_ids"`
	EditorIDs      []string `json:"editor_ids" bson:"editor_ids"`
	VoiceArtistIDs []string `json:"voice_artist_ids" bson:"voice_artist_ids"`
	ViewerIDs      []string `json:"viewer_ids" bson:"viewer_ids"`
	Status         string   `json:"status" bson:"status"`
	CommunityOwned bool     `json:"community_owned" bson:"community_owned"`
}

func NewRights(id, ownerID string) *Rights {
	return &Rights{
		ID:             id,
		OwnerIDs:       []string{ownerID},
		EditorIDs:      []string{},
		VoiceArtistIDs: []string{},
		ViewerIDs:      []string{},
		Status:         StatusPrivate,
	}
}

func (r *Rights) IsPrivate() bool { return r.Status == StatusPrivate }

func (r *Rights) IsOwner(userID string) bool { return containsID(r.OwnerIDs, userID) }

func (r *Rights) CanEdit(userID string) bool {
	return userID != "" && (r.CommunityOwned || r.IsOwner(userID) || containsID(r.EditorIDs, userID))
}

func (r *Rights) CanVoiceover(userID string) bool {
	return r.CanEdit(userID) || (userID != "" && containsID(r.VoiceArtistIDs, userID))
}

func (r *Rights) HasAnyRole(userID string) bool {
	return r.CanVoiceover(userID) || containsID(r.ViewerIDs, userID)
}

func (r *Rights) CanView(userID string) bool {
	return !r.IsPrivate() || r.HasAnyRole(userID)
}

// Assign grants role to userID. A user holds at most one role; a stronger
// role replaces a weaker one.
func (r *Rights) Assign(userID, role string) error {
	switch role {
	case RoleOwner:
		if r.IsOwner(userID) {
			return validationErrorf("This user already owns this exploration.")
		}
		r.EditorIDs = removeID(r.EditorIDs, userID)
		r.VoiceArtistIDs = removeID(r.VoiceArtistIDs, userID)
		r.ViewerIDs = removeID(r.ViewerIDs, userID)
		r.OwnerIDs = append(r.OwnerIDs, userID)
	case RoleEditor:
		if r.CanEdit(userID) {
			return validationErrorf("This user already can edit this exploration.")
		}
		r.VoiceArtistIDs = removeID(r.VoiceArtistIDs, userID)
		r.ViewerIDs = removeID(r.ViewerIDs, userID)
		r.EditorIDs = append(r.EditorIDs, userID)
	case RoleVoiceArtist:
		if r.IsPrivate() {
			return validationErrorf("Could not assign voice artist to private activity.")
		}
		if r.CanVoiceover(userID) {
			return validationErrorf("This user already can voiceover this exploration.")
		}
		r.ViewerIDs = removeID(r.ViewerIDs, userID)
		r.VoiceArtistIDs = append(r.VoiceArtistIDs, userID)
	case RoleViewer:
		if !r.IsPrivate() {
			return validationErrorf("Public explorations can be viewed by anyone.")
		}
		if r.HasAnyRole(userID) {
			return validationErrorf("This user already can view this exploration.")
		}
		r.ViewerIDs = append(r.ViewerIDs, userID)
	default:
		return validationErrorf("Invalid role: %s", role)
	}
	return nil
}

// Deassign removes every role userID holds.
func (r *Rights) Deassign(userID string) error {
	if !containsID(r.OwnerIDs, userID) && !containsID(r.EditorIDs, userID) &&
		!containsID(r.VoiceArtistIDs, userID) && !containsID(r.ViewerIDs, userID) {
		return validationErrorf("This user does not have any role in this exploration.")
	}
	r.OwnerIDs = removeID(r.OwnerIDs, userID)
	r.EditorIDs = removeID(r.EditorIDs, userID)
	r.VoiceArtistIDs = removeID(r.VoiceArtistIDs, userID)
	r.ViewerIDs = removeID(r.ViewerIDs, userID)
	return nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Summary is the denormalized view of an exploration and its rights used by
// listings, story pages and recommendations.
type Summary struct {
	ID                  string         `json:"id" bson:"_id"`
	Title               string         `json:"title" bson:"title"`
	Category            string         `json:"category" bson:"category"`
	Objective           string         `json:"objective" bson:"objective"`
	LanguageCode        string         `json:"language_code" bson:"language_code"`
	Tags                []string       `json:"tags" bson:"tags"`
	Ratings             map[string]int `json:"ratings" bson:"ratings"`
	SearchRank          int            `json:"search_rank" bson:"search_rank"`
	Status              string         `json:"status" bson:"status"`
	CommunityOwned      bool           `json:"community_owned" bson:"community_owned"`
	OwnerIDs            []string       `json:"owner_ids" bson:"owner_ids"`
	EditorIDs           []string       `json:"editor_ids" bson:"editor_ids"`
	VoiceArtistIDs      []string       `json:"voice_artist_ids" bson:"voice_artist_ids"`
	ViewerIDs           []string       `json:"viewer_ids" bson:"viewer_ids"`
	ContributorIDs      []string       `json:"contributor_ids" bson:"contributor_ids"`
	ContributorsSummary map[string]int `json:"contributors_summary" bson:"contributors_summary"`
	Version             int            `json:"version" bson:"version"`
	CreatedOn           time.Time      `json:"exploration_model_created_on" bson:"created_on"`
	LastUpdated         time.Time      `json:"exploration_model_last_updated" bson:"last_updated"`
}

// DefaultRatings has a zero count for each of the ratings 1 to 5.
func DefaultRatings() map[string]int {
	return map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0}
}

// NewSummary derives a summary from e and r with empty ratings and
// contributors.
func NewSummary(e *Exploration, r *Rights) *Summary {
	return &Summary{
		ID:                  e.ID,
		Title:               e.Title,
		Category:            e.Category,
		Objective:           e.Objective,
		LanguageCode:        e.LanguageCode,
		Tags:                append([]string{}, e.Tags...),
		Ratings:             DefaultRatings(),
		Status:              r.Status,
		CommunityOwned:      r.CommunityOwned,
		OwnerIDs:            append([]string{}, r.OwnerIDs...),
		EditorIDs:           append([]string{}, r.EditorIDs...),
		VoiceArtistIDs:      append([]string{}, r.VoiceArtistIDs...),
		ViewerIDs:           append([]string{}, r.ViewerIDs...),
		ContributorIDs:      []string{},
		ContributorsSummary: map[string]int{},
		Version:             e.Version,
		CreatedOn:           e.CreatedOn,
		LastUpdated:         e.LastUpdated,
	}
}

// Refresh returns a summary of e and r that keeps the ratings, search rank
// and contributors of prev. prev may be nil.
func Refresh(prev *Summary, e *Exploration, r *Rights) *Summary {
	s := NewSummary(e, r)
	if prev == nil {
		return s
	}
	if prev.Ratings != nil {
		s.Ratings = prev.Ratings
	}
	s.SearchRank = prev.SearchRank
	for id, n := range prev.ContributorsSummary {
		s.ContributorsSummary[id] = n
	}
	s.ContributorIDs = sortedKeys(s.ContributorsSummary)
	return s
}

func (s *Summary) IsPrivate() bool { return s.Status == StatusPrivate }

// AddContributionByUser counts one commit by contributorID. System users are
// not recorded.
func (s *Summary) AddContributionByUser(contributorID string) {
	if s.ContributorsSummary == nil {
		s.ContributorsSummary = map[string]int{}
	}
	if !SystemUserIDs[contributorID] {
		s.ContributorsSummary[contributorID]++
	}
	s.ContributorIDs = sortedKeys(s.ContributorsSummary)
}

// Validate reports summaries that cannot be scored or listed.
func (s *Summary) Validate() error {
	if s.ID == "" {
		return validationErrorf("Expected summary to have an id")
	}
	if s.Status != StatusPrivate && s.Status != StatusPublic {
		return validationErrorf("Invalid status: %s", s.Status)
	}
	for k, n := range s.Ratings {
		if v, err := strconv.Atoi(k); err != nil || v < 1 || v > 5 {
			return validationErrorf("Invalid rating key: %s", k)
		}
		if n < 0 {
			return validationErrorf("Expected rating counts to be non-negative, received %d", n)
		}
	}
	return nil
}

// ToDict returns the summary dict shown to learners next to story nodes.
func (s *Summary) ToDict() map[string]interface{} {
	return map[string]interface{}{
		"id":                s.ID,
		"title":             s.Title,
		"category":          s.Category,
		"objective":         s.Objective,
		"language_code":     s.LanguageCode,
		"tags":              s.Tags,
		"ratings":           s.Ratings,
		"status":            s.Status,
		"community_owned":   s.CommunityOwned,
		"activity_type":     "exploration",
		"last_updated_msec": s.LastUpdated.UnixMilli(),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
