package collection

import (
	"sort"
	"time"
)

const (
	StatusPrivate = "private"
	StatusPublic  = "public"
)

// Summary is the denormalized view of a collection used in listings.
type Summary struct {
	ID                  string         `json:"id" bson:"_id"`
	Title               string         `json:"title" bson:"title"`
	Category            string         `json:"category" bson:"category"`
	Objective           string         `json:"objective" bson:"objective"`
	LanguageCode        string         `json:"language_code" bson:"language_code"`
	Tags                []string       `json:"tags" bson:"tags"`
	Status              string         `json:"status" bson:"status"`
	CommunityOwned      bool           `json:"community_owned" bson:"community_owned"`
	OwnerIDs            []string       `json:"owner_ids" bson:"owner_ids"`
	EditorIDs           []string       `json:"editor_ids" bson:"editor_ids"`
	ViewerIDs           []string       `json:"viewer_ids" bson:"viewer_ids"`
	ContributorIDs      []string       `json:"contributor_ids" bson:"contributor_ids"`
	ContributorsSummary map[string]int `json:"contributors_summary" bson:"contributors_summary"`
	Version             int            `json:"version" bson:"version"`
	NodeCount           int            `json:"node_count" bson:"node_count"`
	CreatedOn           time.Time      `json:"collection_model_created_on" bson:"created_on"`
	LastUpdated         time.Time      `json:"collection_model_last_updated" bson:"last_updated"`
}

// Validate checks the summary. Unlike Collection.Validate, duplicate tags are
// reported only after every tag passes the per-tag checks.
func (s *Summary) Validate() error {
	if err := RequireValidName(s.Title, "the collection title", true); err != nil {
		return err
	}
	if err := RequireValidName(s.Category, "the collection category", true); err != nil {
		return err
	}
	if err := validateLanguageCode(s.LanguageCode); err != nil {
		return err
	}
	for _, tag := range s.Tags {
		if err := validateTag(tag, ""); err != nil {
			return err
		}
	}
	if hasDuplicates(s.Tags) {
		return validationErrorf("Expected tags to be unique, but found duplicates")
	}
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

// IsEditableBy reports whether userID may edit the collection. An empty
// userID is never an editor.
func (s *Summary) IsEditableBy(userID string) bool {
	return userID != "" && (containsID(s.EditorIDs, userID) || containsID(s.OwnerIDs, userID) || s.CommunityOwned)
}

func (s *Summary) IsPrivate() bool { return s.Status == StatusPrivate }

func (s *Summary) IsSolelyOwnedBy(userID string) bool {
	return containsID(s.OwnerIDs, userID) && len(s.OwnerIDs) == 1
}

func (s *Summary) DoesUserHaveAnyRole(userID string) bool {
	return containsID(s.OwnerIDs, userID) || containsID(s.EditorIDs, userID) || containsID(s.ViewerIDs, userID)
}

// AddContributionByUser counts one commit by contributorID. System users are
// not recorded.
func (s *Summary) AddContributionByUser(contributorID string) {
	if s.ContributorsSummary == nil {
		s.ContributorsSummary = map[string]int{}
	}
	if !SystemUserIDs[contributorID] {
		s.ContributorsSummary[contributorID]++
	}
	ids := make([]string, 0, len(s.ContributorsSummary))
	for id := range s.ContributorsSummary {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s.ContributorIDs = ids
}

// NewSummary derives a summary from c. Rights fields come from the caller.
func NewSummary(c *Collection, status string, ownerIDs []string) *Summary {
	return &Summary{
		ID:                  c.ID,
		Title:               c.Title,
		Category:            c.Category,
		Objective:           c.Objective,
		LanguageCode:        c.LanguageCode,
		Tags:                append([]string{}, c.Tags...),
		Status:              status,
		OwnerIDs:            append([]string{}, ownerIDs...),
		EditorIDs:           []string{},
		ViewerIDs:           []string{},
		ContributorIDs:      []string{},
		ContributorsSummary: map[string]int{},
		Version:             c.Version,
		NodeCount:           len(c.Nodes),
		CreatedOn:           c.CreatedOn,
		LastUpdated:         c.LastUpdated,
	}
}
