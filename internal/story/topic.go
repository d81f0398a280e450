package story

// StoryReference places a story in a topic and tracks whether learners can
// see it there.
type StoryReference struct {
	StoryID   string `json:"story_id" bson:"story_id"`
	Published bool   `json:"story_is_published" bson:"story_is_published"`
}

type Topic struct {
	ID                 string           `json:"id" bson:"_id"`
	Name               string           `json:"name" bson:"name"`
	URLFragment        string           `json:"url_fragment" bson:"url_fragment"`
	Description        string           `json:"description" bson:"description"`
	Published          bool             `json:"published" bson:"published"`
	CanonicalStories   []StoryReference `json:"canonical_story_references" bson:"canonical_story_references"`
	AdditionalStoryIDs []string         `json:"additional_story_ids" bson:"additional_story_ids"`
}

func NewTopic(id, name, urlFragment string) *Topic {
	return &Topic{
		ID:                 id,
		Name:               name,
		URLFragment:        urlFragment,
		CanonicalStories:   []StoryReference{},
		AdditionalStoryIDs: []string{},
	}
}

func (t *Topic) Validate() error {
	if t.Name == "" {
		return validationErrorf("Name field should not be empty")
	}
	if !validURLFragment(t.URLFragment) {
		return validationErrorf("Topic URL Fragment field must only contain lowercase letters and hyphens, received %s", t.URLFragment)
	}
	seen := map[string]bool{}
	for _, ref := range t.CanonicalStories {
		if seen[ref.StoryID] {
			return validationErrorf("Expected all canonical story ids to be distinct.")
		}
		seen[ref.StoryID] = true
	}
	for _, id := range t.AdditionalStoryIDs {
		if seen[id] {
			return validationErrorf("Expected canonical story ids and additional story ids to be mutually exclusive.")
		}
	}
	return nil
}

// CanonicalStoryIDs returns the canonical stories in topic order.
func (t *Topic) CanonicalStoryIDs() []string {
	out := make([]string, 0, len(t.CanonicalStories))
	for _, ref := range t.CanonicalStories {
		out = append(out, ref.StoryID)
	}
	return out
}

func (t *Topic) reference(storyID string) *StoryReference {
	for i := range t.CanonicalStories {
		if t.CanonicalStories[i].StoryID == storyID {
			return &t.CanonicalStories[i]
		}
	}
	return nil
}

// StoryPublished reports whether storyID is a published canonical story.
func (t *Topic) StoryPublished(storyID string) bool {
	ref := t.reference(storyID)
	return ref != nil && ref.Published
}

func (t *Topic) AddCanonicalStory(storyID string) error {
	if t.reference(storyID) != nil {
		return validationErrorf("The story_id %s is already present in the canonical story references list of the topic.", storyID)
	}
	t.CanonicalStories = append(t.CanonicalStories, StoryReference{StoryID: storyID})
	return nil
}

func (t *Topic) setStoryPublished(storyID string, published bool) error {
	ref := t.reference(storyID)
	if ref == nil {
		return validationErrorf("Story with given id doesn't exist in the topic")
	}
	if ref.Published == published {
		if published {
			return validationErrorf("The story is already published.")
		}
		return validationErrorf("The story is already unpublished.")
	}
	ref.Published = published
	return nil
}

func (t *Topic) PublishStory(storyID string) error   { return t.setStoryPublished(storyID, true) }
func (t *Topic) UnpublishStory(storyID string) error { return t.setStoryPublished(storyID, false) }
