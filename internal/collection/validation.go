package collection

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameLength = 50

var (
	tagRegex             = regexp.MustCompile(`^[a-z ]+$`)
	adjacentWhitespaceRe = regexp.MustCompile(`\s\s+`)
)

// invalidNameChars may not appear in titles or categories.
var invalidNameChars = func() []string {
	out := []string{":", "#", "/", "|", "_", "%", "<", ">", "[", "]", "{", "}", "�", "\\", "\u007f"}
	for r := rune(0x80); r <= 0x9f; r++ {
		out = append(out, string(r))
	}
	return out
}()

// RequireValidName checks a user-visible name such as a collection title.
// nameType is used in messages, e.g. "the collection title".
func RequireValidName(name, nameType string, allowEmpty bool) error {
	if allowEmpty && name == "" {
		return nil
	}
	if n := utf8.RuneCountInString(name); n < 1 || n > maxNameLength {
		return validationErrorf("The length of %s should be between 1 and %d characters; received %s", nameType, maxNameLength, name)
	}
	first, _ := utf8.DecodeRuneInString(name)
	last, _ := utf8.DecodeLastRuneInString(name)
	if unicode.IsSpace(first) || unicode.IsSpace(last) {
		return validationErrorf("Names should not start or end with whitespace.")
	}
	if adjacentWhitespaceRe.MatchString(name) {
		return validationErrorf("Adjacent whitespace in %s should be collapsed.", nameType)
	}
	for _, ch := range invalidNameChars {
		if strings.Contains(name, ch) {
			return validationErrorf("Invalid character %s in %s: %s", ch, nameType, name)
		}
	}
	return nil
}

func validateLanguageCode(code string) error {
	if code == "" {
		return validationErrorf("A language must be specified (in the 'Settings' tab).")
	}
	if !IsValidLanguageCode(code) {
		return validationErrorf("Invalid language code: %s", code)
	}
	return nil
}

func hasDuplicates(list []string) bool {
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		if seen[s] {
			return true
		}
		seen[s] = true
	}
	return false
}

// validateTag checks one tag. edgePadding is inserted before the quoted tag in
// the edge whitespace message; collections and summaries word it differently.
func validateTag(tag, edgePadding string) error {
	if tag == "" {
		return validationErrorf("Tags should be non-empty.")
	}
	if !tagRegex.MatchString(tag) {
		return validationErrorf("Tags should only contain lowercase letters and spaces, received '%s'", tag)
	}
	if tag[0] == ' ' || tag[len(tag)-1] == ' ' {
		return validationErrorf("Tags should not start or end with whitespace, received %s'%s'", edgePadding, tag)
	}
	if adjacentWhitespaceRe.MatchString(tag) {
		return validationErrorf("Adjacent whitespace in tags should be collapsed, received '%s'", tag)
	}
	return nil
}

// Validate checks the collection. strict additionally requires the fields
// needed for publishing.
func (c *Collection) Validate(strict bool) error {
	if err := RequireValidName(c.Title, "the collection title", true); err != nil {
		return err
	}
	if err := RequireValidName(c.Category, "the collection category", true); err != nil {
		return err
	}
	if err := validateLanguageCode(c.LanguageCode); err != nil {
		return err
	}

	if hasDuplicates(c.Tags) {
		return validationErrorf("Expected tags to be unique, but found duplicates")
	}
	for _, tag := range c.Tags {
		if err := validateTag(tag, " "); err != nil {
			return err
		}
	}

	if c.SchemaVersion != CurrentSchemaVersion {
		return validationErrorf("Expected schema version to be %d, received %d", CurrentSchemaVersion, c.SchemaVersion)
	}
	if hasDuplicates(c.ExplorationIDs()) {
		return validationErrorf("There are explorations referenced in the collection more than once.")
	}

	if strict {
		if c.Title == "" {
			return validationErrorf("A title must be specified for the collection.")
		}
		if c.Objective == "" {
			return validationErrorf("An objective must be specified for the collection.")
		}
		if c.Category == "" {
			return validationErrorf("A category must be specified for the collection.")
		}
		if len(c.Nodes) == 0 {
			return validationErrorf("Expected to have at least 1 exploration in the collection.")
		}
	}
	return nil
}
