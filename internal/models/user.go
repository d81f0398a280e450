package models

import "time"

// Roles carried in the user record and the access token "roles" claim.
const (
	RoleAdmin           = "admin"
	RoleModerator       = "moderator"
	RoleCurriculumAdmin = "curriculum_admin"
	RoleVoiceoverAdmin  = "voiceover_admin"
)

// User represents an application user (mapped from Keycloak claims)
type User struct {
	ID       string   `bson:"_id,omitempty" json:"id"`
	Sub      string   `bson:"sub" json:"sub"` // OIDC subject, used as the user id everywhere else
	OIDCId   string   `bson:"oidcId,omitempty" json:"oidcId,omitempty"`
	Email    string   `bson:"email" json:"email"`
	Name     string   `bson:"name" json:"name"`
	Username string   `bson:"username" json:"username"`
	Roles    []string `bson:"roles" json:"roles"`
	// TranslationTutorialStarted is set the first time the user opens the
	// voiceover tutorial.
	TranslationTutorialStarted bool      `bson:"translationTutorialStarted" json:"translationTutorialStarted"`
	CreatedAt                  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt                  time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
