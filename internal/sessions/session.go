package sessions

import "time"

// Session is one refresh token of a signed-in user. Refresh tokens are
// single use: refreshing takes the session and issues a new one.
type Session struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	Sub          string    `bson:"sub" json:"sub"`
	Username     string    `bson:"username,omitempty" json:"username,omitempty"`
	Generation   int       `bson:"generation" json:"generation"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

func (s *Session) expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
