package pushsubscription

import (
	"errors"
	"net/url"
	"time"
)

// Subscription is a browser push endpoint owned by one user. An endpoint is
// unique across users; registering it again moves it to the new owner.
type Subscription struct {
	ID        string    `yaml:"id"`
	UserID    string    `yaml:"user_id"`
	Endpoint  string    `yaml:"endpoint"`
	P256dhKey string    `yaml:"p256dh_key"`
	AuthKey   string    `yaml:"auth_key"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// ValidateEndpoint accepts only absolute https URLs, which is all a push
// service hands out.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return errors.New("endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return errors.New("endpoint must be an https URL")
	}
	return nil
}

// Bind assigns the subscription to userID with fresh keys.
func (s *Subscription) Bind(userID, p256dhKey, authKey string, now time.Time) {
	s.UserID = userID
	s.P256dhKey = p256dhKey
	s.AuthKey = authKey
	s.UpdatedAt = now
}

func (s *Subscription) OwnedBy(userID string) bool {
	return s.UserID == userID
}
