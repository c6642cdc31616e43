package user

import (
	"time"

	"github.com/kazz187/buildingdesk/internal/permission"
)

type User struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Role         permission.Role `json:"role"`
	PhoneNumber  *string         `json:"phoneNumber,omitempty"`
	ProfileImage *string         `json:"profileImage,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Summary is the public projection of a user embedded in other resources.
type Summary struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Role         permission.Role `json:"role"`
	PhoneNumber  *string         `json:"phoneNumber,omitempty"`
	ProfileImage *string         `json:"profileImage,omitempty"`
}

func (u *User) Summary() *Summary {
	return &Summary{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		PhoneNumber:  u.PhoneNumber,
		ProfileImage: u.ProfileImage,
	}
}
