package building

import (
	"fmt"
	"time"

	"github.com/kazz187/buildingdesk/internal/user"
)

type Status string

const (
	StatusActive      Status = "active"
	StatusMaintenance Status = "maintenance"
	StatusInactive    Status = "inactive"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusMaintenance, StatusInactive:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown building status %q", s)
	}
	return st, nil
}

type Building struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	Floors         int       `json:"floors"`
	YearBuilt      *int      `json:"yearBuilt,omitempty"`
	TotalArea      *float64  `json:"totalArea,omitempty"`
	Description    *string   `json:"description,omitempty"`
	Status         Status    `json:"status"`
	ImageURL       *string   `json:"imageUrl,omitempty"`
	AdminManagerID *string   `json:"adminManagerId"`
	BizManagerID   *string   `json:"bizManagerId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Detail is a building with its manager relations resolved.
type Detail struct {
	*Building
	Managers     []*user.Summary `json:"managers"`
	AdminManager *user.Summary   `json:"adminManager"`
	BizManager   *user.Summary   `json:"bizManager"`
}

// ListFilter narrows List. An empty Status or "all" matches every status.
type ListFilter struct {
	Status string
	Search string
}
