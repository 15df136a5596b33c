package models

import "time"

// Auth is one CRM portal installation, the unit of configuration isolation.
type Auth struct {
	ID           string    `json:"id"`
	Domain       string    `json:"domain"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	Timezone     string    `json:"timezone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
