package models

import "time"

// User is a registered CarnavalPlay account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	AvatarColor  string    `json:"avatar_color"`
	AvatarEmoji  string    `json:"avatar_emoji"`
	IsAdmin      bool      `json:"es_admin"`
	Active       bool      `json:"-"`
	LastSeen     time.Time `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// VisibleName is the name shown in chat and the info panel.
func (u *User) VisibleName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
