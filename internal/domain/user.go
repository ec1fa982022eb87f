package domain

import "time"

// AuthProvider represents an OAuth provider.
type AuthProvider string

const (
	AuthProviderGoogle AuthProvider = "google"
	AuthProviderGitHub AuthProvider = "github"
)

// User represents an account that owns habits. Password accounts have a
// PasswordHash; social accounts have a Provider and ProviderID instead.
type User struct {
	ID             int64         `json:"id" db:"id"`
	Email          string        `json:"email" db:"email"`
	PasswordHash   *string       `json:"-" db:"password_hash"`
	Provider       *AuthProvider `json:"provider,omitempty" db:"provider"`
	ProviderID     *string       `json:"-" db:"provider_id"`
	FirstName      string        `json:"first_name" db:"first_name"`
	LastName       string        `json:"last_name" db:"last_name"`
	TelegramChatID *int64        `json:"telegram_chat_id" db:"telegram_chat_id"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// UserPatch holds the profile fields a user may change about themselves.
// Nil fields are left untouched.
type UserPatch struct {
	Email          *string
	FirstName      *string
	LastName       *string
	TelegramChatID *int64
	ClearChatID    bool
}

// Apply returns a copy of u with the patch applied.
func (p UserPatch) Apply(u User) User {
	out := u
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.FirstName != nil {
		out.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		out.LastName = *p.LastName
	}
	if p.ClearChatID {
		out.TelegramChatID = nil
	} else if p.TelegramChatID != nil {
		id := *p.TelegramChatID
		out.TelegramChatID = &id
	}
	return out
}
