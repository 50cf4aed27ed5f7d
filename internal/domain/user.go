package domain

import "time"

// User es el ancla canonica de identidad: ambos flujos (password y OAuth) la crean.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasPassword indica si la identidad puede autenticarse con credenciales.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}
