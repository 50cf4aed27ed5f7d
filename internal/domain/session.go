package domain

import "time"

// SessionUser es la vista de identidad expuesta a rutas protegidas.
type SessionUser struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// Session se deriva en cada request a partir del token firmado; no se persiste.
type Session struct {
	User      SessionUser `json:"user"`
	ExpiresAt time.Time   `json:"expires"`
}
