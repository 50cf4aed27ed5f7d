package domain

import "time"

type Profile struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	ProfilePicture string     `json:"profile_picture,omitempty"`
	PlanID         string     `json:"plan_id"`
	PurchaseDate   time.Time  `json:"purchase_date"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	IsExpired      bool       `json:"is_expired"`
}
