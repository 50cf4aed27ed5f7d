package domain

import "time"

// Plan es data de referencia de solo lectura.
type Plan struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	IsFree   bool    `json:"is_free"`
	PriceUSD float64 `json:"price_usd"`
}

// PlanHistory es una entrada append-only del ledger de asignaciones de plan.
type PlanHistory struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	PlanID       string     `json:"plan_id"`
	PurchaseDate time.Time  `json:"purchase_date"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	PriceUSD     float64    `json:"price_usd"`
	IsFree       bool       `json:"is_free"`
	IsCancelled  bool       `json:"is_cancelled"`
}
