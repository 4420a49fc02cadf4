package model

import "time"

// Review is a user's rating of a trail.
type Review struct {
	ID        string    `json:"id"`
	TrailID   string    `json:"trail_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"` // 1..5
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingSummary aggregates reviews for one trail.
type RatingSummary struct {
	TrailID string  `json:"trail_id"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// Sum returns the total of all ratings.
func (r RatingSummary) Sum() float64 {
	return r.Average * float64(r.Count)
}
