package models

import "time"

type Link struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	URL       string    `json:"url" db:"url"`
	Order     *int      `json:"order" db:"display_order"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type LinkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Order *int   `json:"order"`
}

// LinkPatch carries the fields of a link update; nil fields are left as-is.
type LinkPatch struct {
	Title *string `json:"title"`
	URL   *string `json:"url"`
	Order *int    `json:"order"`
}
