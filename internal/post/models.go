package post

import (
	"io"
	"time"
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
)

type Post struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	City       string     `json:"city"`
	District   string     `json:"district"`
	Location   string     `json:"location"`
	CreatedAt  time.Time  `json:"created_at"`
	AcceptedAt *time.Time `json:"accepted_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Images     []Image    `json:"images"`
}

type Image struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
	URL    string `json:"url"`
	Order  int    `json:"order"`
}

type CreateInput struct {
	Name     string
	Email    string
	City     string
	District string
	Location string
}

// ImageUpload is one submitted photo, not yet stored.
type ImageUpload struct {
	Filename string
	Reader   io.Reader
}

// UpdateInput is a partial patch. A nil field was not sent and stays
// untouched; only present fields are validated and written.
type UpdateInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	City     *string `json:"city"`
	District *string `json:"district"`
	Location *string `json:"location"`
}

type ListFilter struct {
	Status string
	City   string
}
