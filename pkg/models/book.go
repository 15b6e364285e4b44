package models

import "time"

type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Description     string    `json:"description,omitempty"`
	Categories      []string  `json:"categories"`
	PublishedAt     string    `json:"published_at,omitempty"`
	CoverURL        string    `json:"cover_url,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	// Disponible is derived from AvailableCopies at read time, never stored.
	Disponible bool      `json:"disponible"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
