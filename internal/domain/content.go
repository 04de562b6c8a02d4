package domain

import "time"

// Photo is an uploaded image with its generated or user supplied description.
type Photo struct {
	ID          string
	AuthorID    string
	Description string
	Filename    string
	FilenameS   string
	FilenameM   string
	Tags        []Tag
	CreatedAt   time.Time
}

// Tag labels photos; names are unique.
type Tag struct {
	ID   string
	Name string
}

// Comment is a user's remark on a photo.
type Comment struct {
	ID        string
	AuthorID  string
	PhotoID   string
	Body      string
	CreatedAt time.Time
}

// Notification is an in-app message for a user.
type Notification struct {
	ID         string
	ReceiverID string
	Message    string
	IsRead     bool
	CreatedAt  time.Time
}
