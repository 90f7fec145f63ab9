package dto

import "time"

// TeachRequest payload.
type TeachRequest struct {
	Trigger  string `json:"trigger" validate:"required,max=200"`
	Response string `json:"response" validate:"required,max=2000"`
}

// TeachResponse describes a taught response.
type TeachResponse struct {
	ID         int64     `json:"id"`
	Trigger    string    `json:"trigger"`
	Response   string    `json:"response"`
	AuthorID   string    `json:"author_id"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MemoryEntryResponse is one memory log line.
type MemoryEntryResponse struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryStatsResponse summarizes the memory log.
type MemoryStatsResponse struct {
	Total  int                   `json:"total"`
	Oldest *time.Time            `json:"oldest"`
	Newest *time.Time            `json:"newest"`
	Recent []MemoryEntryResponse `json:"recent"`
}
