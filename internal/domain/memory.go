package domain

import "time"

// MemoryEntry is one line of the global memory log.
type MemoryEntry struct {
	ID        string
	GuildID   string
	ChannelID string
	UserID    string
	Username  string
	Content   string
	CreatedAt time.Time
}

// MemoryStats summarizes the memory log for operators.
type MemoryStats struct {
	Total  int
	Oldest *time.Time
	Newest *time.Time
	Recent []MemoryEntry
}
