package domain

import "time"

// ChannelMessage is a message read back from a ticket channel when building transcripts.
type ChannelMessage struct {
	ID          string
	AuthorID    string
	AuthorName  string
	Content     string
	Embeds      []string
	Attachments []AttachmentReference
	CreatedAt   time.Time
}

// AttachmentReference stores metadata for a file posted in a ticket channel.
type AttachmentReference struct {
	FileName string
	URL      string
}
