// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns reindex requests into index rebuilds.
package queue

import "time"

// Post event types.
const (
	PostCreated   = "post.created"
	PostUpdated   = "post.updated"
	PostDeleted   = "post.deleted"
	PostUndeleted = "post.undeleted"
)

// PostEvent is published after a mutation has been written to the content
// store. Consumers (webmention senders, syndication workers) get enough to
// fetch the post without reading the content tree.
type PostEvent struct {
	Type       string    `json:"type"`
	PostID     string    `json:"post_id"`
	URL        string    `json:"url"`
	Kind       string    `json:"kind"`
	Syndicate  []string  `json:"syndicate_to,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ReindexRequest asks the server to rebuild its index, typically after an
// importer wrote files straight into the content tree.
type ReindexRequest struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}
