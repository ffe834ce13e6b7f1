package domain

// ThreadSummary is a read-only view of one conversation thread.
type ThreadSummary struct {
	ThreadID string   `json:"thread_id"`
	Platform Platform `json:"platform"`
	User     string   `json:"user"`
	Intent   string   `json:"intent,omitempty"`
	Expect   string   `json:"expect,omitempty"`
	Ticket   string   `json:"ticket,omitempty"`
	LastSeen string   `json:"last_seen"`
}

// ArchivedTurn is one inbound message and its reply as written to an archive.
type ArchivedTurn struct {
	Inbound Message `json:"inbound"`
	Reply   Message `json:"reply"`
	Intent  string  `json:"intent,omitempty"`
	Ticket  string  `json:"ticket,omitempty"`
}
