package store

// Session is a single conversation thread identified by an opaque id.
// The id is client-supplied or server-generated; it owns an ordered
// sequence of messages.
type Session struct {
	ID        string
	Title     string
	CreatedTs int64
	UpdatedTs int64
}

type FindSession struct {
	ID    *string
	Limit *int
}

type UpdateSession struct {
	ID        string
	Title     *string
	UpdatedTs *int64
}

type DeleteSession struct {
	ID string
}

// SessionSummary is the list_sessions projection: the stored title doubles
// as the preview, counts cover user/assistant turns only.
type SessionSummary struct {
	SessionID    string
	Preview      string
	CreatedTs    int64
	UpdatedTs    int64
	MessageCount int
}
