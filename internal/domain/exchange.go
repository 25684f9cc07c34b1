package domain

// Exchange is a single persisted responder round trip: the normalized message
// the widget sent and the reply the script produced for it.
type Exchange struct {
	PK        string
	SK        string
	SessionID string
	Message   string
	Reply     string
	NodeID    string
	Matched   bool
	TTL       int64
}
