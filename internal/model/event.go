package model

type EventType string

const (
	EventMatchInserted  EventType = "MATCH_INSERTED"
	EventMemberInserted EventType = "MEMBER_INSERTED"
)

// FeedEvent carries a newly inserted row of the session change feed.
type FeedEvent struct {
	Type      EventType `json:"type"`
	SessionID SessionID `json:"session_id"`
	Match     *Match    `json:"match,omitempty"`
	Member    *Member   `json:"member,omitempty"`
}

func MatchInserted(m Match) FeedEvent {
	return FeedEvent{Type: EventMatchInserted, SessionID: m.SessionID, Match: &m}
}

func MemberInserted(m Member) FeedEvent {
	return FeedEvent{Type: EventMemberInserted, SessionID: m.SessionID, Member: &m}
}
