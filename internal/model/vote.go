package model

import (
	"fmt"
	"strings"
	"time"
)

type Direction string

const (
	Like    Direction = "like"
	Dislike Direction = "dislike"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Like, Dislike:
		return d, nil
	default:
		return "", fmt.Errorf("%w: unknown direction %q", ErrValidation, s)
	}
}

type Swipe struct {
	ID          int64        `json:"id"`
	SessionID   SessionID    `json:"session_id"`
	UserID      UserID       `json:"user_id"`
	MovieID     int64        `json:"movie_id"`
	Direction   Direction    `json:"direction"`
	Movie       MovieSummary `json:"movie"`
	CreatedAt   time.Time    `json:"created_at"`
	RetractedAt *time.Time   `json:"retracted_at,omitempty"`
}

type Vote struct {
	SessionID SessionID
	UserID    UserID
	MovieID   int64
	Direction Direction
	Movie     MovieSummary
}

func (v Vote) Validate() error {
	switch {
	case v.SessionID == "":
		return fmt.Errorf("%w: empty session id", ErrValidation)
	case v.UserID == "":
		return fmt.Errorf("%w: empty user id", ErrValidation)
	case v.MovieID <= 0:
		return fmt.Errorf("%w: invalid movie id %d", ErrValidation, v.MovieID)
	case v.Direction != Like && v.Direction != Dislike:
		return fmt.Errorf("%w: unknown direction %q", ErrValidation, v.Direction)
	}
	return nil
}

type VoteOutcome struct {
	IsMatch       bool `json:"is_match"`
	LikesCount    int  `json:"likes_count"`
	RequiredVotes int  `json:"required_votes"`
}

type UndoResult struct {
	Success bool  `json:"success"`
	MovieID int64 `json:"movie_id,omitempty"`
}

type Match struct {
	ID        int64        `json:"id"`
	SessionID SessionID    `json:"session_id"`
	MovieID   int64        `json:"movie_id"`
	Movie     MovieSummary `json:"movie"`
	MatchedAt time.Time    `json:"matched_at"`
}

type PartialMatch struct {
	MovieID    int64        `json:"movie_id"`
	LikesCount int          `json:"likes_count"`
	Movie      MovieSummary `json:"movie"`
}
