package usecase_consensus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/humanbelnik/kinomatch/internal/model"
	"go.uber.org/zap"
)

var (
	// ErrConflict is returned by stores when the quorum transaction lost a
	// lock or serialization race. The engine retries it.
	ErrConflict  = errors.New("vote conflict")
	ErrNotMember = errors.New("user is not a session member")
)

//go:generate mockery --name=SwipeRepository --output=./mocks/repository --filename=repository.go
type SwipeRepository interface {
	InsertSwipe(ctx context.Context, swipe model.Swipe) (model.Swipe, error)
	// VoteAndMaybeMatch counts distinct effective likes for the movie and,
	// if the session quorum is reached and no match exists yet, inserts the
	// match. The whole step is atomic against concurrent callers.
	VoteAndMaybeMatch(ctx context.Context, sessionID model.SessionID, movie model.MovieSummary) (model.VoteOutcome, error)
	UndoLastSwipe(ctx context.Context, sessionID model.SessionID, userID model.UserID) (model.UndoResult, error)
	PartialMatches(ctx context.Context, sessionID model.SessionID, minVotes int) ([]model.PartialMatch, error)
	Matches(ctx context.Context, sessionID model.SessionID) ([]model.Match, error)
}

type Engine struct {
	repo       SwipeRepository
	logger     *zap.Logger
	retries    int
	retryDelay time.Duration
}

func New(repo SwipeRepository, logger *zap.Logger, retries int, retryDelay time.Duration) *Engine {
	if repo == nil {
		panic("usecase_consensus: nil repository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries < 0 {
		retries = 0
	}
	return &Engine{
		repo:       repo,
		logger:     logger.Named("consensus"),
		retries:    retries,
		retryDelay: retryDelay,
	}
}

// RecordVote persists the swipe and, for likes, evaluates the quorum.
// On error the outcome is always the zero value, so IsMatch is false.
func (e *Engine) RecordVote(ctx context.Context, vote model.Vote) (model.VoteOutcome, error) {
	if err := vote.Validate(); err != nil {
		return model.VoteOutcome{}, err
	}
	if _, err := uuid.Parse(vote.SessionID); err != nil {
		return model.VoteOutcome{}, model.ErrSessionNotFound
	}
	if vote.Movie.ID == 0 {
		vote.Movie.ID = vote.MovieID
	}
	if vote.Movie.ID != vote.MovieID {
		return model.VoteOutcome{}, fmt.Errorf("%w: snapshot of movie %d attached to vote on %d",
			model.ErrValidation, vote.Movie.ID, vote.MovieID)
	}

	if _, err := e.repo.InsertSwipe(ctx, model.Swipe{
		SessionID: vote.SessionID,
		UserID:    vote.UserID,
		MovieID:   vote.MovieID,
		Direction: vote.Direction,
		Movie:     vote.Movie,
	}); err != nil {
		return model.VoteOutcome{}, e.storeError("insert swipe", err)
	}

	if vote.Direction == model.Dislike {
		return model.VoteOutcome{}, nil
	}

	outcome, err := e.voteWithRetry(ctx, vote)
	if err != nil {
		return model.VoteOutcome{}, e.storeError("vote", err)
	}

	if outcome.IsMatch {
		e.logger.Info("match formed",
			zap.String("session_id", vote.SessionID),
			zap.Int64("movie_id", vote.MovieID),
			zap.Int("likes", outcome.LikesCount),
			zap.Int("required", outcome.RequiredVotes),
		)
	}
	return outcome, nil
}

// Conflicts are retried with a linear backoff. Anything else is final.
func (e *Engine) voteWithRetry(ctx context.Context, vote model.Vote) (model.VoteOutcome, error) {
	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			e.logger.Warn("retrying quorum check",
				zap.String("session_id", vote.SessionID),
				zap.Int64("movie_id", vote.MovieID),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return model.VoteOutcome{}, errors.Join(lastErr, ctx.Err())
			case <-time.After(time.Duration(attempt) * e.retryDelay):
			}
		}

		outcome, err := e.repo.VoteAndMaybeMatch(ctx, vote.SessionID, vote.Movie)
		if err == nil {
			return outcome, nil
		}
		if !errors.Is(err, ErrConflict) {
			return model.VoteOutcome{}, err
		}
		lastErr = err
	}
	return model.VoteOutcome{}, lastErr
}

// UndoLastVote retracts the user's most recent swipe in the session.
// Success is false when there is nothing left to retract. Matches are kept.
func (e *Engine) UndoLastVote(ctx context.Context, sessionID model.SessionID, userID model.UserID) (model.UndoResult, error) {
	if userID == "" {
		return model.UndoResult{}, fmt.Errorf("%w: empty user id", model.ErrValidation)
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return model.UndoResult{}, model.ErrSessionNotFound
	}

	result, err := e.repo.UndoLastSwipe(ctx, sessionID, userID)
	if err != nil {
		return model.UndoResult{}, e.storeError("undo", err)
	}
	return result, nil
}

// PartialMatches lists movies liked by at least minVotes members that have
// not formed a match yet. minVotes below 1 is raised to 1.
func (e *Engine) PartialMatches(ctx context.Context, sessionID model.SessionID, minVotes int) ([]model.PartialMatch, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, model.ErrSessionNotFound
	}
	if minVotes < 1 {
		minVotes = 1
	}

	partials, err := e.repo.PartialMatches(ctx, sessionID, minVotes)
	if err != nil {
		return nil, e.storeError("partial matches", err)
	}
	return partials, nil
}

func (e *Engine) Matches(ctx context.Context, sessionID model.SessionID) ([]model.Match, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, model.ErrSessionNotFound
	}

	matches, err := e.repo.Matches(ctx, sessionID)
	if err != nil {
		return nil, e.storeError("matches", err)
	}
	return matches, nil
}

func (e *Engine) storeError(op string, err error) error {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return model.ErrSessionNotFound
	case errors.Is(err, ErrNotMember):
		return ErrNotMember
	case errors.Is(err, context.Canceled):
		return err
	}
	e.logger.Error("swipe store failure", zap.String("op", op), zap.Error(err))
	return errors.Join(model.ErrTransientStore, err)
}
