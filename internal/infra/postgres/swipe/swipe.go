package infra_postgres_swipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/humanbelnik/kinomatch/internal/model"
	usecase_consensus "github.com/humanbelnik/kinomatch/internal/usecase/consensus"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	codeForeignKeyViolation = "23503"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
	codeLockNotAvailable    = "55P03"
)

type Driver struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Driver {
	return &Driver{db: db}
}

type swipeDTO struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}

type matchDTO struct {
	ID        int64     `db:"id"`
	SessionID string    `db:"session_id"`
	MovieID   int64     `db:"movie_id"`
	Movie     []byte    `db:"movie"`
	MatchedAt time.Time `db:"matched_at"`
}

func (dto matchDTO) toModel() (model.Match, error) {
	var movie model.MovieSummary
	if err := json.Unmarshal(dto.Movie, &movie); err != nil {
		return model.Match{}, fmt.Errorf("decode match %d snapshot: %w", dto.ID, err)
	}
	return model.Match{
		ID:        dto.ID,
		SessionID: dto.SessionID,
		MovieID:   dto.MovieID,
		Movie:     movie,
		MatchedAt: dto.MatchedAt,
	}, nil
}

type partialDTO struct {
	MovieID    int64  `db:"movie_id"`
	LikesCount int    `db:"likes_count"`
	Movie      []byte `db:"movie"`
}

// effectiveSwipes keeps, per user and movie, the latest swipe that was not retracted.
const effectiveSwipes = `
	SELECT DISTINCT ON (user_id, movie_id) user_id, movie_id, direction, movie
	FROM swipes
	WHERE session_id = $1 AND retracted_at IS NULL
	ORDER BY user_id, movie_id, id DESC
`

func (d *Driver) InsertSwipe(ctx context.Context, swipe model.Swipe) (model.Swipe, error) {
	movie, err := json.Marshal(swipe.Movie)
	if err != nil {
		return model.Swipe{}, err
	}

	query := `
		INSERT INTO swipes (session_id, user_id, movie_id, direction, movie)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	var dto swipeDTO
	err = d.db.GetContext(ctx, &dto, query,
		swipe.SessionID,
		swipe.UserID,
		swipe.MovieID,
		string(swipe.Direction),
		movie,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation {
			return model.Swipe{}, d.missingMemberError(ctx, swipe.SessionID)
		}
		return model.Swipe{}, err
	}

	swipe.ID = dto.ID
	swipe.CreatedAt = dto.CreatedAt
	swipe.RetractedAt = nil
	return swipe, nil
}

func (d *Driver) missingMemberError(ctx context.Context, id model.SessionID) error {
	var exists bool
	if err := d.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id); err != nil {
		return err
	}
	if !exists {
		return model.ErrSessionNotFound
	}
	return usecase_consensus.ErrNotMember
}

// VoteAndMaybeMatch runs the quorum check and the match insert in one
// transaction. A transaction scoped advisory lock on (session, movie)
// serializes concurrent voters on the same title, and the unique
// (session_id, movie_id) constraint keeps the insert single.
func (d *Driver) VoteAndMaybeMatch(ctx context.Context, sessionID model.SessionID, movie model.MovieSummary) (model.VoteOutcome, error) {
	snapshot, err := json.Marshal(movie)
	if err != nil {
		return model.VoteOutcome{}, err
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.VoteOutcome{}, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	lockQuery := `SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`
	if _, err := tx.ExecContext(ctx, lockQuery, sessionID, strconv.FormatInt(movie.ID, 10)); err != nil {
		return model.VoteOutcome{}, classify(err)
	}

	var requiredVotes int
	if err := tx.GetContext(ctx, &requiredVotes, `SELECT required_votes FROM sessions WHERE id = $1`, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.VoteOutcome{}, model.ErrSessionNotFound
		}
		return model.VoteOutcome{}, classify(err)
	}

	tallyQuery := `
		SELECT COUNT(*)
		FROM (` + effectiveSwipes + `) e
		WHERE e.movie_id = $2 AND e.direction = 'like'
	`

	var likes int
	if err := tx.GetContext(ctx, &likes, tallyQuery, sessionID, movie.ID); err != nil {
		return model.VoteOutcome{}, classify(err)
	}

	outcome := model.VoteOutcome{
		LikesCount:    likes,
		RequiredVotes: requiredVotes,
	}

	if likes >= requiredVotes {
		insertMatchQuery := `
			INSERT INTO matches (session_id, movie_id, movie)
			VALUES ($1, $2, $3)
			ON CONFLICT (session_id, movie_id) DO NOTHING
			RETURNING id
		`

		var matchID int64
		err := tx.GetContext(ctx, &matchID, insertMatchQuery, sessionID, movie.ID, snapshot)
		switch {
		case err == nil:
			outcome.IsMatch = true
		case errors.Is(err, sql.ErrNoRows):
		default:
			return model.VoteOutcome{}, classify(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.VoteOutcome{}, classify(err)
	}
	return outcome, nil
}

// UndoLastSwipe retracts the user's latest swipe unless it is already
// retracted. Live duplicates of that swipe on the same movie, left behind by
// a retried vote, are retracted with it.
func (d *Driver) UndoLastSwipe(ctx context.Context, sessionID model.SessionID, userID model.UserID) (model.UndoResult, error) {
	query := `
		WITH last AS (
			SELECT movie_id, retracted_at
			FROM swipes
			WHERE session_id = $1 AND user_id = $2
			ORDER BY id DESC
			LIMIT 1
		)
		UPDATE swipes s
		SET retracted_at = now()
		FROM last
		WHERE last.retracted_at IS NULL
			AND s.session_id = $1
			AND s.user_id = $2
			AND s.movie_id = last.movie_id
			AND s.retracted_at IS NULL
		RETURNING s.movie_id
	`

	var movieIDs []int64
	if err := d.db.SelectContext(ctx, &movieIDs, query, sessionID, userID); err != nil {
		return model.UndoResult{}, err
	}
	if len(movieIDs) == 0 {
		return model.UndoResult{}, nil
	}

	return model.UndoResult{Success: true, MovieID: movieIDs[0]}, nil
}

func (d *Driver) PartialMatches(ctx context.Context, sessionID model.SessionID, minVotes int) ([]model.PartialMatch, error) {
	var partials []partialDTO

	query := `
		SELECT e.movie_id, COUNT(*) AS likes_count, (array_agg(e.movie))[1] AS movie
		FROM (` + effectiveSwipes + `) e
		WHERE e.direction = 'like'
			AND NOT EXISTS (
				SELECT 1 FROM matches m WHERE m.session_id = $1 AND m.movie_id = e.movie_id
			)
		GROUP BY e.movie_id
		HAVING COUNT(*) >= $2
		ORDER BY likes_count DESC, e.movie_id
	`

	if err := d.db.SelectContext(ctx, &partials, query, sessionID, minVotes); err != nil {
		return nil, err
	}

	result := make([]model.PartialMatch, 0, len(partials))
	for _, p := range partials {
		var movie model.MovieSummary
		if err := json.Unmarshal(p.Movie, &movie); err != nil {
			return nil, fmt.Errorf("decode movie %d snapshot: %w", p.MovieID, err)
		}
		result = append(result, model.PartialMatch{
			MovieID:    p.MovieID,
			LikesCount: p.LikesCount,
			Movie:      movie,
		})
	}
	return result, nil
}

func (d *Driver) Matches(ctx context.Context, sessionID model.SessionID) ([]model.Match, error) {
	var matches []matchDTO

	query := `
		SELECT id, session_id, movie_id, movie, matched_at
		FROM matches
		WHERE session_id = $1
		ORDER BY matched_at DESC, id DESC
	`

	if err := d.db.SelectContext(ctx, &matches, query, sessionID); err != nil {
		return nil, err
	}

	result := make([]model.Match, 0, len(matches))
	for _, dto := range matches {
		m, err := dto.toModel()
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, nil
}

// MatchByID loads a match row announced by the change feed.
func (d *Driver) MatchByID(ctx context.Context, id int64) (model.Match, error) {
	var dto matchDTO

	query := `
		SELECT id, session_id, movie_id, movie, matched_at
		FROM matches
		WHERE id = $1
	`

	if err := d.db.GetContext(ctx, &dto, query, id); err != nil {
		return model.Match{}, err
	}
	return dto.toModel()
}

func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerialization, codeDeadlock, codeLockNotAvailable:
			return fmt.Errorf("%w: %w", usecase_consensus.ErrConflict, err)
		}
	}
	return err
}
