package infra_postgres_session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/humanbelnik/kinomatch/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Driver struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Driver {
	return &Driver{db: db}
}

type sessionDTO struct {
	ID               string         `db:"id"`
	HostID           string         `db:"host_id"`
	ProviderIDs      pq.StringArray `db:"provider_ids"`
	GenreIDs         pq.StringArray `db:"genre_ids"`
	MaxCertification string         `db:"max_certification"`
	RequiredVotes    int            `db:"required_votes"`
	TotalMembers     int            `db:"total_members"`
	Active           bool           `db:"active"`
	CreatedAt        time.Time      `db:"created_at"`
}

func (dto sessionDTO) toModel() model.Session {
	// Unknown labels fall back to the default rating.
	cert, _ := model.ParseCertification(dto.MaxCertification)
	return model.Session{
		ID:     dto.ID,
		HostID: dto.HostID,
		Filters: model.Filters{
			ProviderIDs:      []string(dto.ProviderIDs),
			GenreIDs:         []string(dto.GenreIDs),
			MaxCertification: cert,
		},
		RequiredVotes: dto.RequiredVotes,
		TotalMembers:  dto.TotalMembers,
		Active:        dto.Active,
		CreatedAt:     dto.CreatedAt,
	}
}

type memberDTO struct {
	ID        int64     `db:"id"`
	SessionID string    `db:"session_id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	JoinedAt  time.Time `db:"joined_at"`
}

func (dto memberDTO) toModel() model.Member {
	return model.Member{
		SessionID: dto.SessionID,
		UserID:    dto.UserID,
		Name:      dto.Name,
		JoinedAt:  dto.JoinedAt,
	}
}

type swipeCountDTO struct {
	UserID string `db:"user_id"`
	Name   string `db:"name"`
	Count  int    `db:"count"`
}

// Create inserts the session and its host member in one transaction.
func (d *Driver) Create(ctx context.Context, session model.Session) (model.Session, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Session{}, err
	}
	defer func() { _ = tx.Rollback() }()

	insertSessionQuery := `
		INSERT INTO sessions (id, host_id, provider_ids, genre_ids, max_certification, required_votes, total_members, active)
		VALUES ($1, $2, $3, $4, $5, $6, 1, TRUE)
		RETURNING created_at
	`

	var createdAt time.Time
	err = tx.GetContext(ctx, &createdAt, insertSessionQuery,
		session.ID,
		session.HostID,
		pq.StringArray(session.Filters.ProviderIDs),
		pq.StringArray(session.Filters.GenreIDs),
		session.Filters.MaxCertification.String(),
		session.RequiredVotes,
	)
	if err != nil {
		return model.Session{}, err
	}

	insertHostQuery := `
		INSERT INTO session_members (session_id, user_id, name)
		VALUES ($1, $2, $3)
	`

	if _, err := tx.ExecContext(ctx, insertHostQuery, session.ID, session.HostID, model.HostMemberName); err != nil {
		return model.Session{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Session{}, err
	}

	session.TotalMembers = 1
	session.Active = true
	session.CreatedAt = createdAt
	return session, nil
}

func (d *Driver) Get(ctx context.Context, id model.SessionID) (model.Session, error) {
	var dto sessionDTO

	query := `
		SELECT id, host_id, provider_ids, genre_ids, max_certification, required_votes, total_members, active, created_at
		FROM sessions
		WHERE id = $1
	`

	err := d.db.GetContext(ctx, &dto, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, model.ErrSessionNotFound
		}
		return model.Session{}, err
	}

	return dto.toModel(), nil
}

func (d *Driver) IsMember(ctx context.Context, id model.SessionID, userID model.UserID) (bool, error) {
	var result struct {
		SessionExists bool `db:"session_exists"`
		IsMember      bool `db:"is_member"`
	}

	query := `
		SELECT
			EXISTS (SELECT 1 FROM sessions WHERE id = $1) AS session_exists,
			EXISTS (SELECT 1 FROM session_members WHERE session_id = $1 AND user_id = $2) AS is_member
	`

	if err := d.db.GetContext(ctx, &result, query, id, userID); err != nil {
		return false, err
	}
	if !result.SessionExists {
		return false, model.ErrSessionNotFound
	}

	return result.IsMember, nil
}

// Join adds the member unless present. The session row is locked so the
// member count grows exactly once per new member.
func (d *Driver) Join(ctx context.Context, member model.Member) (model.Member, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Member{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var sessionID string
	lockQuery := `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &sessionID, lockQuery, member.SessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Member{}, model.ErrSessionNotFound
		}
		return model.Member{}, err
	}

	var dto memberDTO
	insertQuery := `
		INSERT INTO session_members (session_id, user_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, user_id) DO NOTHING
		RETURNING id, session_id, user_id, COALESCE(name, '') AS name, joined_at
	`

	err = tx.GetContext(ctx, &dto, insertQuery, member.SessionID, member.UserID, member.Name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existingQuery := `
			SELECT id, session_id, user_id, COALESCE(name, '') AS name, joined_at
			FROM session_members
			WHERE session_id = $1 AND user_id = $2
		`
		if err := tx.GetContext(ctx, &dto, existingQuery, member.SessionID, member.UserID); err != nil {
			return model.Member{}, err
		}
		return dto.toModel(), tx.Commit()
	case err != nil:
		return model.Member{}, err
	}

	updateCountQuery := `
		UPDATE sessions
		SET total_members = total_members + 1
		WHERE id = $1
	`

	if _, err := tx.ExecContext(ctx, updateCountQuery, member.SessionID); err != nil {
		return model.Member{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Member{}, err
	}
	return dto.toModel(), nil
}

func (d *Driver) MemberSwipeCounts(ctx context.Context, id model.SessionID) ([]model.MemberSwipeCount, error) {
	var counts []swipeCountDTO

	query := `
		SELECT
			m.user_id,
			COALESCE(m.name, '') AS name,
			COUNT(s.id) AS count
		FROM session_members m
		LEFT JOIN swipes s
			ON s.session_id = m.session_id AND s.user_id = m.user_id AND s.retracted_at IS NULL
		WHERE m.session_id = $1
		GROUP BY m.id, m.user_id, m.name
		ORDER BY m.id
	`

	if err := d.db.SelectContext(ctx, &counts, query, id); err != nil {
		return nil, err
	}
	// Every session has at least its host as member.
	if len(counts) == 0 {
		return nil, model.ErrSessionNotFound
	}

	result := make([]model.MemberSwipeCount, 0, len(counts))
	for _, c := range counts {
		result = append(result, model.MemberSwipeCount{
			UserID: c.UserID,
			Name:   c.Name,
			Count:  c.Count,
		})
	}
	return result, nil
}

func (d *Driver) UpdateFilters(ctx context.Context, id model.SessionID, filters model.Filters) (bool, error) {
	query := `
		UPDATE sessions
		SET provider_ids = $2, genre_ids = $3, max_certification = $4
		WHERE id = $1 AND active
	`

	res, err := d.db.ExecContext(ctx, query,
		id,
		pq.StringArray(filters.ProviderIDs),
		pq.StringArray(filters.GenreIDs),
		filters.MaxCertification.String(),
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MemberByID loads a member row announced by the change feed.
func (d *Driver) MemberByID(ctx context.Context, id int64) (model.Member, error) {
	var dto memberDTO

	query := `
		SELECT id, session_id, user_id, COALESCE(name, '') AS name, joined_at
		FROM session_members
		WHERE id = $1
	`

	if err := d.db.GetContext(ctx, &dto, query, id); err != nil {
		return model.Member{}, err
	}
	return dto.toModel(), nil
}
