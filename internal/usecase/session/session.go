package usecase_session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/humanbelnik/kinomatch/internal/model"
	"go.uber.org/zap"
)

var (
	ErrNotHost         = errors.New("only the host can change the session")
	ErrSessionInactive = errors.New("session is no longer active")
)

//go:generate mockery --name=SessionRepository --output=./mocks/repository --filename=repository.go
type SessionRepository interface {
	// Create stores the session and its host as the first member.
	Create(ctx context.Context, session model.Session) (model.Session, error)
	Get(ctx context.Context, id model.SessionID) (model.Session, error)
	IsMember(ctx context.Context, id model.SessionID, userID model.UserID) (bool, error)
	// Join is idempotent. TotalMembers grows only when the member is new.
	Join(ctx context.Context, member model.Member) (model.Member, error)
	MemberSwipeCounts(ctx context.Context, id model.SessionID) ([]model.MemberSwipeCount, error)
	UpdateFilters(ctx context.Context, id model.SessionID, filters model.Filters) (bool, error)
}

type Usecase struct {
	repo   SessionRepository
	logger *zap.Logger
}

func New(repo SessionRepository, logger *zap.Logger) *Usecase {
	if repo == nil {
		panic("usecase_session: nil repository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Usecase{
		repo:   repo,
		logger: logger.Named("session"),
	}
}

// Create opens a session hosted by hostID. requiredVotes == 0 picks the default quorum.
func (u *Usecase) Create(ctx context.Context, hostID model.UserID, filters model.Filters, requiredVotes int) (model.Session, error) {
	if strings.TrimSpace(hostID) == "" {
		return model.Session{}, fmt.Errorf("%w: empty host id", model.ErrValidation)
	}
	if err := filters.Validate(); err != nil {
		return model.Session{}, err
	}
	if requiredVotes == 0 {
		requiredVotes = model.DefaultRequiredVotes
	}
	if requiredVotes < 1 {
		return model.Session{}, fmt.Errorf("%w: required votes must be at least 1", model.ErrValidation)
	}

	session, err := u.repo.Create(ctx, model.Session{
		ID:            uuid.New().String(),
		HostID:        hostID,
		Filters:       filters.Normalize(),
		RequiredVotes: requiredVotes,
		TotalMembers:  1,
		Active:        true,
	})
	if err != nil {
		return model.Session{}, u.storeError("create", err)
	}

	u.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.Int("required_votes", session.RequiredVotes),
	)
	return session, nil
}

func (u *Usecase) Get(ctx context.Context, id model.SessionID) (model.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Session{}, model.ErrSessionNotFound
	}

	session, err := u.repo.Get(ctx, id)
	if err != nil {
		return model.Session{}, u.storeError("get", err)
	}
	return session, nil
}

func (u *Usecase) IsMember(ctx context.Context, id model.SessionID, userID model.UserID) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, model.ErrSessionNotFound
	}
	if userID == "" {
		return false, nil
	}

	isMember, err := u.repo.IsMember(ctx, id, userID)
	if err != nil {
		return false, u.storeError("is member", err)
	}
	return isMember, nil
}

func (u *Usecase) Join(ctx context.Context, id model.SessionID, userID model.UserID, name string) (model.Member, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Member{}, model.ErrSessionNotFound
	}
	name = strings.TrimSpace(name)
	switch {
	case userID == "":
		return model.Member{}, fmt.Errorf("%w: empty user id", model.ErrValidation)
	case name == "":
		return model.Member{}, fmt.Errorf("%w: enter a name to join", model.ErrValidation)
	}

	member, err := u.repo.Join(ctx, model.Member{
		SessionID: id,
		UserID:    userID,
		Name:      name,
	})
	if err != nil {
		return model.Member{}, u.storeError("join", err)
	}
	return member, nil
}

func (u *Usecase) MemberSwipeCounts(ctx context.Context, id model.SessionID) ([]model.MemberSwipeCount, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.ErrSessionNotFound
	}

	counts, err := u.repo.MemberSwipeCounts(ctx, id)
	if err != nil {
		return nil, u.storeError("member swipe counts", err)
	}
	return counts, nil
}

// UpdateFilters replaces the filter set. Only the host of an active session may do it.
func (u *Usecase) UpdateFilters(ctx context.Context, id model.SessionID, userID model.UserID, filters model.Filters) error {
	if err := filters.Validate(); err != nil {
		return err
	}

	session, err := u.Get(ctx, id)
	if err != nil {
		return err
	}
	if !session.IsHost(userID) {
		return ErrNotHost
	}
	if !session.Active {
		return ErrSessionInactive
	}

	updated, err := u.repo.UpdateFilters(ctx, id, filters.Normalize())
	if err != nil {
		return u.storeError("update filters", err)
	}
	if !updated {
		return model.ErrSessionNotFound
	}

	u.logger.Info("session filters updated", zap.String("session_id", id))
	return nil
}

func (u *Usecase) storeError(op string, err error) error {
	if errors.Is(err, model.ErrSessionNotFound) {
		return model.ErrSessionNotFound
	}
	u.logger.Error("session store failure", zap.String("op", op), zap.Error(err))
	return errors.Join(model.ErrTransientStore, err)
}
