//go:build integration
// +build integration

package integrationtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	infra_pg_init "github.com/humanbelnik/kinomatch/internal/infra/postgres/init"
	infra_postgres_notify "github.com/humanbelnik/kinomatch/internal/infra/postgres/notify"
	infra_postgres_session "github.com/humanbelnik/kinomatch/internal/infra/postgres/session"
	infra_postgres_swipe "github.com/humanbelnik/kinomatch/internal/infra/postgres/swipe"
	"github.com/humanbelnik/kinomatch/internal/model"
	service_fanout "github.com/humanbelnik/kinomatch/internal/service/fanout"
	usecase_consensus "github.com/humanbelnik/kinomatch/internal/usecase/consensus"
	usecase_session "github.com/humanbelnik/kinomatch/internal/usecase/session"

	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
)

type SessionIntegrationSuite struct {
	suite.Suite
	sessions *usecase_session.Usecase
	engine   *usecase_consensus.Engine
	hub      *service_fanout.Hub
	cancel   context.CancelFunc
	listener *infra_postgres_notify.Listener
}

func (s *SessionIntegrationSuite) BeforeAll(t provider.T) {
	cfg, err := getConfig()
	t.Require().NoError(err)

	db := infra_pg_init.MustEstablishConn(cfg.Postgres)
	sessionDriver := infra_postgres_session.New(db)
	swipeDriver := infra_postgres_swipe.New(db)

	s.hub = service_fanout.New(nil, 0)
	s.sessions = usecase_session.New(sessionDriver, nil)
	s.engine = usecase_consensus.New(swipeDriver, nil, cfg.Consensus.VoteRetries, cfg.Consensus.RetryDelay)

	source, err := infra_postgres_notify.Connect(cfg.Postgres.DSN(), infra_pg_init.FeedChannel, nil)
	t.Require().NoError(err)
	s.listener = infra_postgres_notify.New(source, swipeDriver, sessionDriver, s.hub, nil)

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	go func() { _ = s.listener.Run(ctx) }()
}

func (s *SessionIntegrationSuite) AfterAll(t provider.T) {
	s.cancel()
	_ = s.listener.Close()
	s.hub.Close()
}

func comedy() model.Filters {
	return model.Filters{ProviderIDs: []string{"8"}, GenreIDs: []string{"35"}, MaxCertification: model.DefaultCertification}
}

func (s *SessionIntegrationSuite) TestIntegrationMatchFlow(t provider.T) {
	ctx := context.Background()
	host, guest := uuid.NewString(), uuid.NewString()

	session, err := s.sessions.Create(ctx, host, comedy(), 2)
	t.Require().NoError(err)
	sub := s.hub.Subscribe(session.ID)
	defer sub.Unsubscribe()

	_, err = s.sessions.Join(ctx, session.ID, guest, "Anna")
	t.Require().NoError(err)

	movie := model.MovieSummary{ID: 550, Title: "Fight Club"}
	outcome, err := s.engine.RecordVote(ctx, model.Vote{SessionID: session.ID, UserID: host, MovieID: movie.ID, Direction: model.Like, Movie: movie})
	t.Require().NoError(err)
	assert.False(t, outcome.IsMatch)
	assert.Equal(t, 1, outcome.LikesCount)

	outcome, err = s.engine.RecordVote(ctx, model.Vote{SessionID: session.ID, UserID: guest, MovieID: movie.ID, Direction: model.Like, Movie: movie})
	t.Require().NoError(err)
	assert.True(t, outcome.IsMatch)

	matches, err := s.engine.Matches(ctx, session.ID)
	t.Require().NoError(err)
	t.Require().Len(matches, 1)
	assert.Equal(t, "Fight Club", matches[0].Movie.Title)

	var sawMember, sawMatch bool
	deadline := time.After(5 * time.Second)
	for !(sawMember && sawMatch) {
		select {
		case event := <-sub.Events():
			switch event.Type {
			case model.EventMemberInserted:
				sawMember = event.Member.Name == "Anna"
			case model.EventMatchInserted:
				sawMatch = event.Match.MovieID == movie.ID
			}
		case <-deadline:
			assert.Failf(t, "feed incomplete", "member %v, match %v", sawMember, sawMatch)
			return
		}
	}
}

func (s *SessionIntegrationSuite) TestIntegrationUndo(t provider.T) {
	ctx := context.Background()
	host := uuid.NewString()

	session, err := s.sessions.Create(ctx, host, comedy(), 2)
	t.Require().NoError(err)

	movie := model.MovieSummary{ID: 13, Title: "Forrest Gump"}
	_, err = s.engine.RecordVote(ctx, model.Vote{SessionID: session.ID, UserID: host, MovieID: movie.ID, Direction: model.Like, Movie: movie})
	t.Require().NoError(err)

	partials, err := s.engine.PartialMatches(ctx, session.ID, 1)
	t.Require().NoError(err)
	assert.Len(t, partials, 1)

	result, err := s.engine.UndoLastVote(ctx, session.ID, host)
	t.Require().NoError(err)
	assert.True(t, result.Success)
	assert.Equal(t, movie.ID, result.MovieID)

	partials, err = s.engine.PartialMatches(ctx, session.ID, 1)
	t.Require().NoError(err)
	assert.Empty(t, partials)

	result, err = s.engine.UndoLastVote(ctx, session.ID, host)
	t.Require().NoError(err)
	assert.False(t, result.Success)
}

func (s *SessionIntegrationSuite) TestIntegrationHostOnlyFilters(t provider.T) {
	ctx := context.Background()
	host, guest := uuid.NewString(), uuid.NewString()

	session, err := s.sessions.Create(ctx, host, comedy(), 0)
	t.Require().NoError(err)
	assert.Equal(t, model.DefaultRequiredVotes, session.RequiredVotes)
	_, err = s.sessions.Join(ctx, session.ID, guest, "Anna")
	t.Require().NoError(err)

	err = s.sessions.UpdateFilters(ctx, session.ID, guest, comedy())
	assert.True(t, errors.Is(err, usecase_session.ErrNotHost))

	drama := model.Filters{ProviderIDs: []string{"337"}, GenreIDs: []string{"18"}, MaxCertification: model.Certification16}
	t.Require().NoError(s.sessions.UpdateFilters(ctx, session.ID, host, drama))
	got, err := s.sessions.Get(ctx, session.ID)
	t.Require().NoError(err)
	assert.Equal(t, drama.Normalize(), got.Filters.Normalize())
}

func TestSessionIntegrationSuite(t *testing.T) {
	suite.RunSuite(t, new(SessionIntegrationSuite))
}
