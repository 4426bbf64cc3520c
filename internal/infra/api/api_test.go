package infra_api

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/humanbelnik/kinomatch/internal/config"
	http_catalog "github.com/humanbelnik/kinomatch/internal/delivery/http/catalog"
	http_init "github.com/humanbelnik/kinomatch/internal/delivery/http/init"
	http_identity_middleware "github.com/humanbelnik/kinomatch/internal/delivery/http/middleware/identity"
	http_session "github.com/humanbelnik/kinomatch/internal/delivery/http/session"
	http_vote "github.com/humanbelnik/kinomatch/internal/delivery/http/vote"
	ws_session "github.com/humanbelnik/kinomatch/internal/delivery/ws/session"
	infra_memory "github.com/humanbelnik/kinomatch/internal/infra/memory"
	"github.com/humanbelnik/kinomatch/internal/model"
	service_fanout "github.com/humanbelnik/kinomatch/internal/service/fanout"
	usecase_catalog "github.com/humanbelnik/kinomatch/internal/usecase/catalog"
	usecase_consensus "github.com/humanbelnik/kinomatch/internal/usecase/consensus"
	usecase_session "github.com/humanbelnik/kinomatch/internal/usecase/session"
	usecase_swiping "github.com/humanbelnik/kinomatch/internal/usecase/swiping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct{}

func (staticProvider) Discover(_ context.Context, _ model.Filters, page int) (model.CatalogPage, error) {
	items := make([]model.MovieSummary, 10)
	for i := range items {
		id := int64(page*100 + i + 1)
		items[i] = model.MovieSummary{ID: id, Title: fmt.Sprintf("movie %d", id)}
	}
	return model.CatalogPage{Items: items, Page: page, TotalPages: 1, TotalResults: 10}, nil
}

func newServer(t *testing.T) (*httptest.Server, *service_fanout.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := service_fanout.New(nil, 0)
	store := infra_memory.New(hub)
	sessions := usecase_session.New(store, nil)
	engine := usecase_consensus.New(store, nil, 3, time.Millisecond)
	identity := http_identity_middleware.New(nil).IdentityRequired()

	pool := http_init.NewControllerPool(config.ModeReadWrite, nil)
	pool.Add(http_session.New(sessions, identity))
	pool.Add(http_vote.New(engine, identity))
	pool.Add(http_catalog.New(usecase_catalog.New(staticProvider{}, nil, nil), nil))
	pool.Add(ws_session.New(hub, sessions, nil))
	pool.Register()

	server := httptest.NewServer(pool.Handler())
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return server, hub
}

func newClient(t *testing.T, server *httptest.Server, userID model.UserID) *Client {
	t.Helper()
	c, err := New(config.API{BaseURL: server.URL + "/api/v1", Timeout: 2 * time.Second}, userID, nil)
	require.NoError(t, err)
	return c
}

func comedy() model.Filters {
	return model.Filters{ProviderIDs: []string{"8"}, GenreIDs: []string{"35"}, MaxCertification: model.Certification9}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(config.API{BaseURL: "not a url"}, "u", nil)

	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestSessionRoundTrip(t *testing.T) {
	server, _ := newServer(t)
	host := newClient(t, server, "host")
	guest := newClient(t, server, "guest")
	ctx := context.Background()

	session, err := host.Create(ctx, "host", comedy(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, session.RequiredVotes)
	assert.Equal(t, model.Certification9, session.Filters.MaxCertification)

	got, err := guest.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	isMember, err := guest.IsMember(ctx, session.ID, "guest")
	require.NoError(t, err)
	assert.False(t, isMember)

	member, err := guest.Join(ctx, session.ID, "guest", "Anna")
	require.NoError(t, err)
	assert.Equal(t, "Anna", member.Name)

	isMember, err = guest.IsMember(ctx, session.ID, "guest")
	require.NoError(t, err)
	assert.True(t, isMember)

	counts, err := guest.MemberSwipeCounts(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, counts, 2)
}

func TestErrorsKeepTheirClass(t *testing.T) {
	server, _ := newServer(t)
	host := newClient(t, server, "host")
	guest := newClient(t, server, "guest")
	ctx := context.Background()
	session, err := host.Create(ctx, "host", comedy(), 2)
	require.NoError(t, err)

	_, err = guest.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, model.ErrSessionNotFound)

	_, err = guest.Join(ctx, session.ID, "guest", " ")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = guest.RecordVote(ctx, model.Vote{SessionID: session.ID, UserID: "guest", MovieID: 1, Direction: model.Like})
	assert.ErrorIs(t, err, usecase_consensus.ErrNotMember)

	_, err = guest.Join(ctx, session.ID, "guest", "Anna")
	require.NoError(t, err)
	err = guest.UpdateFilters(ctx, session.ID, "guest", comedy())
	assert.ErrorIs(t, err, usecase_session.ErrNotHost)

	require.NoError(t, host.UpdateFilters(ctx, session.ID, "host", comedy()))
}

func TestUnreachableServerIsTransient(t *testing.T) {
	server, _ := newServer(t)
	c := newClient(t, server, "host")
	server.Close()

	_, err := c.Get(context.Background(), uuid.NewString())

	assert.ErrorIs(t, err, model.ErrTransientStore)
}

func TestVotesAndFeed(t *testing.T) {
	server, _ := newServer(t)
	host := newClient(t, server, "host")
	guest := newClient(t, server, "guest")
	ctx := context.Background()
	session, err := host.Create(ctx, "host", comedy(), 2)
	require.NoError(t, err)
	_, err = guest.Join(ctx, session.ID, "guest", "Anna")
	require.NoError(t, err)

	sub, err := host.Subscribe(ctx, session.ID)
	require.NoError(t, err)

	movie := model.MovieSummary{ID: 550, Title: "Fight Club"}
	outcome, err := host.RecordVote(ctx, model.Vote{SessionID: session.ID, UserID: "host", MovieID: 550, Direction: model.Like, Movie: movie})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.LikesCount)

	partials, err := host.PartialMatches(ctx, session.ID, 1)
	require.NoError(t, err)
	require.Len(t, partials, 1)
	assert.Equal(t, int64(550), partials[0].MovieID)

	outcome, err = guest.RecordVote(ctx, model.Vote{SessionID: session.ID, UserID: "guest", MovieID: 550, Direction: model.Like, Movie: movie})
	require.NoError(t, err)
	assert.True(t, outcome.IsMatch)

	select {
	case event := <-sub.Events():
		assert.Equal(t, model.EventMatchInserted, event.Type)
		assert.Equal(t, "Fight Club", event.Match.Movie.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("no match over the feed")
	}

	matches, err := guest.Matches(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	result, err := guest.UndoLastVote(ctx, session.ID, "guest")
	require.NoError(t, err)
	assert.True(t, result.Success)

	sub.Unsubscribe()
	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestSubscribeUnknownSession(t *testing.T) {
	server, _ := newServer(t)
	c := newClient(t, server, "host")

	_, err := c.Subscribe(context.Background(), uuid.NewString())

	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestDiscover(t *testing.T) {
	server, _ := newServer(t)
	c := newClient(t, server, "host")

	page, err := c.Discover(context.Background(), comedy(), 1)

	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, int64(101), page.Items[0].ID)
}

// Two terminal clients swiping against one server.
func TestSwipingOverTheNetwork(t *testing.T) {
	server, _ := newServer(t)
	ctx := context.Background()

	newController := func(userID model.UserID) *usecase_swiping.Controller {
		c := newClient(t, server, userID)
		ctrl := usecase_swiping.New(userID, c, c, usecase_catalog.New(c, nil, nil), c, nil)
		t.Cleanup(ctrl.Close)
		return ctrl
	}
	host := newController("host")
	guest := newController("guest")

	session, err := host.Host(ctx, comedy(), 2)
	require.NoError(t, err)
	state, err := guest.Open(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, usecase_swiping.StateAwaitingJoinDecision, state)
	require.NoError(t, guest.Join(ctx, "Anna"))

	_, err = host.Vote(ctx, model.Like)
	require.NoError(t, err)
	outcome, err := guest.Vote(ctx, model.Like)
	require.NoError(t, err)
	assert.True(t, outcome.IsMatch)

	assert.Eventually(t, func() bool {
		v, err := host.View()
		return err == nil && v.MatchCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}
