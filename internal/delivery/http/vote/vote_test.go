package http_vote

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	http_common "github.com/humanbelnik/kinomatch/internal/delivery/http/common"
	http_identity_middleware "github.com/humanbelnik/kinomatch/internal/delivery/http/middleware/identity"
	infra_memory "github.com/humanbelnik/kinomatch/internal/infra/memory"
	"github.com/humanbelnik/kinomatch/internal/model"
	service_fanout "github.com/humanbelnik/kinomatch/internal/service/fanout"
	usecase_consensus "github.com/humanbelnik/kinomatch/internal/usecase/consensus"
	usecase_session "github.com/humanbelnik/kinomatch/internal/usecase/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	router    *gin.Engine
	sessionID model.SessionID
	hub       *service_fanout.Hub
}

// newFixture starts a session of host and guest with a quorum of two.
func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := service_fanout.New(zap.NewNop(), 0)
	t.Cleanup(hub.Close)
	store := infra_memory.New(hub)
	sessions := usecase_session.New(store, zap.NewNop())
	engine := usecase_consensus.New(store, zap.NewNop(), 3, time.Millisecond)

	ctx := context.Background()
	session, err := sessions.Create(ctx, "host", model.Filters{ProviderIDs: []string{"8"}, GenreIDs: []string{"35"}}, 2)
	require.NoError(t, err)
	_, err = sessions.Join(ctx, session.ID, "guest", "Guest")
	require.NoError(t, err)

	r := gin.New()
	New(engine, http_identity_middleware.New(nil).IdentityRequired()).RegisterRoutes(r.Group("/api/v1"))
	return fixture{router: r, sessionID: session.ID, hub: hub}
}

func (f fixture) do(method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, "/api/v1/sessions/"+f.sessionID+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(http_common.UserTokenHeader, user)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func likeBody(movieID int64) VoteRequestDTO {
	return VoteRequestDTO{
		MovieID:   movieID,
		Direction: "like",
		Movie:     model.MovieSummary{ID: movieID, Title: "Amélie"},
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestVoteReachesQuorum(t *testing.T) {
	f := newFixture(t)
	sub := f.hub.Subscribe(f.sessionID)
	defer sub.Unsubscribe()

	w := f.do(http.MethodPost, "/votes", "host", likeBody(194))
	require.Equal(t, http.StatusOK, w.Code)
	outcome := decode[model.VoteOutcome](t, w)
	assert.False(t, outcome.IsMatch)
	assert.Equal(t, 1, outcome.LikesCount)

	w = f.do(http.MethodPost, "/votes", "guest", likeBody(194))
	outcome = decode[model.VoteOutcome](t, w)
	assert.True(t, outcome.IsMatch)
	assert.Equal(t, 2, outcome.RequiredVotes)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, model.EventMatchInserted, ev.Type)
		assert.Equal(t, int64(194), ev.Match.MovieID)
	case <-time.After(time.Second):
		t.Fatal("no match event")
	}

	matches := decode[[]model.Match](t, f.do(http.MethodGet, "/matches", "guest", nil))
	require.Len(t, matches, 1)
	assert.Equal(t, "Amélie", matches[0].Movie.Title)
}

func TestVoteRejectsUnknownDirection(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/votes", "host", VoteRequestDTO{MovieID: 1, Direction: "maybe"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoteByStrangerIsForbidden(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/votes", "stranger", likeBody(1))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), http_common.CodeNotMember)
}

func TestUndo(t *testing.T) {
	f := newFixture(t)

	result := decode[model.UndoResult](t, f.do(http.MethodDelete, "/votes/last", "host", nil))
	assert.False(t, result.Success)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/votes", "host", likeBody(7)).Code)

	result = decode[model.UndoResult](t, f.do(http.MethodDelete, "/votes/last", "host", nil))
	assert.True(t, result.Success)
	assert.Equal(t, int64(7), result.MovieID)

	result = decode[model.UndoResult](t, f.do(http.MethodDelete, "/votes/last", "host", nil))
	assert.False(t, result.Success)
}

func TestPartialMatches(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/votes", "host", likeBody(3)).Code)

	partials := decode[[]model.PartialMatch](t, f.do(http.MethodGet, "/partial-matches?min_votes=1", "host", nil))
	require.Len(t, partials, 1)
	assert.Equal(t, int64(3), partials[0].MovieID)
	assert.Equal(t, 1, partials[0].LikesCount)

	partials = decode[[]model.PartialMatch](t, f.do(http.MethodGet, "/partial-matches?min_votes=2", "host", nil))
	assert.Empty(t, partials)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/partial-matches?min_votes=x", "host", nil).Code)
}
