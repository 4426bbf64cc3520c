package ws_session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	infra_memory "github.com/humanbelnik/kinomatch/internal/infra/memory"
	"github.com/humanbelnik/kinomatch/internal/model"
	service_fanout "github.com/humanbelnik/kinomatch/internal/service/fanout"
	usecase_session "github.com/humanbelnik/kinomatch/internal/usecase/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	server    *httptest.Server
	hub       *service_fanout.Hub
	sessionID model.SessionID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := service_fanout.New(zap.NewNop(), 0)
	sessions := usecase_session.New(infra_memory.New(hub), zap.NewNop())
	session, err := sessions.Create(context.Background(), "host",
		model.Filters{ProviderIDs: []string{"8"}, GenreIDs: []string{"35"}}, 2)
	require.NoError(t, err)

	r := gin.New()
	New(hub, sessions, nil).RegisterRoutes(r.Group("/api/v1"))
	server := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return fixture{server: server, hub: hub, sessionID: session.ID}
}

func (f fixture) url(id model.SessionID) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/v1/ws/sessions/" + id
}

func TestFeedStreamsEvents(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url(f.sessionID), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Subscribers(f.sessionID) == 1 },
		time.Second, 10*time.Millisecond)

	f.hub.Publish(model.MatchInserted(model.Match{ID: 1, SessionID: f.sessionID, MovieID: 550}))
	f.hub.Publish(model.MemberInserted(model.Member{SessionID: f.sessionID, UserID: "guest", Name: "Guest"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second model.FeedEvent
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	assert.Equal(t, model.EventMatchInserted, first.Type)
	assert.Equal(t, int64(550), first.Match.MovieID)
	assert.Equal(t, model.EventMemberInserted, second.Type)
	assert.Equal(t, "Guest", second.Member.Name)
}

func TestFeedUnsubscribesOnDisconnect(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url(f.sessionID), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.hub.Subscribers(f.sessionID) == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return f.hub.Subscribers(f.sessionID) == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestFeedUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.url(uuid.NewString()), nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
