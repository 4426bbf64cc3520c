package infra_api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/humanbelnik/kinomatch/internal/config"
	http_common "github.com/humanbelnik/kinomatch/internal/delivery/http/common"
	http_session "github.com/humanbelnik/kinomatch/internal/delivery/http/session"
	http_vote "github.com/humanbelnik/kinomatch/internal/delivery/http/vote"
	"github.com/humanbelnik/kinomatch/internal/model"
	usecase_catalog "github.com/humanbelnik/kinomatch/internal/usecase/catalog"
	usecase_consensus "github.com/humanbelnik/kinomatch/internal/usecase/consensus"
	usecase_session "github.com/humanbelnik/kinomatch/internal/usecase/session"
	usecase_swiping "github.com/humanbelnik/kinomatch/internal/usecase/swiping"
	"go.uber.org/zap"
)

// StatusError is returned for responses the client cannot classify.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api responded %d: %s", e.StatusCode, e.Message)
}

// Client talks to the kinomatch HTTP API. It satisfies the store-facing
// interfaces of the swiping controller and the catalog provider.
type Client struct {
	userID  model.UserID
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

// New builds a client acting as userID wherever a call names no other user.
func New(cfg config.API, userID model.UserID, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: API_BASE_URL %q", config.ErrConfiguration, cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		userID:  userID,
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.Timeout,
		},
		logger: logger.Named("api"),
	}, nil
}

func (c *Client) Create(ctx context.Context, hostID model.UserID, filters model.Filters, requiredVotes int) (model.Session, error) {
	var resp http_session.CreateResponseDTO
	err := c.do(ctx, http.MethodPost, "/sessions", hostID, http_session.CreateRequestDTO{
		Filters:       http_common.FiltersFromModel(filters),
		RequiredVotes: requiredVotes,
	}, &resp)
	return resp.Session, err
}

func (c *Client) Get(ctx context.Context, id model.SessionID) (model.Session, error) {
	var session model.Session
	err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), anonymous, nil, &session)
	return session, err
}

func (c *Client) IsMember(ctx context.Context, id model.SessionID, userID model.UserID) (bool, error) {
	var resp http_session.IsMemberResponseDTO
	err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id)+"/members/me", userID, nil, &resp)
	return resp.IsMember, err
}

func (c *Client) Join(ctx context.Context, id model.SessionID, userID model.UserID, name string) (model.Member, error) {
	var member model.Member
	err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(id)+"/members", userID,
		http_session.JoinRequestDTO{Name: name}, &member)
	return member, err
}

func (c *Client) MemberSwipeCounts(ctx context.Context, id model.SessionID) ([]model.MemberSwipeCount, error) {
	var counts []model.MemberSwipeCount
	err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id)+"/members", anonymous, nil, &counts)
	return counts, err
}

func (c *Client) UpdateFilters(ctx context.Context, id model.SessionID, userID model.UserID, filters model.Filters) error {
	return c.do(ctx, http.MethodPut, "/sessions/"+url.PathEscape(id)+"/filters", userID,
		http_session.UpdateFiltersRequestDTO{Filters: http_common.FiltersFromModel(filters)}, nil)
}

func (c *Client) RecordVote(ctx context.Context, vote model.Vote) (model.VoteOutcome, error) {
	var outcome model.VoteOutcome
	err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(vote.SessionID)+"/votes", vote.UserID,
		http_vote.VoteRequestDTO{
			MovieID:   vote.MovieID,
			Direction: string(vote.Direction),
			Movie:     vote.Movie,
		}, &outcome)
	return outcome, err
}

func (c *Client) UndoLastVote(ctx context.Context, sessionID model.SessionID, userID model.UserID) (model.UndoResult, error) {
	var result model.UndoResult
	err := c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID)+"/votes/last", userID, nil, &result)
	return result, err
}

func (c *Client) Matches(ctx context.Context, sessionID model.SessionID) ([]model.Match, error) {
	var matches []model.Match
	err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID)+"/matches", anonymous, nil, &matches)
	return matches, err
}

func (c *Client) PartialMatches(ctx context.Context, sessionID model.SessionID, minVotes int) ([]model.PartialMatch, error) {
	var partials []model.PartialMatch
	path := "/sessions/" + url.PathEscape(sessionID) + "/partial-matches?min_votes=" + strconv.Itoa(minVotes)
	err := c.do(ctx, http.MethodGet, path, anonymous, nil, &partials)
	return partials, err
}

// Discover reads a catalog page through the server, which holds the
// catalog credentials.
func (c *Client) Discover(ctx context.Context, filters model.Filters, page int) (model.CatalogPage, error) {
	q := url.Values{}
	q.Set("providers", strings.Join(filters.ProviderIDs, ","))
	q.Set("genres", strings.Join(filters.GenreIDs, ","))
	q.Set("certification", filters.MaxCertification.String())
	q.Set("page", strconv.Itoa(page))

	var result model.CatalogPage
	err := c.do(ctx, http.MethodGet, "/catalog?"+q.Encode(), anonymous, nil, &result)
	return result, err
}

// Subscribe opens the websocket change feed of a session.
func (c *Client) Subscribe(ctx context.Context, sessionID model.SessionID) (usecase_swiping.Subscription, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/sessions/" + url.PathEscape(sessionID)

	header := http.Header{}
	header.Set(http_common.UserTokenHeader, c.userID)
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, c.decodeError(resp)
		}
		return nil, errors.Join(model.ErrTransientStore, err)
	}

	sub := &subscription{
		conn:   conn,
		events: make(chan model.FeedEvent, 64),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: c.logger.With(zap.String("session_id", sessionID)),
	}
	go sub.read()
	return sub, nil
}

// anonymous marks calls made as the client's own user.
const anonymous = ""

func (c *Client) do(ctx context.Context, method, path string, userID model.UserID, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if userID == anonymous {
		userID = c.userID
	}
	req.Header.Set(http_common.UserTokenHeader, userID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return errors.Join(model.ErrTransientStore, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	var body http_common.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(raw))
	}

	var class error
	switch body.Code {
	case http_common.CodeValidation:
		class = model.ErrValidation
	case http_common.CodeNotFound:
		class = model.ErrSessionNotFound
	case http_common.CodeNotHost:
		class = usecase_session.ErrNotHost
	case http_common.CodeSessionInactive:
		class = usecase_session.ErrSessionInactive
	case http_common.CodeNotMember:
		class = usecase_consensus.ErrNotMember
	case http_common.CodeFetchFailed:
		class = usecase_catalog.ErrFetchFailed
	case http_common.CodeUnavailable:
		class = model.ErrTransientStore
	}
	if class == nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			class = model.ErrSessionNotFound
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			class = model.ErrTransientStore
		default:
			return &StatusError{StatusCode: resp.StatusCode, Message: body.Message}
		}
	}
	return fmt.Errorf("%w: %s", class, body.Message)
}

type subscription struct {
	conn   *websocket.Conn
	events chan model.FeedEvent
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func (s *subscription) Events() <-chan model.FeedEvent {
	return s.events
}

// Unsubscribe closes the connection and returns once Events is closed.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.quit)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline())
		_ = s.conn.Close()
	})
	<-s.done
}

func (s *subscription) read() {
	defer func() {
		close(s.events)
		close(s.done)
	}()

	for {
		var event model.FeedEvent
		if err := s.conn.ReadJSON(&event); err != nil {
			select {
			case <-s.quit:
			default:
				s.logger.Info("feed closed by server", zap.Error(err))
				_ = s.conn.Close()
			}
			return
		}
		select {
		case s.events <- event:
		case <-s.quit:
			return
		}
	}
}

func deadline() time.Time {
	return time.Now().Add(time.Second)
}
