package usecase_swiping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/humanbelnik/kinomatch/internal/model"
	usecase_session "github.com/humanbelnik/kinomatch/internal/usecase/session"
	"go.uber.org/zap"
)

var (
	ErrInvalidSession = errors.New("invalid session link")
	ErrNothingToUndo  = errors.New("nothing to undo")
	ErrNoCandidate    = errors.New("no movie to vote on")
	ErrWrongState     = errors.New("not allowed in the current state")
	ErrClosed         = errors.New("controller closed")
)

// PrefetchLowWaterMark is how close to the end of the loaded candidates the
// cursor may get before the next page is requested.
const PrefetchLowWaterMark = 5

const (
	backgroundTimeout   = 30 * time.Second
	resubscribeDelay    = time.Second
	notificationsBuffer = 32
)

type State int

const (
	StateNoSession State = iota
	StateAwaitingJoinDecision
	StateSwiping
)

func (s State) String() string {
	switch s {
	case StateNoSession:
		return "no_session"
	case StateAwaitingJoinDecision:
		return "awaiting_join_decision"
	case StateSwiping:
		return "swiping"
	default:
		return "unknown"
	}
}

type Sessions interface {
	Create(ctx context.Context, hostID model.UserID, filters model.Filters, requiredVotes int) (model.Session, error)
	Get(ctx context.Context, id model.SessionID) (model.Session, error)
	IsMember(ctx context.Context, id model.SessionID, userID model.UserID) (bool, error)
	Join(ctx context.Context, id model.SessionID, userID model.UserID, name string) (model.Member, error)
	MemberSwipeCounts(ctx context.Context, id model.SessionID) ([]model.MemberSwipeCount, error)
	UpdateFilters(ctx context.Context, id model.SessionID, userID model.UserID, filters model.Filters) error
}

//go:generate mockery --name=Votes --output=./mocks/votes --filename=votes.go
type Votes interface {
	RecordVote(ctx context.Context, vote model.Vote) (model.VoteOutcome, error)
	UndoLastVote(ctx context.Context, sessionID model.SessionID, userID model.UserID) (model.UndoResult, error)
	Matches(ctx context.Context, sessionID model.SessionID) ([]model.Match, error)
}

//go:generate mockery --name=Catalog --output=./mocks/catalog --filename=catalog.go
type Catalog interface {
	Fetch(ctx context.Context, filters model.Filters, page int) (model.CatalogPage, error)
	Clear(ctx context.Context) error
}

// Subscription must close Events() once Unsubscribe returns.
type Subscription interface {
	Events() <-chan model.FeedEvent
	Unsubscribe()
}

type Feed interface {
	Subscribe(ctx context.Context, sessionID model.SessionID) (Subscription, error)
}

type NotificationKind string

const (
	NotificationMatch        NotificationKind = "match"
	NotificationMemberJoined NotificationKind = "member_joined"
)

type Notification struct {
	Kind  NotificationKind
	Movie model.MovieSummary
	// Remote is set for matches that arrived over the feed. The voter who
	// completes a match sees it twice, once locally and once remotely.
	Remote bool
	Member *model.Member
}

// View is a copy of the controller state. It is safe to keep.
type View struct {
	State      State
	Session    model.Session
	IsHost     bool
	Candidate  *model.MovieSummary
	Cursor     int
	Remaining  int
	Page       int
	TotalPages int
	CanUndo    bool
	MatchCount int
	Members    []model.MemberSwipeCount
	Loading    bool
	CatalogErr error
}

// Controller drives one participant through one session. Every state
// change runs on a single goroutine; user operations are serialized
// among themselves and do their I/O outside of it.
type Controller struct {
	userID   model.UserID
	sessions Sessions
	votes    Votes
	catalog  Catalog
	feed     Feed
	logger   *zap.Logger

	opMu          sync.Mutex
	actions       chan func()
	quit          chan struct{}
	stopped       chan struct{}
	closeOnce     sync.Once
	notifications chan Notification
	pumps         sync.WaitGroup

	// owned by the loop goroutine
	state        State
	session      model.Session
	items        []model.MovieSummary
	cursor       int
	page         int
	totalPages   int
	pageInFlight bool
	generation   uint64
	canUndo      bool
	matchCount   int
	seenMatches  map[int64]struct{}
	members      []model.MemberSwipeCount
	catalogErr   error
	sub          Subscription
	pending      int
	idle         []chan struct{}
}

func New(userID model.UserID, sessions Sessions, votes Votes, catalog Catalog, feed Feed, logger *zap.Logger) *Controller {
	switch {
	case userID == "":
		panic("usecase_swiping: empty user id")
	case sessions == nil, votes == nil, catalog == nil, feed == nil:
		panic("usecase_swiping: nil dependency")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		userID:        userID,
		sessions:      sessions,
		votes:         votes,
		catalog:       catalog,
		feed:          feed,
		logger:        logger.Named("swiping").With(zap.String("user_id", userID)),
		actions:       make(chan func()),
		quit:          make(chan struct{}),
		stopped:       make(chan struct{}),
		notifications: make(chan Notification, notificationsBuffer),
	}
	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.stopped)
	for {
		select {
		case fn := <-c.actions:
			fn()
		case <-c.quit:
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (c *Controller) do(fn func()) error {
	done := make(chan struct{})
	select {
	case c.actions <- func() { fn(); close(done) }:
	case <-c.stopped:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-c.stopped:
		return ErrClosed
	}
}

// enqueue hands fn to the loop without waiting for it to run.
func (c *Controller) enqueue(fn func()) bool {
	select {
	case c.actions <- fn:
		return true
	case <-c.stopped:
		return false
	}
}

// Notifications delivers matches and member arrivals. The channel is
// closed by Close.
func (c *Controller) Notifications() <-chan Notification {
	return c.notifications
}

func (c *Controller) View() (View, error) {
	var v View
	err := c.do(func() {
		v = View{
			State:      c.state,
			Session:    c.session,
			IsHost:     c.session.IsHost(c.userID),
			Cursor:     c.cursor,
			Remaining:  max(0, len(c.items)-c.cursor),
			Page:       c.page,
			TotalPages: c.totalPages,
			CanUndo:    c.canUndo,
			MatchCount: c.matchCount,
			Members:    append([]model.MemberSwipeCount(nil), c.members...),
			Loading:    c.pageInFlight,
			CatalogErr: c.catalogErr,
		}
		if c.cursor < len(c.items) {
			candidate := c.items[c.cursor]
			v.Candidate = &candidate
		}
	})
	return v, err
}

// Host creates a session owned by this participant and starts swiping in it.
func (c *Controller) Host(ctx context.Context, filters model.Filters, requiredVotes int) (model.Session, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.expect(StateNoSession); err != nil {
		return model.Session{}, err
	}
	if err := filters.Validate(); err != nil {
		return model.Session{}, err
	}
	if requiredVotes < 0 {
		return model.Session{}, fmt.Errorf("%w: required votes must be at least 1", model.ErrValidation)
	}

	session, err := c.sessions.Create(ctx, c.userID, filters, requiredVotes)
	if err != nil {
		return model.Session{}, err
	}
	return session, c.enter(ctx, session)
}

// Open resolves a shared session link. Members go straight to swiping,
// everyone else has to Join first.
func (c *Controller) Open(ctx context.Context, id model.SessionID) (State, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.expect(StateNoSession); err != nil {
		return StateNoSession, err
	}

	session, err := c.sessions.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return StateNoSession, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	isMember, err := c.sessions.IsMember(ctx, session.ID, c.userID)
	if err != nil {
		return StateNoSession, err
	}
	if isMember {
		return StateSwiping, c.enter(ctx, session)
	}

	if err := c.do(func() {
		c.state = StateAwaitingJoinDecision
		c.session = session
	}); err != nil {
		return StateNoSession, err
	}
	return StateAwaitingJoinDecision, nil
}

func (c *Controller) Join(ctx context.Context, name string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	var session model.Session
	if err := c.expect(StateAwaitingJoinDecision, func() { session = c.session }); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: enter a name to join", model.ErrValidation)
	}

	if _, err := c.sessions.Join(ctx, session.ID, c.userID, name); err != nil {
		return err
	}
	return c.enter(ctx, session)
}

// Vote records the current candidate. The cursor only moves once the
// vote is stored.
func (c *Controller) Vote(ctx context.Context, direction model.Direction) (model.VoteOutcome, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	var (
		candidate model.MovieSummary
		found     bool
		sessionID model.SessionID
	)
	if err := c.expect(StateSwiping, func() {
		sessionID = c.session.ID
		if c.cursor < len(c.items) {
			candidate, found = c.items[c.cursor], true
		}
	}); err != nil {
		return model.VoteOutcome{}, err
	}
	if !found {
		return model.VoteOutcome{}, ErrNoCandidate
	}

	outcome, err := c.votes.RecordVote(ctx, model.Vote{
		SessionID: sessionID,
		UserID:    c.userID,
		MovieID:   candidate.ID,
		Direction: direction,
		Movie:     candidate,
	})
	if err != nil {
		c.logger.Warn("vote not recorded", zap.Int64("movie_id", candidate.ID), zap.Error(err))
		return model.VoteOutcome{}, err
	}

	return outcome, c.do(func() {
		c.cursor++
		c.canUndo = true
		if outcome.IsMatch {
			c.notify(Notification{Kind: NotificationMatch, Movie: candidate})
		}
		c.maybeLoadNextPage()
	})
}

// Undo retracts the last vote and steps back to its movie. Only the most
// recent vote can be undone, and only once.
func (c *Controller) Undo(ctx context.Context) (model.UndoResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	var (
		canUndo   bool
		sessionID model.SessionID
	)
	if err := c.expect(StateSwiping, func() {
		canUndo = c.canUndo
		sessionID = c.session.ID
	}); err != nil {
		return model.UndoResult{}, err
	}
	if !canUndo {
		return model.UndoResult{}, ErrNothingToUndo
	}

	result, err := c.votes.UndoLastVote(ctx, sessionID, c.userID)
	if err != nil {
		return model.UndoResult{}, err
	}
	if !result.Success {
		_ = c.do(func() { c.canUndo = false })
		return result, ErrNothingToUndo
	}

	return result, c.do(func() {
		if c.cursor > 0 {
			c.cursor--
		}
		c.canUndo = false
	})
}

// UpdateFilters replaces the session filters and starts over from the
// first page. Host only.
func (c *Controller) UpdateFilters(ctx context.Context, filters model.Filters) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	var session model.Session
	if err := c.expect(StateSwiping, func() { session = c.session }); err != nil {
		return err
	}
	if !session.IsHost(c.userID) {
		return usecase_session.ErrNotHost
	}
	if err := filters.Validate(); err != nil {
		return err
	}

	if err := c.sessions.UpdateFilters(ctx, session.ID, c.userID, filters); err != nil {
		return err
	}
	if err := c.catalog.Clear(ctx); err != nil {
		c.logger.Warn("catalog cache not cleared", zap.Error(err))
	}

	if err := c.do(func() {
		c.session.Filters = filters.Normalize()
		c.resetCandidates()
	}); err != nil {
		return err
	}
	return c.loadFirstPage(ctx)
}

// Reload drops the loaded candidates and fetches the first page again,
// for instance after the first page failed to load.
func (c *Controller) Reload(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.expect(StateSwiping, c.resetCandidates, c.catchUpMatches); err != nil {
		return err
	}
	return c.loadFirstPage(ctx)
}

// WaitIdle blocks until background page loads and member refreshes
// started so far have been applied.
func (c *Controller) WaitIdle(ctx context.Context) error {
	ch := make(chan struct{})
	if err := c.do(func() {
		if c.pending == 0 {
			close(ch)
			return
		}
		c.idle = append(c.idle, ch)
	}); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close unsubscribes from the feed and stops the loop. Nothing is
// delivered on Notifications afterwards.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		<-c.stopped
		if c.sub != nil {
			c.sub.Unsubscribe()
		}
		c.pumps.Wait()
		close(c.notifications)
	})
}

// expect checks the state and runs read on the loop in the same step.
func (c *Controller) expect(want State, read ...func()) error {
	var got State
	if err := c.do(func() {
		got = c.state
		if got != want {
			return
		}
		for _, fn := range read {
			fn()
		}
	}); err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: %s", ErrWrongState, got)
	}
	return nil
}

func (c *Controller) enter(ctx context.Context, session model.Session) error {
	sub, err := c.feed.Subscribe(ctx, session.ID)
	if err != nil {
		// swiping works without the feed; matches of others show up on the next Reload
		c.logger.Warn("feed subscription failed", zap.String("session_id", session.ID), zap.Error(err))
		sub = nil
	}

	// entered is written on the loop before it can stop, so it is safe to
	// read even when do reports ErrClosed.
	var entered bool
	err = c.do(func() {
		c.state = StateSwiping
		c.session = session
		c.sub = sub
		c.matchCount = 0
		c.seenMatches = make(map[int64]struct{})
		c.resetCandidates()
		c.refreshMembers()
		if sub != nil {
			c.pumps.Add(1)
		}
		entered = true
	})
	if !entered {
		if sub != nil {
			sub.Unsubscribe()
		}
		return err
	}
	if sub != nil {
		go c.pump(session.ID, sub)
	}
	if err != nil {
		return err
	}

	// Matches made before entering are counted but not announced.
	if err := c.do(c.reconcileMatches(ctx, session.ID, false)); err != nil {
		return err
	}

	c.logger.Info("swiping", zap.String("session_id", session.ID))
	return c.loadFirstPage(ctx)
}

// loadFirstPage fetches page 1 in the caller's goroutine. A failed fetch
// is kept in the view, not returned, so the caller stays in the session.
func (c *Controller) loadFirstPage(ctx context.Context) error {
	var (
		filters    model.Filters
		generation uint64
	)
	if err := c.do(func() {
		filters = c.session.Filters
		generation = c.generation
		c.pageInFlight = true
	}); err != nil {
		return err
	}

	page, err := c.catalog.Fetch(ctx, filters, 1)
	return c.do(func() { c.applyPage(generation, 1, page, err) })
}

// loop only

func (c *Controller) resetCandidates() {
	c.generation++
	c.items = nil
	c.cursor = 0
	c.page = 0
	c.totalPages = 0
	c.pageInFlight = false
	c.canUndo = false
	c.catalogErr = nil
}

func (c *Controller) applyPage(generation uint64, requested int, page model.CatalogPage, err error) {
	if generation != c.generation {
		c.logger.Debug("dropping stale page", zap.Int("page", requested))
		return
	}
	c.pageInFlight = false
	if err != nil {
		c.catalogErr = err
		c.logger.Warn("catalog page not loaded", zap.Int("page", requested), zap.Error(err))
		return
	}

	c.catalogErr = nil
	c.items = append(c.items, page.Items...)
	c.page = requested
	c.totalPages = page.TotalPages
	c.maybeLoadNextPage()
}

func (c *Controller) maybeLoadNextPage() {
	switch {
	case c.state != StateSwiping,
		c.pageInFlight,
		c.page == 0,
		c.page >= c.totalPages,
		c.cursor < len(c.items)-PrefetchLowWaterMark:
		return
	}

	next := c.page + 1
	generation := c.generation
	filters := c.session.Filters
	c.pageInFlight = true

	c.background(func(ctx context.Context) func() {
		page, err := c.catalog.Fetch(ctx, filters, next)
		return func() { c.applyPage(generation, next, page, err) }
	})
}

func (c *Controller) refreshMembers() {
	sessionID := c.session.ID
	c.background(func(ctx context.Context) func() {
		counts, err := c.sessions.MemberSwipeCounts(ctx, sessionID)
		return func() {
			if err != nil {
				c.logger.Warn("member counts not refreshed", zap.Error(err))
				return
			}
			if c.session.ID == sessionID {
				c.members = counts
			}
		}
	})
}

// reconcileMatches reads the stored matches off the loop and returns the
// loop step that counts the ones not seen yet. Feed events for the same
// match ids are ignored afterwards.
func (c *Controller) reconcileMatches(ctx context.Context, sessionID model.SessionID, announce bool) func() {
	matches, err := c.votes.Matches(ctx, sessionID)
	return func() {
		if err != nil {
			c.logger.Warn("matches not reconciled", zap.Error(err))
			return
		}
		if c.state != StateSwiping || c.session.ID != sessionID {
			return
		}
		// newest first
		for i := len(matches) - 1; i >= 0; i-- {
			if c.addMatch(matches[i]) && announce {
				c.notify(Notification{Kind: NotificationMatch, Movie: matches[i].Movie, Remote: true})
			}
		}
	}
}

// catchUpMatches announces matches the feed may have lost.
func (c *Controller) catchUpMatches() {
	sessionID := c.session.ID
	c.background(func(ctx context.Context) func() {
		return c.reconcileMatches(ctx, sessionID, true)
	})
}

func (c *Controller) addMatch(m model.Match) bool {
	if _, seen := c.seenMatches[m.ID]; seen {
		return false
	}
	c.seenMatches[m.ID] = struct{}{}
	c.matchCount++
	return true
}

// background runs work off the loop and applies its result on the loop.
func (c *Controller) background(work func(ctx context.Context) func()) {
	c.pending++
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		apply := work(ctx)
		c.enqueue(func() {
			apply()
			c.pending--
			if c.pending == 0 {
				for _, ch := range c.idle {
					close(ch)
				}
				c.idle = nil
			}
		})
	}()
}

func (c *Controller) onEvent(event model.FeedEvent) {
	if c.state != StateSwiping || event.SessionID != c.session.ID {
		return
	}

	switch event.Type {
	case model.EventMatchInserted:
		if event.Match == nil || !c.addMatch(*event.Match) {
			return
		}
		c.notify(Notification{Kind: NotificationMatch, Movie: event.Match.Movie, Remote: true})
	case model.EventMemberInserted:
		if event.Member == nil {
			return
		}
		c.notify(Notification{Kind: NotificationMemberJoined, Member: event.Member})
		c.refreshMembers()
	}
}

func (c *Controller) notify(n Notification) {
	select {
	case c.notifications <- n:
	default:
		c.logger.Warn("notification dropped", zap.String("kind", string(n.Kind)))
	}
}

// pump forwards feed events onto the loop and resubscribes when the feed
// drops this participant.
func (c *Controller) pump(sessionID model.SessionID, sub Subscription) {
	defer c.pumps.Done()

	for {
		for event := range sub.Events() {
			if !c.enqueue(func() { c.onEvent(event) }) {
				return
			}
		}

		select {
		case <-c.quit:
			return
		case <-time.After(resubscribeDelay):
		}

		next, err := c.feed.Subscribe(context.Background(), sessionID)
		if err != nil {
			c.logger.Warn("feed resubscribe failed", zap.Error(err))
			continue
		}
		// events published while no subscription existed are read back from the store
		if err := c.do(func() {
			c.sub = next
			c.catchUpMatches()
		}); err != nil {
			next.Unsubscribe()
			return
		}
		c.logger.Info("feed resubscribed", zap.String("session_id", sessionID))
		sub = next
	}
}
