package infra_memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/humanbelnik/kinomatch/internal/model"
	usecase_consensus "github.com/humanbelnik/kinomatch/internal/usecase/consensus"
)

// Publisher receives rows right after they are inserted.
type Publisher interface {
	Publish(event model.FeedEvent)
}

// Store keeps sessions, swipes and matches in process memory. Every write
// happens under one mutex, which makes the quorum check-and-insert atomic.
// Used for local runs and tests. Nothing survives a restart.
type Store struct {
	mu        sync.Mutex
	sessions  map[model.SessionID]*model.Session
	members   map[model.SessionID][]model.Member
	swipes    map[model.SessionID][]model.Swipe
	matches   map[model.SessionID]map[int64]model.Match
	swipeSeq  int64
	matchSeq  int64
	publisher Publisher
	now       func() time.Time
}

func New(publisher Publisher) *Store {
	return &Store{
		sessions:  make(map[model.SessionID]*model.Session),
		members:   make(map[model.SessionID][]model.Member),
		swipes:    make(map[model.SessionID][]model.Swipe),
		matches:   make(map[model.SessionID]map[int64]model.Match),
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *Store) Create(ctx context.Context, session model.Session) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	session.CreatedAt = now
	session.TotalMembers = 1
	session.Active = true
	session.Filters = copyFilters(session.Filters)
	s.sessions[session.ID] = &session

	host := model.Member{
		SessionID: session.ID,
		UserID:    session.HostID,
		Name:      model.HostMemberName,
		JoinedAt:  now,
	}
	s.members[session.ID] = []model.Member{host}
	s.publish(model.MemberInserted(host))

	return cloneSession(session), nil
}

func (s *Store) Get(ctx context.Context, id model.SessionID) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return model.Session{}, model.ErrSessionNotFound
	}
	return cloneSession(*session), nil
}

func (s *Store) IsMember(ctx context.Context, id model.SessionID, userID model.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false, model.ErrSessionNotFound
	}
	_, ok := s.findMember(id, userID)
	return ok, nil
}

func (s *Store) Join(ctx context.Context, member model.Member) (model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[member.SessionID]
	if !ok {
		return model.Member{}, model.ErrSessionNotFound
	}
	if existing, ok := s.findMember(member.SessionID, member.UserID); ok {
		return existing, nil
	}

	member.JoinedAt = s.now().UTC()
	s.members[member.SessionID] = append(s.members[member.SessionID], member)
	session.TotalMembers++
	s.publish(model.MemberInserted(member))

	return member, nil
}

func (s *Store) MemberSwipeCounts(ctx context.Context, id model.SessionID) ([]model.MemberSwipeCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return nil, model.ErrSessionNotFound
	}

	counts := make(map[model.UserID]int)
	for _, swipe := range s.swipes[id] {
		if swipe.RetractedAt == nil {
			counts[swipe.UserID]++
		}
	}

	result := make([]model.MemberSwipeCount, 0, len(s.members[id]))
	for _, m := range s.members[id] {
		result = append(result, model.MemberSwipeCount{
			UserID: m.UserID,
			Name:   m.Name,
			Count:  counts[m.UserID],
		})
	}
	return result, nil
}

func (s *Store) UpdateFilters(ctx context.Context, id model.SessionID, filters model.Filters) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || !session.Active {
		return false, nil
	}
	session.Filters = copyFilters(filters)
	return true, nil
}

func (s *Store) InsertSwipe(ctx context.Context, swipe model.Swipe) (model.Swipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[swipe.SessionID]; !ok {
		return model.Swipe{}, model.ErrSessionNotFound
	}
	if _, ok := s.findMember(swipe.SessionID, swipe.UserID); !ok {
		return model.Swipe{}, usecase_consensus.ErrNotMember
	}

	s.swipeSeq++
	swipe.ID = s.swipeSeq
	swipe.CreatedAt = s.now().UTC()
	swipe.RetractedAt = nil
	s.swipes[swipe.SessionID] = append(s.swipes[swipe.SessionID], swipe)

	return swipe, nil
}

func (s *Store) VoteAndMaybeMatch(ctx context.Context, sessionID model.SessionID, movie model.MovieSummary) (model.VoteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return model.VoteOutcome{}, model.ErrSessionNotFound
	}

	likes := s.tallyLocked(sessionID)[movie.ID].likes
	outcome := model.VoteOutcome{
		LikesCount:    likes,
		RequiredVotes: session.RequiredVotes,
	}
	if likes < session.RequiredVotes {
		return outcome, nil
	}

	if _, exists := s.matches[sessionID][movie.ID]; exists {
		return outcome, nil
	}
	if s.matches[sessionID] == nil {
		s.matches[sessionID] = make(map[int64]model.Match)
	}
	s.matchSeq++
	match := model.Match{
		ID:        s.matchSeq,
		SessionID: sessionID,
		MovieID:   movie.ID,
		Movie:     movie,
		MatchedAt: s.now().UTC(),
	}
	s.matches[sessionID][movie.ID] = match
	s.publish(model.MatchInserted(match))

	outcome.IsMatch = true
	return outcome, nil
}

func (s *Store) UndoLastSwipe(ctx context.Context, sessionID model.SessionID, userID model.UserID) (model.UndoResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return model.UndoResult{}, model.ErrSessionNotFound
	}

	swipes := s.swipes[sessionID]
	last := -1
	for i := len(swipes) - 1; i >= 0; i-- {
		if swipes[i].UserID == userID {
			last = i
			break
		}
	}
	if last < 0 || swipes[last].RetractedAt != nil {
		return model.UndoResult{}, nil
	}

	// A retried vote can leave several live rows for the same movie. All of
	// them go, otherwise an older duplicate would still count.
	movieID := swipes[last].MovieID
	retractedAt := s.now().UTC()
	for i := range swipes {
		if swipes[i].UserID == userID && swipes[i].MovieID == movieID && swipes[i].RetractedAt == nil {
			swipes[i].RetractedAt = &retractedAt
		}
	}
	return model.UndoResult{Success: true, MovieID: movieID}, nil
}

func (s *Store) PartialMatches(ctx context.Context, sessionID model.SessionID, minVotes int) ([]model.PartialMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, model.ErrSessionNotFound
	}

	result := make([]model.PartialMatch, 0)
	for movieID, t := range s.tallyLocked(sessionID) {
		if t.likes < minVotes {
			continue
		}
		if _, matched := s.matches[sessionID][movieID]; matched {
			continue
		}
		result = append(result, model.PartialMatch{
			MovieID:    movieID,
			LikesCount: t.likes,
			Movie:      t.movie,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LikesCount != result[j].LikesCount {
			return result[i].LikesCount > result[j].LikesCount
		}
		return result[i].MovieID < result[j].MovieID
	})
	return result, nil
}

func (s *Store) Matches(ctx context.Context, sessionID model.SessionID) ([]model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, model.ErrSessionNotFound
	}

	result := make([]model.Match, 0, len(s.matches[sessionID]))
	for _, m := range s.matches[sessionID] {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})
	return result, nil
}

type tally struct {
	likes int
	movie model.MovieSummary
}

// tallyLocked counts, per movie, the users whose latest non retracted
// swipe is a like.
func (s *Store) tallyLocked(sessionID model.SessionID) map[int64]tally {
	type key struct {
		user  model.UserID
		movie int64
	}
	effective := make(map[key]model.Swipe)
	for _, swipe := range s.swipes[sessionID] {
		if swipe.RetractedAt != nil {
			continue
		}
		effective[key{swipe.UserID, swipe.MovieID}] = swipe
	}

	tallies := make(map[int64]tally)
	for _, swipe := range effective {
		if swipe.Direction != model.Like {
			continue
		}
		t := tallies[swipe.MovieID]
		t.likes++
		t.movie = swipe.Movie
		tallies[swipe.MovieID] = t
	}
	return tallies
}

func (s *Store) findMember(id model.SessionID, userID model.UserID) (model.Member, bool) {
	for _, m := range s.members[id] {
		if m.UserID == userID {
			return m, true
		}
	}
	return model.Member{}, false
}

func (s *Store) publish(event model.FeedEvent) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

func cloneSession(session model.Session) model.Session {
	session.Filters = copyFilters(session.Filters)
	return session
}

func copyFilters(f model.Filters) model.Filters {
	return model.Filters{
		ProviderIDs:      slices.Clone(f.ProviderIDs),
		GenreIDs:         slices.Clone(f.GenreIDs),
		MaxCertification: f.MaxCertification,
	}
}
