package model

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

const (
	DefaultRequiredVotes = 2
	HostMemberName       = "Host"
)

// Certification is an ordinal over the NL age ratings.
type Certification int

const (
	CertificationAL Certification = iota
	Certification6
	Certification9
	Certification12
	Certification16
)

const DefaultCertification = Certification12

var certificationLabels = [...]string{"AL", "6", "9", "12", "16"}

func (c Certification) String() string {
	if c < CertificationAL || int(c) >= len(certificationLabels) {
		return certificationLabels[DefaultCertification]
	}
	return certificationLabels[c]
}

func ParseCertification(s string) (Certification, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, label := range certificationLabels {
		if label == s {
			return Certification(i), nil
		}
	}
	return DefaultCertification, fmt.Errorf("%w: unknown certification %q", ErrValidation, s)
}

func (c Certification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Certification) UnmarshalText(b []byte) error {
	parsed, err := ParseCertification(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type Filters struct {
	ProviderIDs      []string      `json:"provider_ids"`
	GenreIDs         []string      `json:"genre_ids"`
	MaxCertification Certification `json:"max_certification"`
}

// Normalize trims, dedupes and sorts both id sets so that equal
// selections produce equal filters regardless of pick order.
func (f Filters) Normalize() Filters {
	return Filters{
		ProviderIDs:      normalizeSet(f.ProviderIDs),
		GenreIDs:         normalizeSet(f.GenreIDs),
		MaxCertification: f.MaxCertification,
	}
}

func (f Filters) Validate() error {
	n := f.Normalize()
	if len(n.ProviderIDs) == 0 {
		return fmt.Errorf("%w: select at least one streaming provider", ErrValidation)
	}
	if len(n.GenreIDs) == 0 {
		return fmt.Errorf("%w: select at least one genre", ErrValidation)
	}
	return nil
}

func (f Filters) CacheKey(page int) string {
	n := f.Normalize()
	return fmt.Sprintf("%s-%s-%s-%d",
		strings.Join(n.ProviderIDs, ","),
		strings.Join(n.GenreIDs, ","),
		n.MaxCertification,
		page,
	)
}

func normalizeSet(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

type Session struct {
	ID            SessionID `json:"id"`
	HostID        UserID    `json:"host_id"`
	Filters       Filters   `json:"filters"`
	RequiredVotes int       `json:"required_votes"`
	TotalMembers  int       `json:"total_members"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s Session) IsHost(userID UserID) bool {
	return userID != "" && s.HostID == userID
}

type Member struct {
	SessionID SessionID `json:"session_id"`
	UserID    UserID    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
}

type MemberSwipeCount struct {
	UserID UserID `json:"user_id"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

// ShareLink builds the link a host hands out to invite members.
func ShareLink(baseURL string, id SessionID) string {
	u, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		return "?session=" + url.QueryEscape(id)
	}
	q := u.Query()
	q.Set("session", id)
	u.RawQuery = q.Encode()
	return u.String()
}

// ParseShareLink accepts either a share link or a bare session id.
func ParseShareLink(s string) SessionID {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	if id := u.Query().Get("session"); id != "" {
		return id
	}
	return s
}
