package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/humanbelnik/kinomatch/internal/model"
	usecase_swiping "github.com/humanbelnik/kinomatch/internal/usecase/swiping"
	"go.uber.org/zap"
)

const help = `commands:
  l  like            d  dislike
  u  undo last vote  m  members
  f <providers> <genres> [certification]  change filters (host)
  r  reload movies   s  session id
  h  help            q  quit`

// Runner is the line-based front end of a swiping controller.
type Runner struct {
	ctrl      *usecase_swiping.Controller
	in        *bufio.Scanner
	imageBase string
	logger    *zap.Logger

	mu  sync.Mutex
	out io.Writer
}

func New(ctrl *usecase_swiping.Controller, in io.Reader, out io.Writer, imageBase string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		ctrl:      ctrl,
		in:        bufio.NewScanner(in),
		out:       out,
		imageBase: imageBase,
		logger:    logger.Named("tui"),
	}
}

func (r *Runner) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// readLine returns false on EOF.
func (r *Runner) readLine(prompt string) (string, bool) {
	r.printf("%s", prompt)
	if !r.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}

// Join asks for a display name until the controller accepts one.
func (r *Runner) Join(ctx context.Context) error {
	for {
		name, ok := r.readLine("Your name: ")
		if !ok {
			return io.EOF
		}
		err := r.ctrl.Join(ctx, name)
		if errors.Is(err, model.ErrValidation) {
			r.printf("%v\n", err)
			continue
		}
		return err
	}
}

// Swipe runs the interactive loop until q, EOF or ctx is done.
func (r *Runner) Swipe(ctx context.Context) error {
	notifyDone := make(chan struct{})
	go func() {
		defer close(notifyDone)
		for n := range r.ctrl.Notifications() {
			r.printNotification(n)
		}
	}()
	defer func() {
		r.ctrl.Close()
		<-notifyDone
	}()

	r.printf("%s\n", help)
	r.printCandidate()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, ok := r.readLine("> ")
		if !ok {
			return nil
		}
		quit, err := r.exec(ctx, line)
		if err != nil {
			r.logger.Debug("command failed", zap.String("line", line), zap.Error(err))
			r.printf("error: %v\n", describe(err))
		}
		if quit {
			return nil
		}
	}
}

func (r *Runner) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch strings.ToLower(fields[0]) {
	case "q", "quit", "exit":
		return true, nil
	case "h", "help", "?":
		r.printf("%s\n", help)
	case "l", "like", "y":
		return false, r.vote(ctx, model.Like)
	case "d", "dislike", "n":
		return false, r.vote(ctx, model.Dislike)
	case "u", "undo":
		result, err := r.ctrl.Undo(ctx)
		if err != nil {
			return false, err
		}
		r.printf("undone vote on %d\n", result.MovieID)
		r.printCandidate()
	case "m", "members":
		return false, r.printMembers()
	case "s", "session":
		v, err := r.ctrl.View()
		if err != nil {
			return false, err
		}
		r.printf("session %s (%d votes needed)\n", v.Session.ID, v.Session.RequiredVotes)
	case "r", "reload":
		if err := r.ctrl.Reload(ctx); err != nil {
			return false, err
		}
		r.printCandidate()
	case "f", "filters":
		filters, err := ParseFilters(fields[1:])
		if err != nil {
			return false, err
		}
		if err := r.ctrl.UpdateFilters(ctx, filters); err != nil {
			return false, err
		}
		r.printf("filters updated\n")
		r.printCandidate()
	default:
		r.printf("unknown command %q, h for help\n", fields[0])
	}
	return false, nil
}

func (r *Runner) vote(ctx context.Context, direction model.Direction) error {
	outcome, err := r.ctrl.Vote(ctx, direction)
	if err != nil {
		return err
	}
	if direction == model.Like && !outcome.IsMatch {
		r.printf("%d/%d likes\n", outcome.LikesCount, outcome.RequiredVotes)
	}
	r.printCandidate()
	return nil
}

func (r *Runner) printCandidate() {
	v, err := r.ctrl.View()
	if err != nil {
		return
	}
	switch {
	case v.Candidate != nil:
		m := v.Candidate
		r.printf("\n%s (%s)  %.1f\n", m.Title, year(m.ReleaseDate), m.VoteAverage)
		if poster := model.PosterURL(r.imageBase, m.PosterPath, "w500"); poster != "" {
			r.printf("%s\n", poster)
		}
		if m.Overview != "" {
			r.printf("%s\n", m.Overview)
		}
	case v.CatalogErr != nil:
		r.printf("movies could not be loaded (%v), r to retry\n", v.CatalogErr)
	case v.Loading:
		r.printf("loading more movies...\n")
	default:
		r.printf("no more movies for these filters\n")
	}
}

func (r *Runner) printMembers() error {
	v, err := r.ctrl.View()
	if err != nil {
		return err
	}
	r.printf("%d matches so far\n", v.MatchCount)
	for _, m := range v.Members {
		r.printf("  %-20s %d swipes\n", m.Name, m.Count)
	}
	return nil
}

func (r *Runner) printNotification(n usecase_swiping.Notification) {
	switch n.Kind {
	case usecase_swiping.NotificationMatch:
		if n.Remote {
			r.printf("\n*** match in the group: %s ***\n", n.Movie.Title)
		} else {
			r.printf("\n*** MATCH: %s ***\n", n.Movie.Title)
		}
	case usecase_swiping.NotificationMemberJoined:
		r.printf("\n%s joined\n", n.Member.Name)
	}
}

// ParseFilters reads "8,337 28,35 [12]".
func ParseFilters(args []string) (model.Filters, error) {
	if len(args) < 2 || len(args) > 3 {
		return model.Filters{}, fmt.Errorf("%w: usage f <providers> <genres> [certification]", model.ErrValidation)
	}
	filters := model.Filters{
		ProviderIDs:      strings.Split(args[0], ","),
		GenreIDs:         strings.Split(args[1], ","),
		MaxCertification: model.DefaultCertification,
	}
	if len(args) == 3 {
		cert, err := model.ParseCertification(args[2])
		if err != nil {
			return model.Filters{}, err
		}
		filters.MaxCertification = cert
	}
	filters = filters.Normalize()
	return filters, filters.Validate()
}

func describe(err error) string {
	switch {
	case errors.Is(err, model.ErrTransientStore):
		return "the server is unreachable, try again"
	case errors.Is(err, usecase_swiping.ErrNothingToUndo):
		return "nothing to undo"
	case errors.Is(err, usecase_swiping.ErrNoCandidate):
		return "no movie to vote on"
	default:
		return err.Error()
	}
}

func year(releaseDate string) string {
	if len(releaseDate) >= 4 {
		return releaseDate[:4]
	}
	return "?"
}
