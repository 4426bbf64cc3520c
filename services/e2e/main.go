package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/humanbelnik/kinomatch/internal/config"
	infra_api "github.com/humanbelnik/kinomatch/internal/infra/api"
	"github.com/humanbelnik/kinomatch/internal/model"
)

func baseURL() string {
	env := os.Getenv("ENV")
	switch env {
	case "CI":
		return "http://core-app:8080/api/v1"
	}
	return "http://localhost:8080/api/v1"
}

func newClient(userID model.UserID) (*infra_api.Client, error) {
	return infra_api.New(config.API{BaseURL: baseURL(), Timeout: 30 * time.Second}, userID, nil)
}

func main() {
	fmt.Println("Starting E2E tests for Kinomatch API...")

	if err := run(context.Background()); err != nil {
		fmt.Printf("E2E failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\n All E2E tests passed!")
}

func run(ctx context.Context) error {
	host, err := newClient(uuid.NewString())
	if err != nil {
		return err
	}
	guest, err := newClient(uuid.NewString())
	if err != nil {
		return err
	}

	if !waitForService(ctx, host) {
		return errors.New("service didn't start in time")
	}

	fmt.Println("\n Step 1: Creating session...")
	session, err := host.Create(ctx, "", model.Filters{
		ProviderIDs:      []string{"8"},
		GenreIDs:         []string{"35"},
		MaxCertification: model.DefaultCertification,
	}, 2)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	fmt.Printf("Session created. ID: %s\n", session.ID)

	sub, err := host.Subscribe(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	fmt.Println("\n Step 2: Joining as guest...")
	if _, err := guest.Join(ctx, session.ID, "", "e2e guest"); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	fmt.Println("\n Step 3: Voting until match...")
	movie := model.MovieSummary{ID: 550, Title: "Fight Club"}
	for _, c := range []*infra_api.Client{host, guest} {
		if _, err := c.RecordVote(ctx, model.Vote{SessionID: session.ID, MovieID: movie.ID, Direction: model.Like, Movie: movie}); err != nil {
			return fmt.Errorf("vote: %w", err)
		}
	}

	matches, err := guest.Matches(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("matches: %w", err)
	}
	if len(matches) != 1 || matches[0].MovieID != movie.ID {
		return fmt.Errorf("expected one match on %d, got %+v", movie.ID, matches)
	}

	fmt.Println("\n Step 4: Waiting for the match on the feed...")
	timeout := time.After(10 * time.Second)
	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return errors.New("feed closed before the match arrived")
			}
			if event.Type == model.EventMatchInserted {
				return nil
			}
		case <-timeout:
			return errors.New("no match on the feed")
		}
	}
}

func waitForService(ctx context.Context, c *infra_api.Client) bool {
	fmt.Println(" Waiting for service to be ready...")

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		_, err := c.Get(ctx, uuid.NewString())
		if errors.Is(err, model.ErrSessionNotFound) {
			fmt.Println(" Service is ready!")
			return true
		}

		if i < maxRetries-1 {
			fmt.Printf(" Service not ready yet (attempt %d/%d)...\n", i+1, maxRetries)
			time.Sleep(2 * time.Second)
		}
	}
	return false
}
