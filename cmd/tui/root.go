package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/humanbelnik/kinomatch/internal/config"
	"github.com/humanbelnik/kinomatch/internal/delivery/tui"
	infra_api "github.com/humanbelnik/kinomatch/internal/infra/api"
	infra_identity "github.com/humanbelnik/kinomatch/internal/infra/identity"
	"github.com/humanbelnik/kinomatch/internal/infra/logger"
	"github.com/humanbelnik/kinomatch/internal/model"
	usecase_catalog "github.com/humanbelnik/kinomatch/internal/usecase/catalog"
	usecase_swiping "github.com/humanbelnik/kinomatch/internal/usecase/swiping"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath   string
	identityPath string
}

// client bundles what every subcommand needs.
type client struct {
	cfg    *config.Config
	userID model.UserID
	api    *infra_api.Client
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "kinomatch",
		Short:         "Swipe through movies with friends until everyone likes the same one",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.identityPath, "identity", infra_identity.DefaultPath(), "file holding this device's user id")

	cmd.AddCommand(newHostCommand(opts))
	cmd.AddCommand(newJoinCommand(opts))
	cmd.AddCommand(newMatchesCommand(opts))
	return cmd
}

func (o *rootOptions) connect() (*client, error) {
	cfg, err := config.LoadClient(o.configPath)
	if err != nil {
		return nil, err
	}
	lg, err := logger.NewConsole(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	userID, err := infra_identity.LoadOrCreate(o.identityPath)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	api, err := infra_api.New(cfg.API, userID, lg)
	if err != nil {
		return nil, err
	}
	return &client{cfg: cfg, userID: userID, api: api, logger: lg}, nil
}

func (c *client) controller() *usecase_swiping.Controller {
	catalog := usecase_catalog.New(c.api, nil, c.logger)
	return usecase_swiping.New(c.userID, c.api, c.api, catalog, c.api, c.logger)
}

func (c *client) runner(cmd *cobra.Command, ctrl *usecase_swiping.Controller) *tui.Runner {
	return tui.New(ctrl, cmd.InOrStdin(), cmd.OutOrStdout(), c.cfg.TMDB.ImageBaseURL, c.logger)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newHostCommand(opts *rootOptions) *cobra.Command {
	var (
		providers     string
		genres        string
		certification string
		votes         int
	)

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Create a session and start swiping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args := []string{providers, genres}
			if certification != "" {
				args = append(args, certification)
			}
			filters, err := tui.ParseFilters(args)
			if err != nil {
				return err
			}

			c, err := opts.connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.logger.Sync() }()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			ctrl := c.controller()
			session, err := ctrl.Host(ctx, filters, votes)
			if err != nil {
				ctrl.Close()
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "share this link: %s\n", model.ShareLink(c.cfg.HTTP.PublicURL, session.ID))
			return ignoreCancel(c.runner(cmd, ctrl).Swipe(ctx))
		},
	}
	cmd.Flags().StringVar(&providers, "providers", "", "comma separated streaming provider ids")
	cmd.Flags().StringVar(&genres, "genres", "", "comma separated genre ids")
	cmd.Flags().StringVar(&certification, "certification", "", "highest age rating (AL, 6, 9, 12, 16)")
	cmd.Flags().IntVar(&votes, "votes", model.DefaultRequiredVotes, "likes needed for a match")
	_ = cmd.MarkFlagRequired("providers")
	_ = cmd.MarkFlagRequired("genres")
	return cmd
}

func newJoinCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "join <link|session-id>",
		Short: "Open a shared session and start swiping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.logger.Sync() }()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			ctrl := c.controller()
			runner := c.runner(cmd, ctrl)
			state, err := ctrl.Open(ctx, model.ParseShareLink(args[0]))
			if err != nil {
				ctrl.Close()
				return err
			}
			if state == usecase_swiping.StateAwaitingJoinDecision {
				if err := runner.Join(ctx); err != nil {
					ctrl.Close()
					return ignoreCancel(err)
				}
			}
			return ignoreCancel(runner.Swipe(ctx))
		},
	}
}

func newMatchesCommand(opts *rootOptions) *cobra.Command {
	var minVotes int

	cmd := &cobra.Command{
		Use:   "matches <link|session-id>",
		Short: "List the matches of a session and the movies closest to one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.logger.Sync() }()

			id := model.ParseShareLink(args[0])
			out := cmd.OutOrStdout()

			matches, err := c.api.Matches(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d matches\n", len(matches))
			for _, m := range matches {
				fmt.Fprintf(out, "  %s  %s\n", m.MatchedAt.Local().Format("2006-01-02 15:04"), m.Movie.Title)
			}

			partials, err := c.api.PartialMatches(cmd.Context(), id, minVotes)
			if err != nil {
				return err
			}
			if len(partials) > 0 {
				fmt.Fprintln(out, "almost:")
			}
			for _, p := range partials {
				fmt.Fprintf(out, "  %-3d %s\n", p.LikesCount, strings.TrimSpace(p.Movie.Title))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&minVotes, "min-votes", 1, "likes a movie needs to be listed as almost matched")
	return cmd
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
