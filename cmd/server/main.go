// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tomtom215/fleetlink/internal/api"
	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/connection"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/session"
	"github.com/tomtom215/fleetlink/internal/supervisor"
	"github.com/tomtom215/fleetlink/internal/supervisor/services"
	"github.com/tomtom215/fleetlink/internal/websocket"
)

const (
	exitOK     = 0
	exitError  = 1
	exitReauth = 2
)

type options struct {
	login      bool
	logout     bool
	configPath string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	fs.BoolVar(&opts.login, "login", false, "run the interactive login and store the token (password from "+passwordEnv+")")
	fs.BoolVar(&opts.logout, "logout", false, "delete the stored token")
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.login && opts.logout {
		return opts, errors.New("--login and --logout are mutually exclusive")
	}
	return opts, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return exitError
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	store, closeStore, err := openTokenStore(&cfg.Auth)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open token store")
		return exitError
	}
	defer closeStore()

	authSession := auth.NewSession(auth.Config{
		Region:      cfg.Region(),
		Locale:      cfg.Account.Locale,
		StoreKey:    cfg.Account.StoreKey(),
		HTTPTimeout: cfg.Auth.HTTPTimeout,
	}, store)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case opts.login:
		return login(ctx, authSession, cfg)
	case opts.logout:
		if err := authSession.Logout(ctx); err != nil {
			logging.Error().Err(err).Msg("Logout failed")
			return exitError
		}
		logging.Info().Msg("Stored token deleted")
		return exitOK
	}

	return serve(ctx, authSession, cfg, opts.configPath)
}

func login(ctx context.Context, authSession *auth.Session, cfg *config.Config) int {
	password, err := readPassword()
	if err != nil {
		logging.Error().Err(err).Msg("Cannot log in")
		return exitError
	}
	if cfg.Account.Username == "" {
		logging.Error().Msg("account.username is required for --login")
		return exitError
	}

	token, err := authSession.Login(ctx, cfg.Account.Username, password)
	if err != nil {
		logging.Error().Err(err).Msg("Login failed")
		return exitError
	}
	logging.Info().
		Str("account", logging.SanitizeEmail(cfg.Account.Username)).
		Time("expires_at", time.Unix(token.ExpiresAt, 0)).
		Msg("Login successful, token stored")
	return exitOK
}

func serve(ctx context.Context, authSession *auth.Session, cfg *config.Config, configPath string) int {
	capWriter, err := openCapture(&cfg.Capture)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to prepare capture directory")
		return exitError
	}

	deps := session.Deps{
		Tokens:  authSession,
		Region:  cfg.Region(),
		Config:  cfg,
		Capture: capWriter,
	}
	if cfg.Events.Enabled {
		pub, err := openPublisher(&cfg.Events)
		if err != nil {
			logging.Error().Err(err).Msg("Failed to create event publisher")
			return exitError
		}
		defer func() {
			if err := pub.Close(); err != nil {
				logging.Warn().Err(err).Msg("Error closing event publisher")
			}
		}()
		deps.Events = pub
	}

	sess, err := session.New(deps)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create fleet session")
		return exitError
	}

	watchLogLevel(configPath)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return exitError
	}

	sessionSvc := services.NewSessionService(sess)
	tree.AddSessionService(sessionSvc)

	if cfg.Server.Enabled {
		hub := websocket.NewHub()
		tree.AddAPIService(services.NewWebSocketHubService(hub))
		tree.AddAPIService(websocket.NewRelay(hub, sess))

		stream := websocket.Handler(hub, cfg.Server.CORSOrigins)
		srv := newHTTPServer(&cfg.Server, api.NewRouter(sess, api.MiddlewareConfigFrom(&cfg.Server), stream))
		tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
		logging.Info().Str("addr", srv.Addr).Msg("HTTP server enabled")
	}

	logging.Info().
		Str("region", string(cfg.Region())).
		Str("account", logging.SanitizeEmail(cfg.Account.Username)).
		Msg("Starting fleet session")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go cancelOnReauth(ctx, sess.States(), cancel)

	errCh := tree.ServeBackground(ctx)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	if sessionSvc.ReauthRequired() || sess.State() == connection.StateAuthRequired {
		logging.Error().Msg("Login required, run with --login")
		return exitReauth
	}
	logging.Info().Msg("Stopped")
	return exitOK
}
