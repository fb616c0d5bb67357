package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/api"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/bridge"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/lifecycle"
	"github.com/jrsteele09/go-auth-client/navigation"
	"github.com/jrsteele09/go-auth-client/provider"
	"github.com/jrsteele09/go-auth-client/provider/oidcidp"
	"github.com/jrsteele09/go-auth-client/provider/providerfakes"
	"github.com/jrsteele09/go-auth-client/ratelimit"
	"github.com/jrsteele09/go-auth-client/session/filestore"
	"github.com/jrsteele09/go-auth-client/state"
	"github.com/jrsteele09/go-auth-client/token"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("auth client stopped")
	}
	log.Info().Msg("auth client stopped")
}

func run(log zerolog.Logger) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	ctx := context.Background()

	store, err := filestore.New(
		filepath.Join(c.GetDataFolder(), "session.enc"),
		[]byte(config.GetEnv("SESSION_STORE_SECRET", "dev-only-secret")),
	)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}

	stateStore := state.New(state.WithAttemptWindow(c.GetAttemptWindow()))
	nav := navigation.NewLogNavigator(log)

	terminator, err := lifecycle.NewTerminator(store, stateStore, nav, log)
	if err != nil {
		return err
	}

	refreshEndpoint := api.NewRefreshEndpoint(c.GetAPIBaseURL())
	tokens, err := token.New(store, refreshEndpoint, terminator,
		token.WithRefreshThreshold(c.GetRefreshThreshold()),
		token.WithLogger(log),
	)
	if err != nil {
		return err
	}

	gateway, err := api.NewGateway(c.GetAPIBaseURL(), store, tokens, api.WithLogger(log))
	if err != nil {
		return err
	}
	apiClient, err := api.NewClient(gateway)
	if err != nil {
		return err
	}

	completer, err := lifecycle.NewCompleter(apiClient, store, stateStore, nav, log)
	if err != nil {
		return err
	}

	idp, err := newIdentityProvider(ctx, c, log)
	if err != nil {
		return err
	}

	sync, err := bridge.New(store, idp, completer, terminator, bridge.WithLogger(log))
	if err != nil {
		return err
	}
	if err := sync.Start(ctx); err != nil {
		return fmt.Errorf("starting identity bridge: %w", err)
	}
	defer sync.Stop()

	service, err := auth.NewService(auth.Deps{
		Limiter:    ratelimit.New(ratelimit.WithLimits(c.GetMaxLoginAttempts(), c.GetAttemptWindow())),
		Provider:   idp,
		API:        apiClient,
		Store:      store,
		State:      stateStore,
		Tokens:     tokens,
		Completer:  completer,
		Terminator: terminator,
	}, auth.WithLogger(log))
	if err != nil {
		return err
	}

	unsubscribe := stateStore.Subscribe(func(st state.AuthState) {
		log.Info().
			Bool("authenticated", st.IsAuthenticated).
			Bool("loading", st.IsLoading).
			Str("error", st.Err).
			Msg("auth state changed")
	})
	defer unsubscribe()

	ok, err := service.VerifySession(ctx)
	if err != nil {
		return fmt.Errorf("verifying session: %w", err)
	}
	log.Info().Bool("session_valid", ok).Msg("startup session check")

	waitForStopSignal()
	return nil
}

// newIdentityProvider builds the OIDC provider when an issuer is configured
// and falls back to the in-memory fake for local development.
func newIdentityProvider(ctx context.Context, c config.Config, log zerolog.Logger) (provider.IdentityProvider, error) {
	if c.GetIssuerURL() == "" {
		log.Warn().Msg("no OIDC issuer configured, using in-memory identity provider")
		fake := providerfakes.NewFakeProvider()
		fake.AddAccount("demo@example.com", "demo-password")
		return fake, nil
	}

	return oidcidp.New(ctx, oidcidp.Config{
		IssuerURL:    c.GetIssuerURL(),
		ClientID:     c.GetProviderClientID(),
		ClientSecret: c.GetProviderClientSecret(),
		Scopes:       c.GetProviderScopes(),
	}, oidcidp.WithLogger(log))
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
