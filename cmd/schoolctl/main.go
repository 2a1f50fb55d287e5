package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-school-session/accounts"
	"github.com/jrsteele09/go-school-session/auth"
	"github.com/jrsteele09/go-school-session/credentials"
	"github.com/jrsteele09/go-school-session/credentials/redisstore"
	"github.com/jrsteele09/go-school-session/credentials/repofake"
	"github.com/jrsteele09/go-school-session/credentials/sqlitestore"
	"github.com/jrsteele09/go-school-session/internal/config"
	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/jrsteele09/go-school-session/provider/nativecookie"
	"github.com/jrsteele09/go-school-session/provider/oauthplatform"
	"github.com/jrsteele09/go-school-session/provider/sessionhandle"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type options struct {
	provider string
	user     string
	password string
	grant    string
	feature  string
	account  string
	from     string
	to       string
	logout   bool
}

func main() {
	opts := parseFlags()
	if err := run(opts); err != nil {
		log.Fatal().Err(err).Msg("schoolctl failed")
	}
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.provider, "provider", "", "backend family: native_cookie, oauth or session_handle (empty restores the stored login)")
	flag.StringVar(&o.user, "user", "", "login identifier")
	flag.StringVar(&o.password, "password", "", "password, authorization code or refresh token")
	flag.StringVar(&o.grant, "grant", "", "oauth grant: authorization_code, refresh_token or password")
	flag.StringVar(&o.feature, "feature", string(accounts.FeatureTimetable), "timetable, grades, homework or school_life")
	flag.StringVar(&o.account, "account", "", "account id (defaults to the active account)")
	flag.StringVar(&o.from, "from", "", "first day, YYYY-MM-DD")
	flag.StringVar(&o.to, "to", "", "last day, YYYY-MM-DD")
	flag.BoolVar(&o.logout, "logout", false, "forget the stored login and exit")
	flag.Parse()
	return o
}

func run(opts options) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	adapters, oauth, err := newAdapters(c)
	if err != nil {
		return err
	}
	service, err := auth.NewService(adapters, store, auth.WithReloginTimeout(c.GetReloginTimeout()))
	if err != nil {
		return err
	}

	if opts.logout {
		return service.Logout(ctx)
	}
	if err := signIn(ctx, service, oauth, opts); err != nil {
		return err
	}

	for _, a := range service.Accounts() {
		log.Info().Str("account_id", a.ID).Str("name", a.DisplayName).Str("kind", string(a.Kind)).Msg("account")
	}

	params := provider.Params{}
	if opts.from != "" {
		params[provider.ParamFrom] = opts.from
	}
	if opts.to != "" {
		params[provider.ParamTo] = opts.to
	}
	resp := service.Execute(ctx, accounts.Feature(opts.feature), opts.account, params)
	if resp.Status != provider.StatusOK {
		fmt.Fprintln(os.Stderr, apperrors.UserMessage(resp.Err()))
		return fmt.Errorf("request failed with status %s: %w", resp.Status, resp.Err())
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp.Payload)
}

func signIn(ctx context.Context, service *auth.Service, oauth *oauthplatform.Adapter, opts options) error {
	var out provider.LoginOutcome
	if opts.provider == "" {
		out = service.Restore(ctx)
	} else {
		kind, err := credentials.ParseProviderKind(opts.provider)
		if err != nil {
			return err
		}
		creds := credentials.Credentials{Identifier: opts.user, Secret: opts.password, ProviderKind: kind}
		if opts.grant != "" {
			creds = creds.WithExtra(map[string]string{credentials.ExtraGrant: opts.grant})
		}
		if kind == credentials.ProviderOAuth && creds.Secret == "" {
			if creds, err = authorizeInBrowser(oauth, creds); err != nil {
				return err
			}
		}
		out = service.Login(ctx, creds)
	}

	for out.Kind == provider.OutcomeChallengeRequired {
		answer, err := prompt(out.Challenge)
		if err != nil {
			return err
		}
		out = service.ContinueLogin(ctx, answer)
	}
	if out.Kind != provider.OutcomeAuthenticated {
		fmt.Fprintln(os.Stderr, apperrors.UserMessage(out.Err()))
		return fmt.Errorf("login ended in state %s: %w", service.State(), out.Err())
	}
	return nil
}

// authorizeInBrowser prints the authorization URL and reads back the code from the redirect.
func authorizeInBrowser(oauth *oauthplatform.Adapter, creds credentials.Credentials) (credentials.Credentials, error) {
	if oauth == nil {
		return creds, errors.New("oauth is not configured")
	}
	authURL, verifier := oauth.AuthorizationURL(uuid.NewString(), creds.Identifier)
	fmt.Printf("Open this URL and paste the code from the redirect:\n%s\n> ", authURL)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return creds, fmt.Errorf("read authorization code: %w", err)
	}
	creds = creds.WithSecret(strings.TrimSpace(line))
	return creds.WithExtra(map[string]string{
		credentials.ExtraGrant:        oauthplatform.GrantAuthorizationCode,
		credentials.ExtraCodeVerifier: verifier,
	}), nil
}

func prompt(challenge *provider.LoginChallenge) (string, error) {
	fmt.Println(challenge.Prompt)
	for i, choice := range challenge.Choices {
		fmt.Printf("  %d) %s\n", i+1, choice)
	}
	fmt.Print("> ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read challenge answer: %w", err)
	}
	answer := strings.TrimSpace(line)
	for i, choice := range challenge.Choices {
		if answer == fmt.Sprint(i+1) {
			return choice, nil
		}
	}
	return answer, nil
}

func newStore(c config.Config) (credentials.Store, func(), error) {
	if c.GetStoreKind() == config.StoreKindMemory {
		return repofake.NewFakeCredentialsStore(), func() {}, nil
	}
	sealer, err := credentials.NewSealer(c.GetSealKey())
	if err != nil {
		return nil, nil, err
	}

	switch c.GetStoreKind() {
	case config.StoreKindRedis:
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr(), DB: c.GetRedisDB()})
		store, err := redisstore.New(client, c.GetRedisKey(), sealer)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, func() { client.Close() }, nil
	case config.StoreKindSQLite:
		store, err := sqlitestore.Open(c.GetSQLitePath(), sealer)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store kind %q", c.GetStoreKind())
}

// newAdapters builds every adapter the configuration has endpoints for.
func newAdapters(c config.Config) (*provider.Set, *oauthplatform.Adapter, error) {
	httpClient := provider.NewHTTPClient(c.GetRequestTimeout())
	var list []provider.Adapter

	native, err := nativecookie.New(nativecookie.Config{
		BaseURL:    c.GetNativeBaseURL(),
		APIVersion: c.GetNativeAPIVersion(),
		UserAgent:  c.GetNativeUserAgent(),
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, nil, err
	}
	list = append(list, native)

	var oauth *oauthplatform.Adapter
	if c.GetOAuthClientID() != "" {
		oauth, err = oauthplatform.New(oauthplatform.Config{
			ClientID:     c.GetOAuthClientID(),
			ClientSecret: c.GetOAuthClientSecret(),
			AuthURL:      c.GetOAuthAuthURL(),
			TokenURL:     c.GetOAuthTokenURL(),
			APIURL:       c.GetOAuthAPIURL(),
			RedirectURI:  c.GetOAuthRedirectURI(),
			Scopes:       c.GetOAuthScopes(),
			Issuer:       c.GetOAuthIssuer(),
			HTTPClient:   httpClient,
		})
		if err != nil {
			return nil, nil, err
		}
		list = append(list, oauth)
	}

	if c.GetSessionHandleBaseURL() != "" {
		client, err := sessionhandle.NewHTTPClient(c.GetSessionHandleBaseURL(), c.GetNativeUserAgent(), httpClient)
		if err != nil {
			return nil, nil, err
		}
		handle, err := sessionhandle.New(sessionhandle.Config{Client: client})
		if err != nil {
			return nil, nil, err
		}
		list = append(list, handle)
	}
	return provider.NewSet(list...), oauth, nil
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
