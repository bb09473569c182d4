package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/net/netutil"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/activity"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/auth"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/cases"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/logger"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/login"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/portal"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/storage"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store"
	memorystore "github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store/memory"
	postgresstore "github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store/postgres"
	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen   string `help:"HTTP server listen address" default:"0.0.0.0:8443" env:"HOTLINE_LISTEN"`
	Cert     string `help:"path to TLS cert file" default:"" env:"HOTLINE_TLS_CERT"`
	Key      string `help:"path to TLS key file" default:"" env:"HOTLINE_TLS_KEY"`
	MaxConns int    `help:"maximum concurrent client connections" default:"512" env:"HOTLINE_MAX_CONNS"`

	// CORS configuration for the public report portal
	CORSOrigins []string `help:"allowed CORS origins for the public report API" default:"*" env:"HOTLINE_CORS_ORIGINS"`

	// Secrets
	SessionSecret string        `help:"secret for HMAC signing of session cookies (32+ bytes)" env:"HOTLINE_SESSION_SECRET"`
	TokenSecret   string        `help:"secret for HS256 API tokens (32+ bytes)" env:"HOTLINE_TOKEN_SECRET"`
	SessionTTL    time.Duration `help:"session TTL" default:"168h" env:"HOTLINE_SESSION_TTL"`
	TokenTTL      time.Duration `help:"API token TTL" default:"1h" env:"HOTLINE_TOKEN_TTL"`

	// Pipeline configuration
	PipelineConfig string `help:"path to pipeline YAML (built-in default when empty)" default:"" env:"HOTLINE_PIPELINE_CONFIG"`

	// SSO configuration (optional)
	SSO SSOFlags `embed:"" prefix:"sso-"`

	// File storage configuration
	Storage StorageFlags `embed:"" prefix:"storage-"`

	// Development and operational modes
	Tracing bool `help:"enable tracing" default:"false" env:"HOTLINE_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"HOTLINE_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"HOTLINE_POSTGRES_AUTO_MIGRATE"`
}

type SSOFlags struct {
	ClientID     string   `help:"SSO client ID" default:"" env:"HOTLINE_SSO_CLIENT_ID"`
	ClientSecret string   `help:"SSO client secret" default:"" env:"HOTLINE_SSO_CLIENT_SECRET"`
	AuthURL      string   `help:"SSO authorization endpoint" default:"" env:"HOTLINE_SSO_AUTH_URL"`
	TokenURL     string   `help:"SSO token endpoint" default:"" env:"HOTLINE_SSO_TOKEN_URL"`
	UserInfoURL  string   `help:"SSO userinfo endpoint" default:"" env:"HOTLINE_SSO_USERINFO_URL"`
	CallbackURL  string   `help:"SSO callback URL" default:"" env:"HOTLINE_SSO_CALLBACK_URL"`
	Scopes       []string `help:"SSO scopes" default:"openid,email,profile" env:"HOTLINE_SSO_SCOPES"`
}

// Enabled reports whether an identity provider has been configured.
func (s *SSOFlags) Enabled() bool {
	return s.ClientID != ""
}

type StorageFlags struct {
	Backend  string `help:"file storage backend (local or s3)" default:"local" env:"HOTLINE_STORAGE_BACKEND" enum:"local,s3"`
	LocalDir string `help:"directory for the local storage backend" default:"data/files" env:"HOTLINE_STORAGE_LOCAL_DIR"`
	Bucket   string `help:"S3 bucket for the s3 storage backend" default:"" env:"HOTLINE_STORAGE_BUCKET"`
	Prefix   string `help:"S3 key prefix" default:"" env:"HOTLINE_STORAGE_PREFIX"`
}

func (c *ServerCmd) Validate() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 bytes (--session-secret or HOTLINE_SESSION_SECRET)")
	}
	if len(c.TokenSecret) < 32 {
		return errors.New("token secret must be at least 32 bytes (--token-secret or HOTLINE_TOKEN_SECRET)")
	}
	if c.StoreType == "postgres" && c.PostgresStore.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	if c.Storage.Backend == "s3" && c.Storage.Bucket == "" {
		return errors.New("S3 bucket is required (--storage-bucket or HOTLINE_STORAGE_BUCKET)")
	}
	return nil
}

type stores struct {
	orgs       store.OrganizationStore
	users      store.UserStore
	sessions   store.SessionStore
	cases      store.CaseStore
	files      store.FileStore
	activities store.ActivityStore
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "hotline-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	st, cleanup, err := c.buildStores(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	blobs, err := c.buildStorage(ctx)
	if err != nil {
		return err
	}

	pipelines, err := cases.LoadPipelineConfigFile(c.PipelineConfig)
	if err != nil {
		return err
	}

	recorder := activity.NewRecorder(st.activities)
	caseService := cases.NewService(st.cases, st.files, blobs, recorder, pipelines)
	authService := auth.NewService(st.orgs, st.users, st.sessions, recorder, c.SessionTTL)

	cookies, err := auth.NewCookieCodec([]byte(c.SessionSecret), c.Cert != "", c.SessionTTL)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer([]byte(c.TokenSecret), "hotline", c.TokenTTL)
	if err != nil {
		return err
	}

	var sso *login.SSO
	if c.SSO.Enabled() {
		sso, err = login.NewSSO(login.Config{
			ClientID:     c.SSO.ClientID,
			ClientSecret: c.SSO.ClientSecret,
			AuthURL:      c.SSO.AuthURL,
			TokenURL:     c.SSO.TokenURL,
			UserInfoURL:  c.SSO.UserInfoURL,
			CallbackURL:  c.SSO.CallbackURL,
			Scopes:       c.SSO.Scopes,
		}, authService, cookies, "/operator/cases")
		if err != nil {
			return fmt.Errorf("failed to configure SSO: %w", err)
		}
		log.Info().Msg("Operator SSO enabled")
	}

	// Sweep expired sessions in the background.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := authService.SweepExpiredSessions(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to sweep expired sessions")
				} else if n > 0 {
					log.Info().Int("count", n).Msg("Swept expired sessions")
				}
			}
		}
	}()

	handler := portal.New(portal.Options{
		Cases:       caseService,
		Auth:        authService,
		AuthMW:      auth.NewMiddleware(authService, cookies, tokens),
		Cookies:     cookies,
		Tokens:      tokens,
		SSO:         sso,
		Orgs:        st.orgs,
		Activities:  st.activities,
		CORSOrigins: c.CORSOrigins,
	}).Handler(log)

	srv := configureHTTPServer(c.Listen, handler)

	ln, err := net.Listen("tcp", c.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.Listen, err)
	}
	ln = netutil.LimitListener(ln, c.MaxConns)

	errCh := make(chan error, 1)
	go func() {
		if c.Cert != "" && c.Key != "" {
			log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
			errCh <- srv.ServeTLS(ln, c.Cert, c.Key)
			return
		}
		log.Warn().Str("addr", c.Listen).Msg("Starting HTTP server without TLS, use a terminating proxy in production")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down cleanly: %w", err)
		}
	}

	return nil
}

func (c *ServerCmd) buildStores(ctx context.Context) (*stores, func(), error) {
	if c.StoreType == "postgres" {
		pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
			AutoMigrate:     c.PostgresStore.AutoMigrate,
		})
		if err != nil {
			return nil, nil, err
		}

		return &stores{
			orgs:       postgresstore.NewOrganizationStore(pool),
			users:      postgresstore.NewUserStore(pool),
			sessions:   postgresstore.NewSessionStore(pool),
			cases:      postgresstore.NewCaseStore(pool),
			files:      postgresstore.NewFileStore(pool),
			activities: postgresstore.NewActivityStore(pool),
		}, pool.Close, nil
	}

	// In-memory stores keep local development free of infrastructure. All
	// data is lost on restart.
	users := memorystore.NewUserStore()
	sessions := memorystore.NewSessionStore()
	caseStore := memorystore.NewCaseStore()
	fileStore := memorystore.NewFileStore()
	activities := memorystore.NewActivityStore()

	// Mirror the schema's ON DELETE behaviour for user and case rows.
	users.OnDelete(sessions.DeleteForUser)
	users.OnDelete(caseStore.ClearActorRefs)
	users.OnDelete(fileStore.ClearActorRefs)
	users.OnDelete(activities.ClearActorRefs)
	caseStore.OnDelete(fileStore.DeleteByCase)

	return &stores{
		orgs:       memorystore.NewOrganizationStore(),
		users:      users,
		sessions:   sessions,
		cases:      caseStore,
		files:      fileStore,
		activities: activities,
	}, func() {}, nil
}

func (c *ServerCmd) buildStorage(ctx context.Context) (storage.Adapter, error) {
	if c.Storage.Backend == "s3" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return storage.NewS3(s3.NewFromConfig(awsCfg), c.Storage.Bucket, c.Storage.Prefix)
	}

	return storage.NewLocal(c.Storage.LocalDir)
}
