// Command server wires config, storage, the trust-plane stores, and the
// JSON API into a running process: config.Load -> store.Open/Bootstrap ->
// bootstrap.Run -> handlers.Deps.Register -> middleware chain -> listener,
// then a single blocking serve loop with signal-driven graceful shutdown.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caddyserver/certmagic"

	"github.com/urlsfyi/urls/internal/audit"
	"github.com/urlsfyi/urls/internal/bootstrap"
	"github.com/urlsfyi/urls/internal/comments"
	"github.com/urlsfyi/urls/internal/config"
	"github.com/urlsfyi/urls/internal/disposable"
	"github.com/urlsfyi/urls/internal/envelope"
	"github.com/urlsfyi/urls/internal/fetch"
	"github.com/urlsfyi/urls/internal/handlers"
	"github.com/urlsfyi/urls/internal/invites"
	"github.com/urlsfyi/urls/internal/listener"
	"github.com/urlsfyi/urls/internal/login"
	"github.com/urlsfyi/urls/internal/mailer"
	"github.com/urlsfyi/urls/internal/middleware"
	"github.com/urlsfyi/urls/internal/search"
	"github.com/urlsfyi/urls/internal/store"
	"github.com/urlsfyi/urls/internal/urls"
	"github.com/urlsfyi/urls/internal/users"
)

const sessionKeyLabel = "urlsfyi.session.v1"

func main() {
	flags := config.ParseFlags()

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer db.Close()

	if err := store.Bootstrap(db); err != nil {
		log.Fatalf("store: bootstrap: %v", err)
	}
	if err := audit.Init(db); err != nil {
		log.Fatalf("audit: %v", err)
	}

	if err := config.OverlayDB(db, flags); err != nil {
		log.Printf("config: db overlay skipped: %v", err)
	} else if err := config.SeedDB(db); err != nil {
		log.Printf("config: seed overlay: %v", err)
	}

	userStore := users.NewStore(db, disposable.Default)
	inviteStore := invites.NewStore(db, userStore)
	loginStore := login.NewStore(db, userStore)
	urlStore := urls.NewStore(db)
	commentStore := comments.NewStore(db)

	if err := bootstrap.Run(context.Background(), userStore, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	sessionSecret := []byte(cfg.Session.Secret)
	if len(sessionSecret) == 0 {
		log.Println("session: no URLS_SESSION_KEY configured, using a random per-process secret (sessions will not survive a restart)")
		sessionSecret = envelope.RandomSecret()
	}
	sessionKey, err := envelope.DeriveKey(sessionSecret, sessionKeyLabel)
	if err != nil {
		log.Fatalf("session: derive key: %v", err)
	}

	var mail mailer.Mailer
	if cfg.SMTPConfigured() {
		mail = &mailer.SMTPMailer{
			Addr: cfg.SMTP.Host + ":" + cfg.SMTP.Port,
			From: cfg.SMTP.From,
		}
	} else {
		dir := config.ExpandPath("~/.urlsfyi/mail")
		log.Printf("mailer: no SMTP relay configured, writing login emails to %s", dir)
		mail = &mailer.FileSink{Dir: dir}
	}

	deps := &handlers.Deps{
		DB:           db,
		Users:        userStore,
		Invites:      inviteStore,
		Logins:       loginStore,
		Urls:         urlStore,
		Comments:     commentStore,
		Mailer:       mail,
		Search:       search.NewMemory(),
		HTTP:         fetch.NewHTTPClient(),
		SessionKey:   sessionKey,
		CookieSecure: cfg.IsProduction() || cfg.HTTPS.Enabled,
	}

	mux := http.NewServeMux()
	deps.Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimit, middleware.DefaultBurst)

	handler := middleware.RequestTracing(
		middleware.BodySizeLimit(middleware.MaxBodySize)(
			middleware.SecurityHeaders(
				rateLimiter.Middleware(
					middleware.SessionMiddleware(sessionKey)(mux),
				),
			),
		),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go runServer(cfg, srv)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("stopped")
}

// runServer blocks serving HTTP, either plain (via the tuned
// internal/listener accept path) or with automatic HTTPS via certmagic
// when Config.HTTPS.Enabled.
func runServer(cfg *config.Config, srv *http.Server) {
	log.Printf("listening on %s (%s)", srv.Addr, cfg.Server.Hostname)

	if cfg.HTTPS.Enabled {
		certmagic.DefaultACME.Email = cfg.HTTPS.Email
		if cfg.HTTPS.Staging {
			certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
		}
		if err := certmagic.HTTPS([]string{cfg.Server.Hostname}, srv.Handler); err != nil {
			log.Fatalf("https serve: %v", err)
		}
		return
	}

	ln, err := listener.ListenTCP("tcp", srv.Addr)
	if err != nil {
		log.Fatalf("listen %s: %v", srv.Addr, err)
	}
	ln = listener.LimitConns(ln, listener.ConnLimits{})
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("serve: %v", err)
	}
}
