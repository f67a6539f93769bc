package server

import (
	"context"
	"net/http"
	"time"

	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/feed"
	"example.com/socialfeed/internal/follow"
	"example.com/socialfeed/internal/lock"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/middleware"
	"example.com/socialfeed/internal/posts"
	"example.com/socialfeed/internal/store"
	"example.com/socialfeed/internal/users"
)

type Server struct {
	users       *users.Directory
	follow      *follow.Manager
	posts       *posts.Repository
	feed        *feed.Aggregator
	kafkaWriter appkafka.KafkaWriter // nil means posts are written directly
}

// Options tune the core components behind the HTTP surface.
type Options struct {
	DefaultAvatarURL     string
	FeedFetchConcurrency int
}

var logg = logger.New()

// New wires the core components on top of a store. A nil locker falls back to
// an in-process lock; a nil writer disables Kafka post ingest.
func New(st store.StoreInterface, locker lock.Locker, writer appkafka.KafkaWriter, opts Options) *Server {
	dir := users.NewDirectory(st, locker, opts.DefaultAvatarURL)
	repo := posts.NewRepository(st)
	return &Server{
		users:       dir,
		follow:      follow.NewManager(dir),
		posts:       repo,
		feed:        feed.NewAggregator(dir, repo, opts.FeedFetchConcurrency),
		kafkaWriter: writer,
	}
}

// Routes returns the HTTP handler with all endpoints registered.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /users", s.listUsersHandler)
	mux.HandleFunc("GET /users/{id}", s.getUserHandler)
	mux.HandleFunc("POST /users/{id}", s.loadOrCreateUserHandler)
	mux.HandleFunc("PUT /users/{id}", s.saveUserHandler)
	mux.HandleFunc("GET /users/{id}/feed", s.getFeedHandler)
	mux.HandleFunc("POST /users/{id}/posts", s.createPostHandler)
	mux.HandleFunc("PUT /users/{id}/following/{followee}", s.addFollowHandler)
	mux.HandleFunc("DELETE /users/{id}/following/{followee}", s.removeFollowHandler)

	return middleware.RequestID(middleware.AccessLog(mux))
}

// Run starts the HTTP(S) server and shuts it down gracefully when ctx is done.
// TLS is used when both certFile and keyFile are set.
func Run(ctx context.Context, s *Server, addr, certFile, keyFile string) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 30 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		var err error
		if certFile != "" && keyFile != "" {
			logg.Info("server", "Starting HTTPS server on "+addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}
