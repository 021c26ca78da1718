package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/rota/internal/auth"
	"github.com/dukerupert/rota/internal/handler"
	"github.com/dukerupert/rota/internal/middleware"
	"github.com/dukerupert/rota/internal/push"
	"github.com/dukerupert/rota/internal/store"
	"github.com/dukerupert/rota/internal/sweep"
	ws "github.com/dukerupert/rota/internal/websocket"
)

// Options carries the optional collaborators chosen from configuration.
type Options struct {
	Location *time.Location
	Verifier auth.Verifier
	// FCM is nil when Firebase is not configured.
	FCM push.TokenSender
	// WebPush is nil when VAPID keys are not configured.
	WebPush         *push.Service
	SweepSecretHash []byte
	SweepHour       int
}

type Server struct {
	hub         *ws.Hub
	groupStore  *store.GroupStore
	verifier    auth.Verifier
	sweepSecret []byte
	groupH      *handler.GroupHandler
	taskH       *handler.TaskHandler
	listsH      *handler.ListsHandler
	pushH       *handler.PushHandler
	sweepH      *handler.SweepHandler
	sweeper     *sweep.Sweeper
	scheduler   *sweep.Scheduler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger)

	groupStore := store.NewGroupStore(db)
	pushStore := store.NewPushStore(db)
	sweepStore := store.NewSweepStore(db)

	var web push.WebSender
	if opts.WebPush != nil {
		web = opts.WebPush
	}
	notifier := push.NewDispatcher(opts.FCM, web, pushStore, groupStore, logger)

	sweeper := sweep.NewSweeper(groupStore, sweepStore, notifier, hub, logger)

	return &Server{
		hub:         hub,
		groupStore:  groupStore,
		verifier:    opts.Verifier,
		sweepSecret: opts.SweepSecretHash,
		groupH:      handler.NewGroupHandler(groupStore, pushStore, hub, opts.Location, logger),
		taskH:       handler.NewTaskHandler(groupStore, notifier, hub, opts.Location, logger),
		listsH:      handler.NewListsHandler(groupStore, hub, opts.Location, logger),
		pushH:       handler.NewPushHandler(pushStore, opts.WebPush, logger),
		sweepH:      handler.NewSweepHandler(sweeper, opts.Location, logger),
		sweeper:     sweeper,
		scheduler:   sweep.NewScheduler(sweeper, opts.SweepHour, opts.Location, logger),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Sweeper returns the reminder sweeper for one-off runs.
func (s *Server) Sweeper() *sweep.Sweeper {
	return s.sweeper
}

// Scheduler returns the daily sweep scheduler.
func (s *Server) Scheduler() *sweep.Scheduler {
	return s.scheduler
}

// StartCleanup prunes expired rate limiter entries until ctx is done.
func (s *Server) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.rateLimiter.Cleanup()
			}
		}
	}()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", handler.Health)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	cron := s.rateLimited(middleware.RequireSweepSecret(s.sweepSecret)(http.HandlerFunc(s.sweepH.Run)))
	mux.Handle("GET /api/cron/reminders", cron)
	mux.Handle("POST /api/cron/reminders", cron)

	// Identity only
	mux.Handle("GET /api/me/groups", s.identified(s.groupH.ListMine))
	mux.Handle("POST /api/groups", s.identified(s.groupH.Create))
	mux.Handle("POST /api/groups/join", s.rateLimited(s.identified(s.groupH.Join)))

	s.registerGroupRoutes(mux)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) registerGroupRoutes(mux *http.ServeMux) {
	const g = "/api/groups/{group_id}"

	mux.Handle("GET "+g, s.member(s.groupH.Get))
	mux.Handle("PUT "+g, s.admin(s.groupH.Rename))
	mux.Handle("DELETE "+g+"/members/{member_id}", s.member(s.groupH.RemoveMember))
	mux.Handle("PUT "+g+"/members/me", s.member(s.groupH.UpdateProfile))
	mux.Handle("POST "+g+"/devices", s.member(s.groupH.RegisterDevice))

	// Tasks
	mux.Handle("GET "+g+"/tasks", s.member(s.taskH.List))
	mux.Handle("POST "+g+"/tasks", s.admin(s.taskH.Create))
	mux.Handle("DELETE "+g+"/tasks/{task_id}", s.admin(s.taskH.Delete))
	mux.Handle("GET "+g+"/tasks/{task_id}/schedule", s.member(s.taskH.Schedule))
	mux.Handle("POST "+g+"/tasks/{task_id}/complete", s.member(s.taskH.Complete))
	mux.Handle("POST "+g+"/tasks/{task_id}/override", s.admin(s.taskH.Override))
	mux.Handle("POST "+g+"/tasks/{task_id}/remind", s.member(s.taskH.Remind))
	mux.Handle("PUT "+g+"/tasks/{task_id}/rotation", s.admin(s.taskH.SetRotation))
	mux.Handle("PUT "+g+"/tasks/{task_id}/frequency", s.admin(s.taskH.SetFrequency))
	mux.Handle("GET "+g+"/history", s.member(s.taskH.History))

	// Shopping list
	mux.Handle("GET "+g+"/shopping", s.member(s.listsH.ListShopping))
	mux.Handle("POST "+g+"/shopping", s.member(s.listsH.AddShopping))
	mux.Handle("POST "+g+"/shopping/{item_id}/claim", s.member(s.listsH.Claim))
	mux.Handle("DELETE "+g+"/shopping/{item_id}/claim", s.member(s.listsH.Unclaim))
	mux.Handle("POST "+g+"/shopping/{item_id}/complete", s.member(s.listsH.Complete))
	mux.Handle("DELETE "+g+"/shopping/{item_id}", s.member(s.listsH.Remove))

	// Feedback
	mux.Handle("GET "+g+"/feedback", s.member(s.listsH.ListFeedback))
	mux.Handle("POST "+g+"/feedback", s.member(s.listsH.AddFeedback))
	mux.Handle("PUT "+g+"/feedback/{item_id}", s.member(s.listsH.SetFeedbackStatus))

	// Web push
	mux.Handle("POST "+g+"/push/subscribe", s.member(s.pushH.Subscribe))
	mux.Handle("DELETE "+g+"/push/subscriptions/{id}", s.member(s.pushH.Unsubscribe))

	// Live updates
	mux.Handle("GET "+g+"/ws", middleware.TokenFromQuery(s.member(ws.HandleWebSocket(s.hub))))
}

func (s *Server) identified(h http.HandlerFunc) http.Handler {
	return middleware.RequireIdentity(s.verifier, s.logger)(h)
}

func (s *Server) member(h http.HandlerFunc) http.Handler {
	return s.identified(middleware.RequireGroupMember(s.groupStore, s.logger)(h).ServeHTTP)
}

func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return s.member(middleware.RequireAdmin(h).ServeHTTP)
}

func (s *Server) rateLimited(h http.Handler) http.Handler {
	keyFunc := func(r *http.Request) string {
		return r.URL.Path + "|" + middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)(h)
}
