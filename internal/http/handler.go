package httpapp

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cesargomez89/adfreecast/internal/app"
	"github.com/cesargomez89/adfreecast/internal/domain"
	"github.com/cesargomez89/adfreecast/internal/feed"
	"github.com/cesargomez89/adfreecast/internal/logger"
	"github.com/cesargomez89/adfreecast/internal/processing"
	"github.com/cesargomez89/adfreecast/internal/storage"
	"github.com/cesargomez89/adfreecast/internal/store"
)

// healthTimeout bounds the processor probe in /api/health.
const healthTimeout = 5 * time.Second

// Library is the read side of the store the handlers use directly.
type Library interface {
	PingContext(ctx context.Context) error
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	ListReadyForPodcast(ctx context.Context, podcastID string) ([]domain.ReadyEpisode, error)
	ListAllReady(ctx context.Context) ([]domain.ReadyEpisode, error)
}

type Handler struct {
	Queue         *app.QueueService
	Subscriptions *app.SubscriptionService
	SettingsRepo  *store.SettingsRepo
	Library       Library
	Publisher     *feed.Publisher
	Audio         *storage.Store
	Processor     processing.Client
	Logger        *logger.Logger
}

func NewHandler(
	queue *app.QueueService,
	subs *app.SubscriptionService,
	settings *store.SettingsRepo,
	library Library,
	publisher *feed.Publisher,
	audio *storage.Store,
	processor processing.Client,
	log *logger.Logger,
) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Queue:         queue,
		Subscriptions: subs,
		SettingsRepo:  settings,
		Library:       library,
		Publisher:     publisher,
		Audio:         audio,
		Processor:     processor,
		Logger:        log.WithComponent("http"),
	}
}

// NewRouter wires the middleware stack and every route.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Get("/subscriptions", h.ListSubscriptions)
		r.Post("/subscriptions", h.Subscribe)
		r.Delete("/subscriptions/{podcastID}", h.Unsubscribe)
		r.Post("/subscriptions/{podcastID}/refresh", h.RefreshSubscription)
		r.Get("/subscriptions/{podcastID}/episodes", h.ListEpisodes)
		r.Post("/subscriptions/{podcastID}/enqueue", h.EnqueuePodcast)

		r.Get("/episodes/processing", h.GetProcessing)

		r.Get("/queue", h.QueueStatus)
		r.Post("/queue", h.Enqueue)
		r.Delete("/queue", h.ClearQueue)
		r.Delete("/queue/item", h.RemoveFromQueue)
		r.Post("/queue/recover", h.Recover)

		r.Get("/settings/{key}", h.GetSetting)
		r.Put("/settings/{key}", h.PutSetting)
	})

	r.Get("/feed.xml", h.CombinedFeed)
	r.Get("/feeds/{podcastID}", h.PodcastFeed)
	r.Get("/audio/{file}", h.ServeAudio)
}
