package api

import (
	"net/http"

	"github.com/lecturehub/backend/internal/auth"
	apperrors "github.com/lecturehub/backend/internal/errors"
	"github.com/lecturehub/backend/internal/health"
	"github.com/lecturehub/backend/internal/metrics"
	"github.com/lecturehub/backend/internal/websocket"
)

type Router struct {
	mux             *http.ServeMux
	authHandlers    *auth.Handlers
	authService     *auth.Service
	lectureHandlers *LectureHandlers
	wsHandler       *websocket.Handler
	healthHandler   *health.Handler
	metrics         *metrics.Metrics
}

func NewRouter(
	authHandlers *auth.Handlers,
	authService *auth.Service,
	lectureHandlers *LectureHandlers,
	wsHandler *websocket.Handler,
	healthHandler *health.Handler,
	m *metrics.Metrics,
) *Router {
	r := &Router{
		mux:             http.NewServeMux(),
		authHandlers:    authHandlers,
		authService:     authService,
		lectureHandlers: lectureHandlers,
		wsHandler:       wsHandler,
		healthHandler:   healthHandler,
		metrics:         m,
	}
	r.setupRoutes()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Health and metrics
	r.mux.HandleFunc("GET /health", r.healthHandler.LivenessHandler)
	r.mux.HandleFunc("GET /health/ready", r.healthHandler.ReadinessHandler)
	r.mux.HandleFunc("GET /health/deep", r.healthHandler.HealthHandler)
	r.mux.HandleFunc("GET /metrics", r.metrics.Handler())

	// Auth routes (no auth required)
	r.mux.HandleFunc("POST /api/v1/auth/register", r.authHandlers.Register)
	r.mux.HandleFunc("POST /api/v1/auth/login", r.authHandlers.Login)
	r.mux.HandleFunc("POST /api/v1/auth/refresh", r.authHandlers.Refresh)

	// Auth routes (auth required)
	r.mux.HandleFunc("POST /api/v1/auth/logout", r.withAuth(r.authHandlers.Logout))

	// Lecture routes (auth required)
	r.mux.HandleFunc("POST /api/v1/lectures", r.withAuth(apperrors.HandleFunc(r.lectureHandlers.CreateLecture)))
	r.mux.HandleFunc("GET /api/v1/lectures", r.withAuth(apperrors.HandleFunc(r.lectureHandlers.ListLectures)))
	r.mux.HandleFunc("GET /api/v1/lectures/{lecture_id}", r.withAuth(apperrors.HandleFunc(r.lectureHandlers.GetLecture)))

	// Processing jobs (auth required); results stream over the websocket
	r.mux.HandleFunc("POST /api/v1/lectures/{lecture_id}/transcribe", r.withAuth(apperrors.HandleFunc(r.lectureHandlers.EnqueueTranscribe)))
	r.mux.HandleFunc("POST /api/v1/lectures/{lecture_id}/summarize", r.withAuth(apperrors.HandleFunc(r.lectureHandlers.EnqueueSummarize)))
	r.mux.HandleFunc("POST /api/v1/lectures/{lecture_id}/export-pdf", r.withAuth(apperrors.HandleFunc(r.lectureHandlers.EnqueueExportPDF)))
	r.mux.HandleFunc("POST /api/v1/lectures/{lecture_id}/flashcards", r.withAuth(apperrors.HandleFunc(r.lectureHandlers.EnqueueFlashcards)))
	r.mux.HandleFunc("GET /api/v1/jobs/{job_id}", r.withAuth(apperrors.HandleFunc(r.lectureHandlers.GetJob)))

	// Status stream (token optional, validated inside the handler)
	r.mux.HandleFunc("GET /ws/lectures/{lecture_id}/", r.wsHandler.ServeWS)
	r.mux.HandleFunc("GET /ws/lectures/", r.wsHandler.ServeWS)
}

func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	middleware := auth.Middleware(r.authService)
	return func(w http.ResponseWriter, req *http.Request) {
		middleware(http.HandlerFunc(next)).ServeHTTP(w, req)
	}
}
