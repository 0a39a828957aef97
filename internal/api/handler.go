package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/nidhogg/courier/internal/gateway"
	"github.com/nidhogg/courier/internal/monitor"
	"github.com/nidhogg/courier/internal/router"
	"github.com/nidhogg/courier/internal/skill"
	"go.uber.org/zap"
)

// ChatPipeline is the routing surface the API exposes.
type ChatPipeline interface {
	Handle(ctx context.Context, platform, channelID, input string) *router.Reply
	ResolveChoice(ctx context.Context, platform, channelID, choiceID string, choice int) *router.Reply
}

// MonitorControl is the background monitor surface the API exposes.
type MonitorControl interface {
	Status() monitor.Status
	FireNow(ctx context.Context) int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pipeline ChatPipeline
	registry *skill.Registry
	mon      MonitorControl
	gw       *gateway.Gateway
	logger   *zap.Logger
}

// NewHandler creates a new API handler. mon and gw may be nil; their routes
// then answer 503.
func NewHandler(pipeline ChatPipeline, registry *skill.Registry, mon MonitorControl,
	gw *gateway.Gateway, logger *zap.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		registry: registry,
		mon:      mon,
		gw:       gw,
		logger:   logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Post("/chat", h.chat)
		r.Post("/choices/{id}", h.resolveChoice)
		r.Get("/skills", h.listSkills)
		r.Get("/intents", h.listIntents)
		r.Get("/monitor", h.monitorStatus)
		r.Post("/monitor/tick", h.monitorTick)
		r.Get("/gateway/status", h.gatewayStatus)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "courier"})
}

type chatRequest struct {
	ChannelID string `json:"channel_id,omitempty"`
	Content   string `json:"content"`
}

type chatResponse struct {
	ChannelID string `json:"channel_id"`
	*router.Reply
}

// chat routes one message. An omitted channel_id starts a fresh
// conversation; clients reuse the returned one to keep context.
func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		return
	}
	if req.ChannelID == "" {
		req.ChannelID = uuid.New().String()
	}

	reply := h.pipeline.Handle(r.Context(), "rest", req.ChannelID, req.Content)
	writeJSON(w, http.StatusOK, chatResponse{ChannelID: req.ChannelID, Reply: reply})
}

type choiceRequest struct {
	ChannelID string `json:"channel_id,omitempty"`
	Choice    int    `json:"choice"`
}

func (h *Handler) resolveChoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ChannelID == "" {
		req.ChannelID = uuid.New().String()
	}

	reply := h.pipeline.ResolveChoice(r.Context(), "rest", req.ChannelID, id, req.Choice)
	writeJSON(w, http.StatusOK, chatResponse{ChannelID: req.ChannelID, Reply: reply})
}

type skillInfo struct {
	Name     string   `json:"name"`
	Intents  []string `json:"intents"`
	Keywords []string `json:"keywords,omitempty"`
	Ready    bool     `json:"ready"`
	Reason   string   `json:"reason,omitempty"`
}

func (h *Handler) listSkills(w http.ResponseWriter, r *http.Request) {
	descs := h.registry.All()
	out := make([]skillInfo, 0, len(descs))
	for _, d := range descs {
		ready, reason := d.CheckReady()
		out = append(out, skillInfo{
			Name:     d.Name,
			Intents:  d.Intents,
			Keywords: d.Keywords,
			Ready:    ready,
			Reason:   reason,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) listIntents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Intents())
}

func (h *Handler) monitorStatus(w http.ResponseWriter, r *http.Request) {
	if h.mon == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "monitor not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, h.mon.Status())
}

func (h *Handler) monitorTick(w http.ResponseWriter, r *http.Request) {
	if h.mon == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "monitor not initialized"})
		return
	}
	fails := h.mon.FireNow(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "tick fired",
		"hook_fails": fails,
	})
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, h.gw.Statuses())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
