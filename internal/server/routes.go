// Package server assembles the HTTP surface: websocket signaling, health,
// metrics, static assets and the optional assistant routes.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GZancewicz/web-conference/internal/assistant"
	"github.com/GZancewicz/web-conference/internal/config"
	"github.com/GZancewicz/web-conference/internal/registry"
	"github.com/GZancewicz/web-conference/internal/signaling"
)

// New builds the router. reg is shared with the hub so the assistant can
// read room conversation context.
func New(cfg *config.Server, hub *signaling.Hub, reg *registry.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", hub.ServeWs)

	ai := assistant.New(cfg.AssistantKey, cfg.AssistantURL, cfg.AssistantModel)
	r.Get("/assistant/available", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]bool{"available": ai.Available()})
	})
	r.Post("/assistant/chat", assistantChat(ai, reg))

	if dir := cfg.StaticDir; dir != "" {
		if _, err := os.Stat(dir); err == nil {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		} else {
			slog.Warn("static directory not found, not serving assets", "dir", dir)
		}
	}

	return r
}

func assistantChat(ai *assistant.Client, reg *registry.Registry) http.HandlerFunc {
	type request struct {
		RoomID string `json:"room_id"`
		Text   string `json:"text"`
	}
	type response struct {
		Reply string `json:"reply"`
	}

	return func(w http.ResponseWriter, req *http.Request) {
		if !ai.Available() {
			http.Error(w, "assistant not configured", http.StatusServiceUnavailable)
			return
		}
		var in request
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil || in.RoomID == "" || in.Text == "" {
			http.Error(w, "room_id and text are required", http.StatusBadRequest)
			return
		}

		reply, err := ai.Reply(req.Context(), reg.Context(in.RoomID), in.Text)
		if err != nil {
			slog.Error("assistant reply failed", "room", in.RoomID, "err", err)
			http.Error(w, "assistant unavailable", http.StatusBadGateway)
			return
		}
		writeJSON(w, response{Reply: reply})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
