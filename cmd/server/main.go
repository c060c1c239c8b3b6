package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/GZancewicz/web-conference/internal/config"
	"github.com/GZancewicz/web-conference/internal/logging"
	"github.com/GZancewicz/web-conference/internal/registry"
	"github.com/GZancewicz/web-conference/internal/server"
	"github.com/GZancewicz/web-conference/internal/signaling"
)

func main() {
	logging.Init()
	cfg := config.LoadServer()

	reg := registry.New()
	hub := signaling.NewHub(reg)
	router := server.New(cfg, hub, reg)

	slog.Info("starting conference server", "addr", cfg.Addr())
	if err := http.ListenAndServe(cfg.Addr(), router); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}
