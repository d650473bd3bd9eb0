package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"netchatbridge/internal/bridge"
	"netchatbridge/internal/metrics"
	"netchatbridge/internal/models"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server is the operational HTTP endpoint: health, metrics and a
// secret-free view of the configured bridges. Bound to localhost by
// default.
type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	registry *bridge.Registry
	config   models.ServerConfig
	version  string
	server   *http.Server
}

func NewServer(cfg models.ServerConfig, registry *bridge.Registry, version string, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		registry: registry,
		config:   cfg,
		version:  version,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/bridges", s.handleBridges()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.WithField("addr", s.server.Addr).Info("Starting ops server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	type healthResponse struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.logger, healthResponse{Status: "ok", Version: s.version})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		writeJSON(w, s.logger, metrics.Default().Export())
	}
}

func (s *Server) handleBridges() http.HandlerFunc {
	type bridgeInfo struct {
		RoomID         string `json:"room_id"`
		NetChatRoom    string `json:"netchat_room"`
		MessageCounter int    `json:"message_counter"`
		Corrupt        bool   `json:"corrupt,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.registry.Entries(r.Context())
		if err != nil {
			s.logger.WithError(err).Error("Failed to list bridges")
			http.Error(w, "failed to list bridges", http.StatusInternalServerError)
			return
		}

		infos := make([]bridgeInfo, 0, len(entries))
		for _, entry := range entries {
			info := bridgeInfo{RoomID: entry.RoomID}
			if entry.Err != nil {
				info.Corrupt = true
			} else {
				info.NetChatRoom = entry.Mapping.RoomName
				info.MessageCounter = entry.Mapping.MessageCounter
			}
			infos = append(infos, info)
		}
		writeJSON(w, s.logger, infos)
	}
}

func writeJSON(w http.ResponseWriter, logger *logrus.Logger, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}
