// Package api exposes the bridge over a small REST surface with a
// websocket event stream and a Prometheus metrics endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ZaparooProject/viera-bridge/pkg/companion"
	"github.com/ZaparooProject/viera-bridge/pkg/companion/pairing"
	"github.com/ZaparooProject/viera-bridge/pkg/companion/wake"
	"github.com/ZaparooProject/viera-bridge/pkg/config"
	"github.com/ZaparooProject/viera-bridge/pkg/service"
	"github.com/ZaparooProject/viera-bridge/pkg/viera"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/olahol/melody"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const requestTimeout = 90 * time.Second

// Server wires the HTTP surface to a service instance.
type Server struct {
	svc    *service.Service
	cfg    *config.Instance
	events *melody.Melody
}

// NewServer creates the HTTP surface for a service.
func NewServer(cfg *config.Instance, svc *service.Service) *Server {
	events := melody.New()
	events.Upgrader.CheckOrigin = func(_ *http.Request) bool { return true }
	return &Server{
		svc:    svc,
		cfg:    cfg,
		events: events,
	}
}

// broadcastNotifications forwards service notifications to every
// connected websocket client until the context is cancelled.
func (s *Server) broadcastNotifications(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("stopping notification broadcast via context cancellation")
			return
		case notif := <-s.svc.Notifications():
			data, err := json.Marshal(map[string]any{
				"method": notif.Method,
				"params": notif.Params,
			})
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification")
				continue
			}

			err = s.events.Broadcast(data)
			if err != nil {
				log.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

func handleWSMessage(session *melody.Session, msg []byte) {
	// ping command for heartbeat operation
	if bytes.Equal(msg, []byte("ping")) {
		err := session.Write([]byte("pong"))
		if err != nil {
			log.Error().Err(err).Msg("sending pong")
		}
		return
	}
	log.Debug().Msg("ignoring unexpected websocket message")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		log.Error().Err(err).Msg("encoding response body")
	}
}

// writeError maps domain errors onto HTTP statuses: transport failures
// to the TV are upstream errors from the bridge's point of view, flow
// violations are conflicts, and everything else is internal.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var transportErr *viera.TransportError
	var wakeErr *wake.AllStrategiesFailedError
	switch {
	case errors.As(err, &transportErr), errors.As(err, &wakeErr):
		status = http.StatusBadGateway
	case errors.Is(err, pairing.ErrNoActiveSession),
		errors.Is(err, wake.ErrNoUsableCredentials):
		status = http.StatusConflict
	case errors.Is(err, pairing.ErrTimeout):
		status = http.StatusGatewayTimeout
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		App:     config.AppName,
		Version: config.AppVersion,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := StatusResponse{Available: s.svc.IsAvailable(ctx)}
	if status.Available {
		// volume and mute reads are best effort once the set is known
		// reachable, a race with the TV going away is not an error
		if volume, err := s.svc.Volume(ctx); err == nil {
			status.Volume = volume
		}
		if muted, err := s.svc.Mute(ctx); err == nil {
			status.Muted = muted
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSendKey(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "key is required"})
		return
	}

	err := s.svc.SendKey(r.Context(), req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetVolume(w http.ResponseWriter, r *http.Request) {
	volume, err := s.svc.Volume(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VolumeResponse{Level: volume})
}

func (s *Server) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.svc.SetVolume(r.Context(), req.Level)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMute(w http.ResponseWriter, r *http.Request) {
	muted, err := s.svc.Mute(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MuteResponse{Muted: muted})
}

func (s *Server) handleSetMute(w http.ResponseWriter, r *http.Request) {
	var req MuteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.svc.SetMute(r.Context(), req.Muted)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	var req ChannelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Number < 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "channel number must not be negative",
		})
		return
	}

	err := s.svc.SendChannelNumber(r.Context(), req.Number)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePowerOn(w http.ResponseWriter, r *http.Request) {
	strategy, err := s.svc.PowerOn(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WakeResponse{Strategy: strategy})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	devices, err := s.svc.Scan(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]DeviceResponse, 0, len(devices))
	for _, device := range devices {
		resp = append(resp, DeviceResponse{
			Name:       device.Name,
			Identifier: device.Identifier,
			Address:    device.Address,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePairStart(w http.ResponseWriter, r *http.Request) {
	var req PairStartRequest
	if !decodeBody(w, r, &req) {
		return
	}

	protocol := companion.Protocol(req.Protocol)
	if !protocol.Valid() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "unknown protocol: " + req.Protocol,
		})
		return
	}

	state, err := s.svc.StartPairing(r.Context(), protocol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PairStateResponse{State: state.String()})
}

func (s *Server) handlePairPin(w http.ResponseWriter, r *http.Request) {
	var req PairPinRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Pin == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "pin is required"})
		return
	}

	err := s.svc.FinishPairing(r.Context(), req.Pin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PairStateResponse{
		State: s.svc.PairingState().String(),
	})
}

func (s *Server) handlePairCancel(w http.ResponseWriter, _ *http.Request) {
	s.svc.CancelPairing()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePairState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PairStateResponse{
		State: s.svc.PairingState().String(),
	})
}

// Router builds the chi router with all routes attached.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{},
	}))

	registry := prometheus.NewRegistry()
	registry.MustRegister(s.svc.Metrics().Collectors()...)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		registry, promhttp.HandlerOpts{},
	))

	r.Get("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		err := s.events.HandleRequest(w, r)
		if err != nil {
			log.Error().Err(err).Msg("handling websocket request")
		}
	})
	s.events.HandleMessage(handleWSMessage)

	r.Get("/api/v1/version", s.handleVersion)
	r.Get("/api/v1/status", s.handleStatus)
	r.Post("/api/v1/keys", s.handleSendKey)
	r.Get("/api/v1/volume", s.handleGetVolume)
	r.Put("/api/v1/volume", s.handleSetVolume)
	r.Get("/api/v1/mute", s.handleGetMute)
	r.Put("/api/v1/mute", s.handleSetMute)
	r.Post("/api/v1/channel", s.handleChannel)
	r.Post("/api/v1/power/on", s.handlePowerOn)
	r.Get("/api/v1/devices", s.handleScan)
	r.Get("/api/v1/pairing", s.handlePairState)
	r.Post("/api/v1/pairing", s.handlePairStart)
	r.Post("/api/v1/pairing/pin", s.handlePairPin)
	r.Delete("/api/v1/pairing", s.handlePairCancel)

	return r
}

// Start serves the API on the configured port, blocking until the
// listener fails or the context is cancelled.
func Start(ctx context.Context, cfg *config.Instance, svc *service.Service) {
	server := NewServer(cfg, svc)
	go server.broadcastNotifications(ctx)

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.APIPort()),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		if err != nil {
			log.Error().Err(err).Msg("shutting down http server")
		}
	}()

	err := httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("error starting http server")
	}
}
