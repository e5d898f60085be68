package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"reelsmith/internal/api"
	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/storage"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, withRequestContext(authMiddleware(token, h)))
	}

	handle("GET /api/status", s.handleStatus)

	handle("GET /api/campaigns", s.handleListCampaigns)
	handle("POST /api/campaigns", s.handleCreateCampaign)
	handle("GET /api/campaigns/{id}", s.handleGetCampaign)
	handle("PATCH /api/campaigns/{id}", s.handleUpdateCampaign)
	handle("DELETE /api/campaigns/{id}", s.handleDeleteCampaign)
	handle("POST /api/campaigns/{id}/execute", s.handleExecuteCampaign)
	handle("POST /api/campaigns/{id}/duplicate", s.handleDuplicateCampaign)
	handle("GET /api/campaigns/{id}/subtitles", s.handleSubtitles)

	handle("GET /api/personas", s.handleListPersonas)
	handle("POST /api/personas", s.handleCreatePersona)
	handle("DELETE /api/personas/{id}", s.handleDeletePersona)
	handle("GET /api/templates", s.handleListTemplates)
	handle("GET /api/templates/{id}", s.handleGetTemplate)
	handle("GET /api/captions/presets", s.handleCaptionPresets)

	handle("GET /api/keys", s.handleKeyStatuses)
	handle("PUT /api/keys/{provider}", s.handleSetKey)
	handle("DELETE /api/keys/{provider}", s.handleDeleteKey)

	handle("POST /api/refine-prompt", s.handleRefine)

	handle("GET /api/batches", s.handleListBatches)
	handle("POST /api/batches", s.handleCreateBatch)
	handle("GET /api/batches/{id}", s.handleGetBatch)
	handle("POST /api/batches/{id}/execute", s.handleExecuteBatch)
	handle("POST /api/batches/{id}/cancel", s.handleCancelBatch)

	handle("POST /api/notifications/test", s.handleTestNotification)

	mux.Handle("GET "+storage.URLPrefix, http.StripPrefix(storage.URLPrefix, assetHandler(s.daemon.assets.Root())))
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context(), userID(r)))
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrExternalTool, "notifications", "test", message, err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "message": message})
}

// decodeBody reads a JSON request body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeBody(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return services.Wrap(services.ErrValidation, "", "", "request body is required", nil)
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.Wrap(services.ErrValidation, "", "", "request body too large", nil)
		}
		return services.Wrap(services.ErrValidation, "", "", "invalid JSON body: "+err.Error(), nil)
	}
	return nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError maps err to its HTTP status. Server-side failures are logged
// with the request context.
func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	details := services.Details(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "api_error",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	message := details.Message
	if message == "" {
		message = http.StatusText(status)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: details.Kind})
}
