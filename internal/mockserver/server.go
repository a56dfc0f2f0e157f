package mockserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yourusername/tp-endpoint-poc/internal/config"
	"github.com/yourusername/tp-endpoint-poc/internal/endpoint"
	"github.com/yourusername/tp-endpoint-poc/internal/guardrail"
	"github.com/yourusername/tp-endpoint-poc/internal/metrics"
	"github.com/yourusername/tp-endpoint-poc/pkg/ndarray"
)

// Server stands in for the model endpoint. It accepts a
// channels x rows x cols tensor and answers with a batch of one that
// passes the input channels through.
type Server struct {
	path   string
	image  config.ImageConfig
	guard  *guardrail.ShapeGuardrail
	rps    int
	logger zerolog.Logger
}

func New(cfg *config.Config, logger zerolog.Logger) *Server {
	return &Server{
		path:   cfg.Endpoint.Path,
		image:  cfg.Image,
		guard:  guardrail.NewShapeGuardrail(cfg.Guardrail),
		rps:    cfg.Mock.RequestsPerSecond,
		logger: logger,
	}
}

// Handler builds the router. extra handlers are mounted next to the model
// route, e.g. /metrics.
func (s *Server) Handler(extra map[string]http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	if s.rps > 0 {
		r.Use(httprate.Limit(s.rps, time.Second, httprate.WithKeyFuncs(httprate.KeyByIP)))
	}

	r.Put(s.path, s.handlePredict)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	for pattern, h := range extra {
		r.Handle(pattern, h)
	}
	return r
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if limit := s.guard.MaxPayload(ndarray.JSON.MinItemSize); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(limit))
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, http.StatusRequestEntityTooLarge, "%v: body exceeds %d bytes", guardrail.ErrLimitExceeded, tooLarge.Limit)
			return
		}
		s.fail(w, http.StatusBadRequest, "reading body: %v", err)
		return
	}
	if err := s.guard.CheckPayload(len(body), ndarray.JSON.MinItemSize); err != nil {
		s.fail(w, http.StatusRequestEntityTooLarge, "%v", err)
		return
	}

	input, err := ndarray.DecodeJSON(body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := s.guard.Validate(input); err != nil {
		s.fail(w, http.StatusRequestEntityTooLarge, "%v", err)
		return
	}

	want := []int{s.image.Channels, s.image.Rows, s.image.Cols}
	if !ndarray.EqualShape(input.Shape, want) {
		s.fail(w, http.StatusBadRequest, "expected input of shape %v, got %v", want, input.Shape)
		return
	}

	batch, err := ndarray.Stack(input)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "%v", err)
		return
	}
	out, err := ndarray.EncodeJSONCompact(batch)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "%v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

func (s *Server) fail(w http.ResponseWriter, code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.logger.Warn().Int("status", code).Str("reason", msg).Msg("rejecting request")
	http.Error(w, msg, code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.MockRequestsTotal.WithLabelValues(strconv.Itoa(rec.status)).Inc()
		s.logger.Debug().
			Str("request_id", w.Header().Get(endpoint.HeaderRequestID)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

// requestID echoes the caller's request ID, or mints one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(endpoint.HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(endpoint.HeaderRequestID, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
