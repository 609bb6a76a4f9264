package control

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/serieli/internal/audio"
	"github.com/RenatoCabral2022/serieli/internal/config"
	"github.com/RenatoCabral2022/serieli/internal/engine"
	"github.com/RenatoCabral2022/serieli/internal/middleware"
	"github.com/RenatoCabral2022/serieli/internal/sink"
)

// StatusReporter is the view of the engine the API needs.
type StatusReporter interface {
	Status() engine.Status
}

// Handlers serves the control API. Parameter changes never touch the
// oscillator directly: they are queued on the manual source and picked up by
// the run loop before its next frame.
type Handlers struct {
	engine  StatusReporter
	manual  *engine.Manual // nil in sweep mode
	capture *sink.Memory   // nil when capture is disabled
	mode    string
	logger  *zap.Logger
}

// NewHandlers creates the API handlers. manual and capture may be nil.
func NewHandlers(eng StatusReporter, manual *engine.Manual, capture *sink.Memory, logger *zap.Logger) *Handlers {
	mode := config.ModeSweep
	if manual != nil {
		mode = config.ModeManual
	}
	return &Handlers{
		engine:  eng,
		manual:  manual,
		capture: capture,
		mode:    mode,
		logger:  logger,
	}
}

// Router returns the full control API with its middleware stack.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Put("/params", h.PutParams)
		r.Get("/capture", h.GetCapture)
	})
	return r
}

// Health handles GET /healthz. A halted engine is reported as unavailable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Status()
	if st.State == engine.StateHalted {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "halted",
			"error":  st.LastError,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStatus handles GET /v1/status.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status: h.engine.Status(),
		Mode:   h.mode,
	}
	if h.capture != nil {
		resp.CaptureSeconds = h.capture.Available()
		resp.CapturedBytes = h.capture.Written()
	}
	writeJSON(w, http.StatusOK, resp)
}

// PutParams handles PUT /v1/params.
func (h *Handlers) PutParams(w http.ResponseWriter, r *http.Request) {
	if h.manual == nil {
		writeError(w, http.StatusConflict, "parameters are driven by the sweep")
		return
	}

	var req ParamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Frequency == nil && req.Amplitude == nil {
		writeError(w, http.StatusBadRequest, "frequency or amplitude required")
		return
	}

	p := h.manual.Current()
	if req.Frequency != nil {
		if !finite(*req.Frequency) {
			writeError(w, http.StatusBadRequest, "frequency must be finite")
			return
		}
		p.Frequency = *req.Frequency
	}
	if req.Amplitude != nil {
		if !finite(*req.Amplitude) {
			writeError(w, http.StatusBadRequest, "amplitude must be finite")
			return
		}
		p.Amplitude = *req.Amplitude
	}

	h.manual.Set(p)
	h.logger.Info("parameters queued",
		zap.Float64("frequency", p.Frequency),
		zap.Float64("amplitude", p.Amplitude),
		zap.String("requestId", middleware.GetRequestID(r.Context())),
	)
	writeJSON(w, http.StatusAccepted, ParamsResponse(p))
}

// GetCapture handles GET /v1/capture?seconds=N (or ?frames=N) and returns the
// most recent emitted audio as raw little-endian unsigned 16-bit stereo PCM.
func (h *Handlers) GetCapture(w http.ResponseWriter, r *http.Request) {
	if h.capture == nil {
		writeError(w, http.StatusNotFound, "capture disabled")
		return
	}

	var pcm []byte
	q := r.URL.Query()
	if v := q.Get("frames"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "frames must be a positive integer")
			return
		}
		pcm = h.capture.Snapshot(n * audio.FrameBytes)
	} else {
		seconds := 1
		if v := q.Get("seconds"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "seconds must be a positive integer")
				return
			}
			seconds = n
		}
		pcm = h.capture.SnapshotSeconds(seconds)
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Sample-Rate", strconv.Itoa(audio.SampleRate))
	w.Header().Set("X-Channels", strconv.Itoa(audio.Channels))
	w.Header().Set("X-Sample-Format", "u16le")
	w.Header().Set("Content-Length", strconv.Itoa(len(pcm)))
	w.WriteHeader(http.StatusOK)
	w.Write(pcm)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
