package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"salesforecast/pkg/logger"
	"salesforecast/pkg/pipeline"
)

// PredictRequest carries feature rows in the order named by Columns.
type PredictRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// Bind implements render.Binder.
func (p *PredictRequest) Bind(r *http.Request) error {
	if len(p.Columns) == 0 {
		return errors.New("columns is required")
	}
	return nil
}

// PredictResponse holds one forecast per request row.
type PredictResponse struct {
	RunID     string    `json:"run_id"`
	Forecasts []float64 `json:"forecasts"`
}

// ReloadResponse names the run now being served.
type ReloadResponse struct {
	RunID string `json:"run_id"`
}

// ErrResponse is the JSON error body.
type ErrResponse struct {
	HTTPStatusCode int    `json:"-"`
	StatusText     string `json:"status"`
	ErrorText      string `json:"error,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

// Render implements render.Renderer.
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, err error) {
	reqID := middleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			logger.String("request_id", reqID),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	_ = render.Render(w, r, &ErrResponse{
		HTTPStatusCode: status,
		StatusText:     http.StatusText(status),
		ErrorText:      err.Error(),
		RequestID:      reqID,
	})
}

var errNoModel = errors.New("no model loaded")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if cur := s.current.Load(); cur != nil {
		resp["run_id"] = cur.runID
		resp["loaded_at"] = cur.loadedAt.UTC().Format(time.RFC3339)
	} else {
		resp["status"] = "no_model"
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	cur := s.current.Load()
	if cur == nil {
		s.renderError(w, r, http.StatusServiceUnavailable, errNoModel)
		return
	}
	render.JSON(w, r, cur.predictor.Schema())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	cur := s.current.Load()
	if cur == nil || cur.report == nil {
		s.renderError(w, r, http.StatusServiceUnavailable, errNoModel)
		return
	}
	render.JSON(w, r, struct {
		RunID string `json:"run_id"`
		*pipeline.Report
		Top []pipeline.FeatureImportance `json:"top_features"`
	}{cur.runID, cur.report, cur.report.TopFeatures(10)})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	cur := s.current.Load()
	if cur == nil {
		s.renderError(w, r, http.StatusServiceUnavailable, errNoModel)
		return
	}

	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	req := &PredictRequest{}
	if err := render.Bind(r, req); err != nil {
		s.renderError(w, r, http.StatusBadRequest, err)
		return
	}

	forecasts, err := cur.predictor.Predict(req.Columns, req.Rows)
	if err != nil {
		s.renderError(w, r, statusFor(err), err)
		return
	}
	s.metrics.forecasts.Add(float64(len(forecasts)))
	render.JSON(w, r, PredictResponse{RunID: cur.runID, Forecasts: forecasts})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	runID, err := s.Reload(r.Context(), r.URL.Query().Get("run"))
	if err != nil {
		s.renderError(w, r, statusFor(err), err)
		return
	}
	render.JSON(w, r, ReloadResponse{RunID: runID})
}
