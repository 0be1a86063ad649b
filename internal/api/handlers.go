package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/orchestrator"
	"microstructure-lab/internal/pipeline"
	"microstructure-lab/internal/reporting"
	"microstructure-lab/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	infos, err := s.ticks.ListDatasets(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, newDatasetDTOs(infos, s.cache.countByDataset()))
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	n := s.cache.invalidate(datasetID)
	s.logger.InfoContext(r.Context(), "rolling cache invalidated", "dataset_id", datasetID, "entries", n)
	render.JSON(w, r, map[string]any{"dataset_id": datasetID, "evicted": n})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.aggregator == nil {
		render.Render(w, r, newAPIError(http.StatusNotImplemented, "NO_RUN_STORE", "run persistence is not configured"))
		return
	}
	summaries, err := s.aggregator.SummarizeDataset(r.Context(), chi.URLParam(r, "datasetID"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	out := make([]RunDTO, len(summaries))
	for i, rs := range summaries {
		out[i] = RunDTO{
			RunID:      rs.Run.RunID,
			ParamsHash: rs.Run.ParamsHash,
			Params:     rs.Run.Params,
			CreatedAt:  rs.Run.CreatedAt.UTC(),
			Summary:    newSummaryDTO(rs.Summary),
		}
	}
	render.JSON(w, r, out)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	datasetID := chi.URLParam(r, "datasetID")

	req := &AnalyzeRequest{}
	if r.ContentLength != 0 {
		if err := render.Bind(r, req); err != nil {
			render.Render(w, r, newAPIError(http.StatusBadRequest, "INVALID_JSON", err.Error()))
			return
		}
	}
	if err := s.validate.Struct(req); err != nil {
		render.Render(w, r, validationError(err))
		return
	}
	if req.Persist && s.runs == nil {
		render.Render(w, r, newAPIError(http.StatusBadRequest, "NO_RUN_STORE", "persist requested but run persistence is not configured"))
		return
	}

	params := req.params(s.defaults)
	if err := params.Validate(); err != nil {
		s.renderError(w, r, err)
		return
	}

	res, err := s.analyze(ctx, datasetID, params)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	resp := &AnalyzeResponse{
		DatasetID:     datasetID,
		ParamsHash:    res.ParamsHash,
		Params:        res.Params,
		RollingReused: res.RollingReused,
		Data:          newDataResponse(res.Spacing),
		Summary:       newSummaryDTO(res.Summary),
	}

	if req.Persist {
		resp.RunID = s.newID()
		if err := s.persist(ctx, datasetID, resp.RunID, res); err != nil {
			s.renderError(w, r, err)
			return
		}
	}

	rows, err := reporting.BuildAlertRows(res.Alerts, res.Params.Horizon)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	n := DefaultRecentAlerts
	if req.RecentAlerts != nil {
		n = *req.RecentAlerts
	}
	resp.RecentAlerts = newAlertDTOs(reporting.Tail(rows, n))

	render.Render(w, r, resp)
}

// analyze evaluates params, reusing the cached rolling table for the same
// windows or the cached feature table of the dataset when there is one.
func (s *Server) analyze(ctx context.Context, datasetID string, params domain.Params) (*pipeline.Result, error) {
	if cached, ok := s.cache.get(datasetID, params.Windows()); ok {
		s.metrics.RecordCache(true)
		res, err := s.pipeline.Evaluate(ctx, cached.Rolling, cached.Spacing, params)
		if err != nil {
			return nil, err
		}
		res.Features = cached.Features
		res.RollingReused = true
		return res, nil
	}

	if base, ok := s.cache.anyForDataset(datasetID); ok {
		// Rerun records the cache miss.
		res, err := s.pipeline.Rerun(ctx, base, params)
		if err != nil {
			return nil, err
		}
		s.cache.put(datasetID, res)
		return res, nil
	}

	s.metrics.RecordCache(false)
	ticks, err := s.ticks.GetByDataset(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", datasetID, err)
	}
	if len(ticks) == 0 {
		return nil, fmt.Errorf("dataset %s: %w", datasetID, storage.ErrNotFound)
	}

	res, err := s.pipeline.Run(ctx, domain.NewTickTable(ticks), params)
	if err != nil {
		return nil, err
	}
	s.cache.put(datasetID, res)
	return res, nil
}

func (s *Server) persist(ctx context.Context, datasetID, runID string, res *pipeline.Result) error {
	record := domain.NewRunRecord(runID, datasetID, res.ParamsHash, res.Params, res.Summary, s.clock())
	if err := s.runs.Insert(ctx, record); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if s.alerts == nil {
		return nil
	}
	events, err := orchestrator.AlertEvents(runID, res)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	if err := s.alerts.InsertBulk(ctx, events); err != nil {
		return fmt.Errorf("insert alert events: %w", err)
	}
	return nil
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := errorFor(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	render.Render(w, r, apiErr)
}

func validationError(err error) *APIError {
	e := newAPIError(http.StatusBadRequest, "VALIDATION_FAILED", "request validation failed")
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		e.Message = err.Error()
		return e
	}
	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		msg := fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
		switch fe.Tag() {
		case "gt":
			msg = fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
		case "gte":
			msg = fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
		case "lte":
			msg = fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
		}
		fields[i] = FieldError{Field: fe.Field(), Message: msg}
	}
	e.Details = fields
	return e
}
