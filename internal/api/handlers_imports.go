package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/importer"
	"github.com/sells-group/trailscout/internal/model"
)

type importRequest struct {
	BBox   string `json:"bbox" validate:"required_without=Region,excluded_with=Region"`
	Region string `json:"region" validate:"required_without=BBox"`
}

type runList struct {
	Runs  []model.ImportRun `json:"runs"`
	Count int               `json:"count"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := queryParams{r: r}
	f := model.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
		Source: r.URL.Query().Get("source"),
		Limit:  q.int("limit", defaultPageSize),
		Offset: q.int("offset", 0),
	}
	if q.err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, q.err.Error())
		return
	}
	if f.Limit < 1 || f.Limit > maxPageSize || f.Offset < 0 {
		respondError(w, http.StatusBadRequest, CodeValidation, "limit must be 1..500 and offset >= 0")
		return
	}

	runs, err := s.deps.Runs.ListRuns(r.Context(), f)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.ImportRun{}
	}
	respondJSON(w, http.StatusOK, runList{Runs: runs, Count: len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// handleStartImport queues an OSM import and runs it in the background. The
// response carries the queued run; clients poll GET /imports/{id}. The import
// runs under the server's base context, not the request's.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if msg := validateRequest(&req); msg != "" {
		respondError(w, http.StatusBadRequest, CodeValidation, msg)
		return
	}
	bbox, err := importer.ResolveBBox(req.BBox, req.Region, s.deps.Regions)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	run, err := s.deps.Importer.StartOSM(r.Context(), bbox)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	queued := *run

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.deps.Importer.RunOSM(s.base, run, bbox); err != nil {
			zap.L().Error("api: background import failed",
				zap.String("run_id", run.ID),
				zap.Error(err),
			)
		}
	}()

	respondJSON(w, http.StatusAccepted, queued)
}
