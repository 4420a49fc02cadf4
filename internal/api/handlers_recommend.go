package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/trailscout/internal/model"
	"github.com/sells-group/trailscout/internal/recommend"
	"github.com/sells-group/trailscout/internal/scorer"
)

type profileInfo struct {
	Name    string         `json:"name"`
	Weights scorer.Weights `json:"weights"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var p model.Preferences
	if err := decodeJSON(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}

	resp, err := s.deps.Recommender.Recommend(r.Context(), &p)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUserRecommend(w http.ResponseWriter, r *http.Request) {
	q := queryParams{r: r}
	lat := q.float("lat", 0)
	lng := q.float("lng", 0)
	if q.err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, q.err.Error())
		return
	}
	if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("lng") == "" {
		respondError(w, http.StatusBadRequest, CodeValidation, "lat and lng are required")
		return
	}

	resp, err := s.deps.Recommender.ForUser(r.Context(), chi.URLParam(r, "userID"), lat, lng)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var p model.Preferences
	if err := decodeJSON(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	p.UserID = strings.TrimSpace(chi.URLParam(r, "userID"))
	if err := recommend.ValidatePreferences(&p); err != nil {
		respondErr(w, r, err)
		return
	}
	if p.Profile != "" {
		if _, err := s.deps.Profiles.Resolve(p.Profile); err != nil {
			respondError(w, http.StatusBadRequest, CodeValidation, err.Error())
			return
		}
	}

	if err := s.deps.Trails.UpsertPreferences(r.Context(), &p); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleProfiles(w http.ResponseWriter, _ *http.Request) {
	names := s.deps.Profiles.Names()
	out := make([]profileInfo, 0, len(names))
	for _, name := range names {
		cfg, err := s.deps.Profiles.Resolve(name)
		if err != nil {
			continue
		}
		out = append(out, profileInfo{Name: name, Weights: scorer.WeightsOf(cfg)})
	}
	respondJSON(w, http.StatusOK, map[string]any{"profiles": out})
}
