package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/model"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	defaultRadiusKM = 25
)

type listTrailsRequest struct {
	BBox   string `json:"bbox" validate:"required"`
	Limit  int    `json:"limit" validate:"gte=1,lte=500"`
	Offset int    `json:"offset" validate:"gte=0"`
}

type nearbyRequest struct {
	Lat      float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng      float64 `json:"lng" validate:"gte=-180,lte=180"`
	RadiusKM float64 `json:"radius_km" validate:"gt=0,lte=500"`
	Limit    int     `json:"limit" validate:"gte=1,lte=500"`
}

type searchRequest struct {
	Query string `json:"q" validate:"required,min=2,max=100"`
	Limit int    `json:"limit" validate:"gte=1,lte=500"`
}

type reviewRequest struct {
	UserID  string `json:"user_id" validate:"required,max=128"`
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type trailList struct {
	Trails []model.Trail `json:"trails"`
	Count  int           `json:"count"`
}

type reviewList struct {
	Reviews []model.Review `json:"reviews"`
	Count   int            `json:"count"`
}

func newTrailList(ts []model.Trail) trailList {
	if ts == nil {
		ts = []model.Trail{}
	}
	return trailList{Trails: ts, Count: len(ts)}
}

func (s *Server) handleListTrails(w http.ResponseWriter, r *http.Request) {
	q := queryParams{r: r}
	req := listTrailsRequest{
		BBox:   r.URL.Query().Get("bbox"),
		Limit:  q.int("limit", defaultPageSize),
		Offset: q.int("offset", 0),
	}
	if q.err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, q.err.Error())
		return
	}
	if msg := validateRequest(&req); msg != "" {
		respondError(w, http.StatusBadRequest, CodeValidation, msg)
		return
	}
	bbox, err := geo.ParseBBox(req.BBox)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	ts, err := s.deps.Trails.ListInBBox(r.Context(), bbox, req.Limit, req.Offset)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newTrailList(ts))
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := queryParams{r: r}
	req := nearbyRequest{
		Lat:      q.float("lat", 0),
		Lng:      q.float("lng", 0),
		RadiusKM: q.float("radius_km", defaultRadiusKM),
		Limit:    q.int("limit", defaultPageSize),
	}
	if q.err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, q.err.Error())
		return
	}
	if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("lng") == "" {
		respondError(w, http.StatusBadRequest, CodeValidation, "lat and lng are required")
		return
	}
	if msg := validateRequest(&req); msg != "" {
		respondError(w, http.StatusBadRequest, CodeValidation, msg)
		return
	}

	ts, err := s.deps.Trails.Nearby(r.Context(), req.Lat, req.Lng, req.RadiusKM, req.Limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newTrailList(ts))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := queryParams{r: r}
	req := searchRequest{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		Limit: q.int("limit", defaultPageSize),
	}
	if q.err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, q.err.Error())
		return
	}
	if msg := validateRequest(&req); msg != "" {
		respondError(w, http.StatusBadRequest, CodeValidation, msg)
		return
	}

	ts, err := s.deps.Trails.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newTrailList(ts))
}

func (s *Server) handleGetTrail(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Trails.GetTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	q := queryParams{r: r}
	limit := q.int("limit", defaultPageSize)
	offset := q.int("offset", 0)
	if q.err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, q.err.Error())
		return
	}
	if limit < 1 || limit > maxPageSize || offset < 0 {
		respondError(w, http.StatusBadRequest, CodeValidation, "limit must be 1..500 and offset >= 0")
		return
	}

	rs, err := s.deps.Trails.ListReviews(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if rs == nil {
		rs = []model.Review{}
	}
	respondJSON(w, http.StatusOK, reviewList{Reviews: rs, Count: len(rs)})
}

func (s *Server) handleAddReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if msg := validateRequest(&req); msg != "" {
		respondError(w, http.StatusBadRequest, CodeValidation, msg)
		return
	}

	rev := &model.Review{
		TrailID: chi.URLParam(r, "id"),
		UserID:  req.UserID,
		Rating:  req.Rating,
		Comment: strings.TrimSpace(req.Comment),
	}
	if err := s.deps.Trails.AddReview(r.Context(), rev); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rev)
}
