package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dispatch-console/internal/dashboard"
	"github.com/sells-group/dispatch-console/internal/loader"
	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/selection"
	"github.com/sells-group/dispatch-console/internal/store"
	"github.com/sells-group/dispatch-console/internal/ward"
)

var (
	errBadQuery = eris.New("api: malformed query parameter")
	errNoBounds = eris.New("api: viewport bounds are unknown")
)

var emptyCollection = []byte(`{"type":"FeatureCollection","features":[]}`)

type point struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

func (p point) latLng() model.LatLng {
	return model.LatLng{Lat: *p.Lat, Lng: *p.Lng}
}

type bounds struct {
	South float64 `json:"south" validate:"gte=-90,lte=90"`
	West  float64 `json:"west" validate:"gte=-180,lte=180"`
	North float64 `json:"north" validate:"gte=-90,lte=90,gtefield=South"`
	East  float64 `json:"east" validate:"gte=-180,lte=180"`
}

type viewportRequest struct {
	Center point   `json:"center"`
	Zoom   int     `json:"zoom" validate:"gte=0,lte=22"`
	Bounds *bounds `json:"bounds,omitempty"`
}

type pointerRequest struct {
	Phase string `json:"phase" validate:"required,oneof=down move up"`
	point
}

type messageRequest struct {
	Message string `json:"message" validate:"max=1600"`
}

type journalQuery struct {
	Action string `validate:"omitempty,oneof=assign unassign alert"`
	TeamID string `validate:"omitempty,max=128"`
	Limit  int    `validate:"gte=0,lte=1000"`
	Since  time.Time
}

type clickResponse struct {
	Issued bool `json:"issued"`
	dashboard.View
}

type areaResponse struct {
	Area *selection.Area `json:"area,omitempty"`
	dashboard.View
}

type sendResponse struct {
	Result map[string]any `json:"result,omitempty"`
	dashboard.View
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.View())
}

// handleBoundaries returns the ward GeoJSON. With a viewport-dependent source
// the layer is reloaded first, from the query (zoom, south, west, north,
// east) or else from the last reported viewport.
func (s *Server) handleBoundaries(w http.ResponseWriter, r *http.Request) {
	if s.loader != nil && s.loader.Dynamic() {
		vp, err := s.boundaryViewport(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		b, err := s.loader.Boundaries(r.Context(), vp)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.dash.SetBoundaries(b.Polygons, b.Raw)
	}

	raw := s.dash.Boundaries()
	if len(raw) == 0 {
		raw = emptyCollection
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) boundaryViewport(r *http.Request) (loader.Viewport, error) {
	q := r.URL.Query()
	if q.Get("south") == "" {
		vp := s.dash.Viewport()
		if vp.Bounds == nil {
			return loader.Viewport{}, errNoBounds
		}
		return loader.Viewport{Zoom: vp.Zoom, Bounds: *vp.Bounds}, nil
	}

	var (
		b   bounds
		err error
	)
	for name, dst := range map[string]*float64{"south": &b.South, "west": &b.West, "north": &b.North, "east": &b.East} {
		if *dst, err = strconv.ParseFloat(q.Get(name), 64); err != nil {
			return loader.Viewport{}, eris.Wrapf(errBadQuery, "%s", name)
		}
	}
	zoom := s.dash.Viewport().Zoom
	if z := q.Get("zoom"); z != "" {
		if zoom, err = strconv.Atoi(z); err != nil {
			return loader.Viewport{}, eris.Wrap(errBadQuery, "zoom")
		}
	}
	if err := s.validate.Struct(b); err != nil {
		return loader.Viewport{}, err
	}
	return loader.Viewport{Zoom: zoom, Bounds: ward.Bounds(b)}, nil
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	var f dashboard.Filters
	if err := s.decode(r, &f); err != nil {
		writeError(w, r, err)
		return
	}
	s.dash.SetFilters(f)
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var b *ward.Bounds
	if req.Bounds != nil {
		wb := ward.Bounds(*req.Bounds)
		b = &wb
	}
	if err := s.dash.SetViewport(req.Center.latLng(), req.Zoom, b); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res := s.loader.Load(r.Context())
	s.dash.Apply(res.Bundle, res.Errors, res.LoadedAt)
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req point
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	issued, err := s.dash.Click(r.Context(), req.latLng())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clickResponse{Issued: issued, View: s.dash.View()})
}

func (s *Server) handleEscape(w http.ResponseWriter, _ *http.Request) {
	s.dash.Escape()
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleDrawToggle(w http.ResponseWriter, r *http.Request) {
	if _, err := s.dash.ToggleDraw(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleDrawPointer(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	at := req.latLng()

	var (
		area *selection.Area
		err  error
	)
	switch req.Phase {
	case "down":
		err = s.dash.PointerDown(at)
	case "move":
		err = s.dash.PointerMove(at)
	case "up":
		var a selection.Area
		if a, err = s.dash.PointerUp(at); err == nil {
			area = &a
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, areaResponse{Area: area, View: s.dash.View()})
}

func (s *Server) handleStartAssigning(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.StartAssigning(chi.URLParam(r, "teamID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleCancelAssigning(w http.ResponseWriter, _ *http.Request) {
	s.dash.CancelAssigning()
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleAssignLeader(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.AssignToLeader(r.Context(), chi.URLParam(r, "teamID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.Unassign(r.Context(), chi.URLParam(r, "teamID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.Preview(chi.URLParam(r, "teamID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleClosePreview(w http.ResponseWriter, _ *http.Request) {
	s.dash.ClosePreview()
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleWardAlert(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, r, eris.Wrap(errBadQuery, "index"))
		return
	}
	area, err := s.dash.WardAlert(index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, areaResponse{Area: &area, View: s.dash.View()})
}

func (s *Server) handleAlertMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.dash.SetAlertMessage(req.Message); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleAlertSend(w http.ResponseWriter, r *http.Request) {
	res, err := s.dash.SendAlert(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{Result: res, View: s.dash.View()})
}

func (s *Server) handleAlertDiscard(w http.ResponseWriter, _ *http.Request) {
	s.dash.DiscardAlert()
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleNotices(w http.ResponseWriter, _ *http.Request) {
	notices := s.dash.Notices()
	if notices == nil {
		notices = []dashboard.Notice{}
	}
	writeJSON(w, http.StatusOK, notices)
}

func (s *Server) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "noticeID"))
	if err != nil {
		writeError(w, r, eris.Wrap(errBadQuery, "notice id"))
		return
	}
	if !s.dash.DismissNotice(id) {
		writeError(w, r, errNoticeNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, r, errJournalDisabled)
		return
	}
	q := r.URL.Query()
	jq := journalQuery{Action: q.Get("action"), TeamID: q.Get("team")}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			writeError(w, r, eris.Wrap(errBadQuery, "limit"))
			return
		}
		jq.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, eris.Wrap(errBadQuery, "since"))
			return
		}
		jq.Since = t
	}
	if err := s.validate.Struct(jq); err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := s.journal.List(r.Context(), store.JournalFilter{
		Action: model.JournalAction(jq.Action),
		TeamID: jq.TeamID,
		Since:  jq.Since,
		Limit:  jq.Limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
