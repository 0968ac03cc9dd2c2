package server

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"timelapse/internal/artifacts"
	"timelapse/internal/frames"
	"timelapse/internal/history"
	"timelapse/internal/logging"
	"timelapse/internal/render"
)

const defaultHistoryLimit = 50

// FrameEntry is one frame in the /api/frames listing. Index is the position
// accepted by POST /api/render.
type FrameEntry struct {
	Index int       `json:"index"`
	Name  string    `json:"name"`
	Time  time.Time `json:"time"`
}

// FramesResponse lists the frame store.
type FramesResponse struct {
	Count  int          `json:"count"`
	Frames []FrameEntry `json:"frames"`
}

// VideosResponse lists published videos.
type VideosResponse struct {
	Videos []artifacts.Video `json:"videos"`
}

// HistoryResponse lists recent render runs.
type HistoryResponse struct {
	Runs []history.Run `json:"runs"`
}

// RenderRequest selects frames [Start, End] of the frame listing.
type RenderRequest struct {
	Start *int `json:"start"`
	End   *int `json:"end"`
}

// RenderAccepted acknowledges a queued range render.
type RenderAccepted struct {
	Status    string `json:"status"`
	Label     string `json:"label"`
	Frames    int    `json:"frames"`
	Video     string `json:"video"`
	Thumbnail string `json:"thumbnail"`
}

type indexPage struct {
	Videos       []artifacts.Video
	FrameCount   int
	LastIndex    int
	RangeEnabled bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	videos, err := s.catalog.List(r.Context())
	if err != nil {
		s.log(r).Warn("index listing failed", logging.Error(err))
		http.Error(w, "video directory unavailable", http.StatusInternalServerError)
		return
	}
	page := indexPage{Videos: videos, RangeEnabled: s.renderer != nil}
	if list, err := s.frames.List(); err == nil {
		page.FrameCount = len(list)
		page.LastIndex = max(len(list)-1, 0)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		s.log(r).Error("render index template", logging.Error(err))
	}
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, err := s.catalog.VideoPath(name)
	if err != nil {
		s.writeNotFound(w, "No timelapse video found")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	s.serveFile(w, r, path, "No timelapse video found")
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	path, err := s.catalog.ThumbnailPath(r.PathValue("name"))
	if err != nil {
		s.writeNotFound(w, "No thumbnail found")
		return
	}
	s.serveFile(w, r, path, "No thumbnail found")
}

// serveFile opens the resolved path once so a file deleted after resolution
// yields 404 instead of a partial response.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path, missing string) {
	f, err := os.Open(path)
	if err != nil {
		w.Header().Del("Content-Disposition")
		s.writeNotFound(w, missing)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		w.Header().Del("Content-Disposition")
		s.writeNotFound(w, missing)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if videos == nil {
		videos = []artifacts.Video{}
	}
	s.writeJSON(w, http.StatusOK, VideosResponse{Videos: videos})
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	list, err := s.frames.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	date := r.URL.Query().Get("date")
	resp := FramesResponse{Count: len(list), Frames: make([]FrameEntry, 0, len(list))}
	for i, f := range list {
		if date != "" {
			if d, _ := frames.DateOf(f.Name); d != date {
				continue
			}
		}
		resp.Frames = append(resp.Frames, FrameEntry{Index: i, Name: f.Name, Time: f.Time})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusOK, HistoryResponse{Runs: []history.Run{}})
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	runs, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{Runs: runs})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if s.renderer == nil {
		s.writeError(w, http.StatusServiceUnavailable, "range rendering is disabled")
		return
	}
	if !s.limiter.allow(clientIP(r)) {
		w.Header().Set("Retry-After", "60")
		s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req RenderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Start == nil || req.End == nil {
		s.writeError(w, http.StatusBadRequest, "start and end are required")
		return
	}
	start, end := *req.Start, *req.End

	list, err := s.frames.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := render.ValidateRange(start, end, len(list)); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The render works from this snapshot, so the accepted label always names
	// the frames that get encoded.
	selected := slices.Clone(list[start : end+1])
	label := render.RangeLabel(selected[0], selected[len(selected)-1])

	s.renders.Add(1)
	go func() {
		defer s.renders.Done()
		if _, err := s.renderer.RenderFrames(s.baseCtx, selected); err != nil && errors.Is(err, render.ErrFilesystem) {
			logging.WarnWithContext(s.logger, "range frames changed before render", "range_frames_missing",
				logging.String("label", label),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "frames were consumed by a daily render; resubmit"),
			)
		}
	}()

	s.writeJSON(w, http.StatusAccepted, RenderAccepted{
		Status:    "accepted",
		Label:     label,
		Frames:    end - start + 1,
		Video:     label + artifacts.VideoExt,
		Thumbnail: label + artifacts.ThumbnailExt,
	})
}

func (s *Server) writeNotFound(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) log(r *http.Request) *slog.Logger {
	return s.logger.With(logging.String("path", r.URL.Path))
}

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))
