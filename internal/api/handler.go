package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/yaha/internal/output"
)

// Handler serves the files published by output.FileSink.
type Handler struct {
	paths   output.Paths
	started time.Time
}

// NewHandler returns a Handler reading from the output directory in paths.
func NewHandler(paths output.Paths) *Handler {
	return &Handler{paths: paths, started: time.Now()}
}

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status    string `json:"status"`
	Published bool   `json:"published"`
	UptimeSec int64  `json:"uptime_seconds"`
}

// Health reports liveness and whether a compilation has been published yet.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	_, err := os.Stat(filepath.Join(h.paths.Dir, h.paths.GeneralFile))
	RespondWithJSON(w, r, http.StatusOK, healthResponse{
		Status:    "ok",
		Published: err == nil,
		UptimeSec: int64(time.Since(h.started).Seconds()),
	})
}

// Hosts serves the general hosts file.
func (h *Handler) Hosts(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, h.paths.GeneralFile, "text/plain; charset=utf-8")
}

// HostsRestricted serves the restricted hosts file.
func (h *Handler) HostsRestricted(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, h.paths.RestrictedFile, "text/plain; charset=utf-8")
}

// Stats serves stats.json from the last compilation.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, h.paths.StatsFile, "application/json")
}

// serveFile streams one output with conditional and range request support.
// A file that has not been published yet is a 404.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, name, contentType string) {
	if name == "" {
		RespondWithErrorAndLog(w, r, http.StatusNotFound, "output not configured", nil)
		return
	}

	f, err := os.Open(filepath.Join(h.paths.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		RespondWithErrorAndLog(w, r, http.StatusNotFound, "output not published yet", err)
		return
	}
	if err != nil {
		RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "failed to read output", err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "failed to read output", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, name, info.ModTime(), f)
}
