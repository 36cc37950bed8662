package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tablescrub/internal/clean"
	"tablescrub/internal/export"
	"tablescrub/internal/logging"
	"tablescrub/internal/profile"
	"tablescrub/internal/session"
	"tablescrub/internal/table"
)

// sessionResponse is the JSON representation of a session returned by the
// create, get, clean, and reset endpoints. Preview holds at most the
// configured number of rows; TotalRows is the full count.
type sessionResponse struct {
	ID               string        `json:"id"`
	FileName         string        `json:"file_name"`
	Delimiter        string        `json:"delimiter"`
	Headers          []string      `json:"headers"`
	Preview          [][]string    `json:"preview"`
	PreviewTruncated bool          `json:"preview_truncated"`
	TotalRows        int           `json:"total_rows"`
	Options          clean.Options `json:"options"`
	Stats            clean.Stats   `json:"stats"`
	CreatedAt        time.Time     `json:"created_at"`
}

// toResponse converts a session snapshot into its API representation,
// capping the preview at limit rows.
func toResponse(sess session.Session, limit int) sessionResponse {
	preview := sess.Current
	truncated := false
	if limit > 0 && len(preview) > limit {
		preview = preview[:limit]
		truncated = true
	}

	return sessionResponse{
		ID:               sess.ID,
		FileName:         sess.FileName,
		Delimiter:        sess.Delimiter.String(),
		Headers:          sess.Headers,
		Preview:          preview,
		PreviewTruncated: truncated,
		TotalRows:        len(sess.Current),
		Options:          sess.Options,
		Stats:            sess.Stats,
		CreatedAt:        sess.CreatedAt,
	}
}

// handleHealth reports liveness and the current session count.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.store.Len(),
	})
}

// handleCreateSession accepts a multipart file upload, parses it, and
// opens a new editing session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		respondError(w, r, errFileTooLarge, http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !s.allowedExtension(header.Filename) {
		respondError(w, r, errUnsupportedType, http.StatusBadRequest)
		return
	}

	text, err := table.Decode(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("encoding error: %w", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(text) == "" {
		respondError(w, r, errEmptyFile, http.StatusBadRequest)
		return
	}

	parsed := table.Parse(text)

	sess, err := s.store.Create(header.Filename, parsed)
	if err != nil {
		respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}

	logging.FromContext(r.Context()).Info("session created",
		"session_id", sess.ID,
		"file", sess.FileName,
		"rows", len(sess.Original),
		"delimiter", sess.Delimiter.String(),
	)

	writeJSON(w, r, http.StatusCreated, toResponse(sess, s.cfg.Session.PreviewRows))
}

// handleGetSession returns the current state of a session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, toResponse(sess, s.cfg.Session.PreviewRows))
}

// handleProfile returns per-column statistics for the session's current table.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	columns := profile.Profile(sess.Headers, sess.Current)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"total_rows": len(sess.Current),
		"columns":    columns,
	})
}

// handleClean applies the requested transforms to the session's original
// table and returns the result. Cleaning always starts from the original
// upload, so repeated calls with different options never compound.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var opts clean.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		respondError(w, r, fmt.Errorf("invalid options: %w", err), http.StatusBadRequest)
		return
	}

	sess, err := s.store.Clean(id, opts)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("session cleaned",
		"session_id", sess.ID,
		"duplicates_removed", sess.Stats.DuplicatesRemoved,
		"whitespace_fixed", sess.Stats.WhitespaceFixed,
		"empty_rows_removed", sess.Stats.EmptyRowsRemoved,
	)

	writeJSON(w, r, http.StatusOK, toResponse(sess, s.cfg.Session.PreviewRows))
}

// handleReset restores the session's table to the original upload.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	sess, err := s.store.Reset(id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toResponse(sess, s.cfg.Session.PreviewRows))
}

// handleExport downloads the session's current table. The format query
// parameter selects csv (default) or xlsx.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}

	fileName := export.CleanedFileName(sess.FileName)

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
		fmt.Fprint(w, export.Serialize(sess.Headers, sess.Current, sess.Delimiter))

	case "xlsx":
		fileName = strings.TrimSuffix(fileName, ".csv") + ".xlsx"
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
		if err := export.WriteWorkbook(w, sess.Headers, sess.Current); err != nil {
			logging.FromContext(r.Context()).Error("workbook export failed",
				"session_id", sess.ID,
				"error", err,
			)
		}

	default:
		respondError(w, r, fmt.Errorf("unsupported file type %q", format), http.StatusBadRequest)
	}
}

// handleDeleteSession discards a session.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	if err := s.store.Delete(id); err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// lookupSession fetches the session named in the URL, writing the error
// response itself when the lookup fails.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	id := chi.URLParam(r, "sessionID")

	sess, err := s.store.Get(id)
	if err != nil {
		s.respondStoreError(w, r, err)
		return session.Session{}, false
	}
	return sess, true
}

// respondStoreError maps store errors to HTTP status codes.
func (s *Server) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, r, err, http.StatusNotFound)
	case errors.Is(err, session.ErrStoreFull):
		respondError(w, r, err, http.StatusServiceUnavailable)
	default:
		respondError(w, r, err, http.StatusInternalServerError)
	}
}

// allowedExtension reports whether the file's extension is on the
// configured allow-list. Matching is case-insensitive.
func (s *Server) allowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range s.cfg.Upload.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
