package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fiscaletl/internal/ingest"
	"fiscaletl/internal/nlsql"
	"fiscaletl/internal/storage"
)

// multipartMemory is the part of a form kept in memory; the rest spills to
// temporary files.
const multipartMemory = 32 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload ingests every file of a multipart form. Files are read from
// the "files" field (repeatable) and the single "file" field. Form values:
// mode=replace|append, dry_run=true.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.opt.MaxUploadBytes > 0 {
		if r.ContentLength > s.opt.MaxUploadBytes {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", s.opt.MaxUploadBytes))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.opt.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", tooBig.Limit))
			return
		}
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	mode := s.opt.DefaultMode
	if v := r.FormValue("mode"); v != "" {
		m, err := storage.ParseMode(v)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		mode = m
	}
	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))

	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File["files"]...)
	headers = append(headers, r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		s.writeError(w, r, http.StatusBadRequest, errors.New("no files provided"))
		return
	}

	uploads := make([]ingest.Upload, 0, len(headers))
	for _, h := range headers {
		data, err := readPart(h)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("read %s: %w", h.Filename, err))
			return
		}
		uploads = append(uploads, ingest.Upload{Name: h.Filename, Data: data})
	}

	var sink ingest.Writer
	if !dryRun {
		sink = s.sink
	}
	s.writeMu.Lock()
	rep := s.engine.Batch(r.Context(), uploads, sink, mode)
	s.writeMu.Unlock()

	writeJSON(w, http.StatusOK, rep)
}

func readPart(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.sink.Tables(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cols, err := s.sink.Columns(r.Context(), name)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if len(cols) == 0 {
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("table %q not found", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": name, "columns": cols})
}

type queryRequest struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit"`
}

func (s *Server) limit(requested int) int {
	if requested <= 0 || requested > s.opt.QueryLimit {
		return s.opt.QueryLimit
	}
	return requested
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	res, err := s.sink.Query(r.Context(), req.SQL, s.limit(req.Limit))
	if err != nil {
		s.writeError(w, r, queryStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type askRequest struct {
	Question string `json:"question"`
	Limit    int    `json:"limit"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.gen == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("natural-language queries are not configured"))
		return
	}
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	ans, err := nlsql.Ask(r.Context(), s.gen, s.sink, req.Question, s.limit(req.Limit))
	if err != nil {
		status := queryStatus(err)
		switch {
		case errors.Is(err, nlsql.ErrEmptyQuestion):
			status = http.StatusBadRequest
		case errors.Is(err, nlsql.ErrNoTables):
			status = http.StatusConflict
		case errors.Is(err, nlsql.ErrNoSelect):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, nlsql.ErrGenerate):
			status = http.StatusBadGateway
		}
		var sql string
		if ans != nil {
			sql = ans.SQL
		}
		s.writeErrorSQL(w, r, status, err, sql)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// queryStatus maps query errors: rejected statements are the caller's fault.
func queryStatus(err error) int {
	if errors.Is(err, storage.ErrNotReadOnly) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
