package api

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"

	"github.com/soochol/datafiles/internal/codec"
	"github.com/soochol/datafiles/internal/datafile"
)

const (
	csvContentType    = "text/csv; charset=utf-8"
	binaryContentType = "application/octet-stream"
)

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(s.dataFiles.Ping()))
}

func (s *Server) listDataFiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.dataFiles.List(r.Context())
	if err != nil {
		writeError(w, r, "list", err)
		return
	}
	writeDocument(w, r, http.StatusOK, datafile.NewDescriptorList(list))
}

func (s *Server) getDataFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "get", err)
		return
	}
	d, err := s.dataFiles.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, "get", err)
		return
	}
	if d == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeDocument(w, r, http.StatusOK, d)
}

// saveDataFile serves both POST / and PUT /{id}. The descriptor inside the
// upload decides between create and update; the path id of PUT is ignored.
func (s *Server) saveDataFile(w http.ResponseWriter, r *http.Request) {
	parts, sp, err := readParts(w, r, s.maxUploadBytes)
	if err != nil {
		writeError(w, r, "save", err)
		return
	}
	defer sp.Close()

	d, err := s.dataFiles.Save(r.Context(), parts)
	if err != nil {
		writeError(w, r, "save", err)
		return
	}
	if raw := chi.URLParam(r, "id"); raw != "" && raw != strconv.FormatInt(d.ID, 10) {
		slog.Info("path id differs from descriptor id, path id ignored", "path_id", raw, "id", d.ID)
	}
	writeDocument(w, r, http.StatusOK, d)
}

func (s *Server) deleteDataFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "delete", err)
		return
	}
	if err := s.dataFiles.Delete(r.Context(), id); err != nil {
		writeError(w, r, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamContent serves a window of a data file. The window comes from the
// path (/content/{offset}/{lines}) or the query (?offset=&lines=); a missing
// offset is 0 and missing lines means all lines.
func (s *Server) streamContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "content", err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, r, "content", err)
		return
	}
	lines, err := intParam(r, "lines", -1)
	if err != nil {
		writeError(w, r, "content", err)
		return
	}
	s.stream(w, r, id, offset, lines, false)
}

// downloadContent serves the whole data file as an attachment.
func (s *Server) downloadContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, "download", err)
		return
	}
	s.stream(w, r, id, 0, -1, true)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, id int64, offset, lines int, attach bool) {
	c, err := s.dataFiles.Open(r.Context(), id)
	if err != nil {
		writeError(w, r, "content", err)
		return
	}
	defer c.Close()

	if c.Delimited {
		w.Header().Set("Content-Type", csvContentType)
	} else {
		w.Header().Set("Content-Type", binaryContentType)
	}
	if attach {
		w.Header().Set("Content-Disposition", contentDisposition(c.Name))
	}
	w.WriteHeader(http.StatusOK)

	// The status is already sent; a failure here can only truncate the body.
	if _, err := c.Stream(w, offset, lines); err != nil {
		slog.Warn("content stream interrupted", "id", id, "err", err)
	}
}

// contentDisposition builds an attachment header from a stored name. Path
// components and control characters are dropped before quoting.
func contentDisposition(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "download"
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func writeDocument(w http.ResponseWriter, r *http.Request, status int, v any) {
	f := codec.Negotiate(r.Header.Get("Accept"))
	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(status)
	if err := codec.Encode(w, f, v); err != nil {
		slog.Warn("encode response failed", "err", err)
	}
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid data file id %q", errBadRequest, raw)
	}
	return id, nil
}

// intParam reads name from the route, then the query, falling back to def.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		raw = r.URL.Query().Get(name)
	}
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return n, nil
}
