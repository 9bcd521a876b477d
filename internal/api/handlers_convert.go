package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/parser"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// convertResponse is the synchronous conversion payload.
type convertResponse struct {
	*doctree.Result
	Counts map[string]int `json:"counts"`
}

// convertUpload reads and converts the uploaded document. On failure it
// writes the error response and returns nil.
func (s *Server) convertUpload(w http.ResponseWriter, r *http.Request) (*doctree.Result, string) {
	u, ok := s.readUpload(w, r)
	if !ok {
		return nil, ""
	}
	defer r.MultipartForm.RemoveAll()

	res, err := s.deps.Converter.Convert(u.data, u.filename, u.title)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, parser.ErrSourceUnavailable) {
			code = http.StatusUnprocessableEntity
		}
		s.log.Warn("conversion failed", "filename", u.filename, "error", err)
		jsonError(w, err.Error(), code)
		return nil, ""
	}
	return res, u.filename
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	res, _ := s.convertUpload(w, r)
	if res == nil {
		return
	}
	if res.Triples == nil {
		res.Triples = []doctree.Triple{}
	}
	if res.Catalog == nil {
		res.Catalog = []doctree.CatalogEntry{}
	}
	writeJSON(w, http.StatusOK, convertResponse{Result: res, Counts: res.Counts()})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	res, filename := s.convertUpload(w, r)
	if res == nil {
		return
	}

	var buf bytes.Buffer
	rep, err := s.deps.Rebuilder.Write(res, &buf)
	if err != nil {
		s.log.Error("rebuild failed", "filename", filename, "error", err)
		jsonError(w, "rebuild failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	report, _ := json.Marshal(rep)

	name := strings.TrimSuffix(filename, filepath.Ext(filename)) + "_rebuilt.docx"
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("X-Rebuild-Report", string(report))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
