package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/pipeline"
)

const uploadMessage = "File uploaded and indexed successfully."

type uploadResponse struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	Chunks     int    `json:"chunks"`
	Message    string `json:"message"`
}

type searchRequest struct {
	Query      string `json:"query"`
	Provider   string `json:"provider"`
	TopK       int    `json:"top_k"`
	DocumentID string `json:"document_id"`
}

type deleteResponse struct {
	DocumentID string `json:"document_id"`
	Deleted    int    `json:"deleted"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUploadBytes {
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	req := pipeline.IngestRequest{
		Data:       data,
		DocumentID: r.FormValue("document_id"),
		SourceName: header.Filename,
	}
	if hint := r.FormValue("file_type"); hint != "" {
		req.FileType = core.ParseFileType(hint)
	}

	res, err := s.svc.Ingest(r.Context(), req)
	if err != nil {
		s.logger.Error("upload failed", "file", header.Filename, "err", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		DocumentID: res.Document.ID,
		FileName:   header.Filename,
		Chunks:     res.ChunkCount,
		Message:    uploadMessage,
	})
}

// handleSearch streams the answer as chunked text/plain, flushing after
// every fragment. A client disconnect cancels the request context, which
// stops generation.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearch(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	seq, err := s.svc.Query(r.Context(), core.Query{
		Text:       req.Query,
		Provider:   req.Provider,
		TopK:       req.TopK,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		s.logger.Error("search failed", "query", req.Query, "err", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	for fragment, err := range seq {
		if err != nil {
			// headers are gone; report in-band like the pipeline does
			fragment = "\n[Error: " + err.Error() + "]"
		}
		if _, werr := io.WriteString(w, fragment); werr != nil {
			s.logger.Debug("client went away", "err", werr)
			return
		}
		if ferr := rc.Flush(); ferr != nil {
			s.logger.Debug("flush failed", "err", ferr)
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, err := s.svc.DeleteDocument(r.Context(), id)
	if err != nil {
		s.logger.Error("delete failed", "document_id", id, "err", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{DocumentID: id, Deleted: n})
}

func parseSearch(r *http.Request) (searchRequest, error) {
	var req searchRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errors.New("invalid json")
		}
		return req, nil
	}

	q := r.URL.Query()
	req.Query = q.Get("query")
	req.Provider = q.Get("provider")
	req.DocumentID = q.Get("document_id")
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, fmt.Errorf("invalid top_k %q", v)
		}
		req.TopK = n
	}
	return req, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnsupportedProvider),
		errors.Is(err, core.ErrEmptyQuery),
		errors.Is(err, core.ErrInvalidTopK),
		errors.Is(err, core.ErrExtractionFailure):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
