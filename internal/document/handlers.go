package document

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

const maxUploadSize = int64(50 << 20) // 50MB

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeServiceError maps a service error to a response
func writeServiceError(w http.ResponseWriter, err error) {
	var scanErr *ScanError
	switch {
	case errors.As(err, &scanErr):
		writeError(w, scanErr.Error(), http.StatusBadGateway)
	case errors.Is(err, ErrNotFound):
		writeError(w, "Document not found", http.StatusNotFound)
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, "File not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidInput):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrConflict):
		writeError(w, "Document already exists", http.StatusConflict)
	default:
		slog.Error("Error handling request", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// contentTypeFor guesses the content type of an upload from its extension
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleScanDocument runs an uploaded image through recognition
func (s *Server) handleScanDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusBadRequest)
			return
		}
		writeError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(header.Filename)
	}

	scan, err := s.service.ScanDocument(r.Context(), header.Filename, data, contentType)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scan)
}

// handleListDocuments returns documents, optionally of one category
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.ListDocuments(r.URL.Query().Get("category"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleCreateDocument saves a document, typically from a reviewed scan
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var doc NewDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := s.service.SaveDocument(&doc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// handleGetDocument returns a single document
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetDocument(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleUpdateDocument applies user edits to a document
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var update DocumentUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := s.service.UpdateDocument(r.PathValue("id"), update)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument deletes a document
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDocument(r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetDocumentImage(w http.ResponseWriter, r *http.Request) {
	s.serveImage(w, r, false)
}

func (s *Server) handleGetDocumentThumbnail(w http.ResponseWriter, r *http.Request) {
	s.serveImage(w, r, true)
}

func (s *Server) serveImage(w http.ResponseWriter, r *http.Request, thumbnail bool) {
	data, contentType, err := s.service.GetDocumentImage(r.PathValue("id"), thumbnail)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleListCategories returns document counts per category
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.CategorySummary()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleListReminderIntervals returns the selectable reminder intervals
func (s *Server) handleListReminderIntervals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ReminderIntervals())
}
