package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/h4xlabs/h4x-edit/internal/dataurl"
	"github.com/h4xlabs/h4x-edit/internal/edit"
	"github.com/h4xlabs/h4x-edit/internal/filehandler"
)

// maxSourceBody bounds the source upload request body. Base64 inflates the
// image by ~4/3, so this admits sources of roughly 30 MB.
const maxSourceBody = 40 << 20

// POST /api/session
func handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s := sessions.Create()
	respondJSON(w, http.StatusCreated, map[string]string{
		"sessionId": s.ID(),
	})
}

// Routes under /api/session/{id}[/{action}]
func handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/session/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		httpError(w, http.StatusNotFound, "not found")
		return
	}

	s := sessions.Get(parts[0])
	if s == nil {
		httpError(w, http.StatusNotFound, "session not found")
		return
	}

	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch action {
	case "":
		handleSessionState(w, r, s)
	case "source":
		handleSessionSource(w, r, s)
	case "generate":
		handleSessionGenerate(w, r, s)
	case "download":
		handleSessionDownload(w, r, s)
	default:
		httpError(w, http.StatusNotFound, "not found")
	}
}

// GET /api/session/{id}
func handleSessionState(w http.ResponseWriter, r *http.Request, s *edit.Session) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := s.Snapshot()
	resp := map[string]interface{}{
		"state":     snap.State,
		"hasSource": snap.HasSource,
	}
	if snap.ResultURL != "" {
		resp["image"] = snap.ResultURL
	}
	if snap.ErrMessage != "" {
		resp["error"] = snap.ErrMessage
	}

	respondJSON(w, http.StatusOK, resp)
}

// POST /api/session/{id}/source
// Body: {"dataUrl": "data:image/png;base64,..."}
//
// The frontend reads the picked file with FileReader and ships the resulting
// data URL; the server parses it, validates the type, and stores it as the
// session's source image.
func handleSessionSource(w http.ResponseWriter, r *http.Request, s *edit.Session) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSourceBody)

	var req struct {
		DataURL string `json:"dataUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload, err := dataurl.Parse(req.DataURL)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !filehandler.IsSupportedMIME(payload.MIMEType) {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("unsupported image type: %s", payload.MIMEType))
		return
	}

	raw, err := payload.Decode()
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid base64 payload")
		return
	}

	s.SetSource(payload)

	info := filehandler.Probe(raw, payload.MIMEType)
	resp := map[string]interface{}{
		"mimeType": info.MIMEType,
		"bytes":    info.Bytes,
	}
	if info.Width > 0 {
		resp["width"] = info.Width
		resp["height"] = info.Height
	}
	if info.CameraMake != "" || info.CameraModel != "" {
		resp["camera"] = strings.TrimSpace(info.CameraMake + " " + info.CameraModel)
	}
	if info.HasTakenAt {
		resp["takenAt"] = info.TakenAt.Format(time.RFC3339)
	}

	if thumb, thumbMIME, err := filehandler.Thumbnail(raw, filehandler.DefaultPreviewMaxDimension); err != nil {
		log.Warn().Err(err).Str("session", s.ID()).Msg("Preview generation failed")
	} else {
		resp["thumbnail"] = dataurl.Encode(thumbMIME, base64.StdEncoding.EncodeToString(thumb))
	}

	respondJSON(w, http.StatusOK, resp)
}

// POST /api/session/{id}/generate
// Body: {"instruction": "..."}
func handleSessionGenerate(w http.ResponseWriter, r *http.Request, s *edit.Session) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Instruction string `json:"instruction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The call outlives this request; do not hang it off the request context.
	requestID, err := sessions.Generate(context.Background(), s, req.Instruction)
	switch {
	case errors.Is(err, edit.ErrBusy):
		httpError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, edit.ErrValidation):
		httpError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"requestId": requestID,
	})
}

// GET /api/session/{id}/download
//
// The filename extension is .png regardless of the result's actual encoding;
// this mirrors the product's observed download behavior.
func handleSessionDownload(w http.ResponseWriter, r *http.Request, s *edit.Session) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw, err := s.ResultBytes()
	if err != nil {
		httpError(w, http.StatusNotFound, "no result available")
		return
	}

	contentType := "image/png"
	if snap := s.Snapshot(); snap.ResultURL != "" {
		if p, err := dataurl.Parse(snap.ResultURL); err == nil {
			contentType = p.MIMEType
		}
	}

	filename := fmt.Sprintf("h4x_edit_%d.png", time.Now().UnixMilli())
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Write(raw)
}
