package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/promptstudio/promptstudio/internal/api/middleware"
	"github.com/promptstudio/promptstudio/internal/export"
	"github.com/promptstudio/promptstudio/internal/failure"
	"github.com/promptstudio/promptstudio/internal/staging"
	"github.com/promptstudio/promptstudio/internal/tts"
	"github.com/promptstudio/promptstudio/internal/web"
)

// multipartOverhead is allowed on top of the upload limit for form framing.
const multipartOverhead = 1 << 20

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type exportRequest struct {
	Filename    string `json:"filename"`
	PromptName  string `json:"promptName"`
	Description string `json:"description"`
	Language    string `json:"language"`
}

type stagedResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type exportResponse struct {
	Success    bool   `json:"success"`
	PromptName string `json:"promptName"`
}

type sessionResponse struct {
	Success      bool          `json:"success"`
	User         *userResponse `json:"user,omitempty"`
	EmbeddedMode bool          `json:"embeddedMode"`
	IsAdminLocal bool          `json:"isAdminLocal"`
	ExpiresAt    string        `json:"expiresAt,omitempty"`
}

// handleIndex serves the studio page for the current identity.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rec := middleware.SessionFromContext(r.Context()).Record
	page := web.IndexPage{
		User:         rec.User,
		EmbeddedMode: rec.EmbeddedMode,
		IsAdminLocal: rec.IsAdminLocal,
		DefaultVoice: s.cfg.DefaultVoice,
		Voices:       tts.Voices,
	}
	if err := s.deps.Pages.Render(w, http.StatusOK, "index.html", page); err != nil {
		slog.Error("index page: failed to render", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleSession describes the current session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	rec := middleware.SessionFromContext(r.Context()).Record
	resp := sessionResponse{
		Success:      true,
		EmbeddedMode: rec.EmbeddedMode,
		IsAdminLocal: rec.IsAdminLocal,
	}
	if rec.User != nil {
		resp.User = &userResponse{Name: rec.User.DisplayName, Email: rec.User.Email}
	}
	if !rec.TokenExpiresAt.IsZero() {
		resp.ExpiresAt = rec.TokenExpiresAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSynthesize renders text to speech and stages the result.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}
	if errMsg := validateStringLen("text", req.Text, maxTextLen); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if req.Voice == "" {
		req.Voice = s.cfg.DefaultVoice
	}
	if errMsg := validateVoice(req.Voice); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	audio, err := s.deps.Synthesizer.Synthesize(r.Context(), req.Text, req.Voice)
	if err != nil {
		s.deps.Metrics.RecordSynthesis(outcome(err))
		writeFailure(w, r, "synthesize", err)
		return
	}

	name, err := s.deps.Staging.Save(staging.PrefixSynthesized, ".wav", audio)
	s.deps.Metrics.RecordSynthesis(outcome(err))
	if err != nil {
		writeFailure(w, r, "synthesize", err)
		return
	}

	slog.Info("synthesize: audio staged", "filename", name, "voice", req.Voice, "bytes", len(audio))
	writeJSON(w, http.StatusOK, stagedResponse{Success: true, Filename: name, URL: "/uploads/" + name})
}

// handleUpload stages a recording sent as the multipart field "file".
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	err := s.upload(w, r)
	s.deps.Metrics.RecordUpload(outcome(err))
	if err != nil {
		writeFailure(w, r, "upload", err)
	}
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return failure.New(failure.BadRequest, "File too large")
		}
		return failure.New(failure.BadRequest, "No file provided")
	}
	defer file.Close()

	ext, err := s.policy.Extension(header.Filename)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return failure.Wrap(err, failure.BadRequest, "Could not read upload")
	}
	if err := s.policy.Check(ext, data); err != nil {
		return err
	}

	name, err := s.deps.Staging.Save(staging.PrefixUploaded, ext, data)
	if err != nil {
		return err
	}

	slog.Info("upload: audio staged", "filename", name, "original", filepath.Base(header.Filename), "bytes", len(data))
	writeJSON(w, http.StatusOK, stagedResponse{Success: true, Filename: name, URL: "/uploads/" + name})
	return nil
}

// handleExport publishes a staged artifact to the prompt library.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	for _, check := range []string{
		validateStringLen("promptName", req.PromptName, maxNameLen),
		validateStringLen("description", req.Description, maxNameLen),
		validateLanguage(req.Language),
	} {
		if check != "" {
			writeError(w, http.StatusBadRequest, check)
			return
		}
	}

	name, err := s.deps.Exporter.Export(r.Context(), export.Request{
		StagedArtifactRef: req.Filename,
		RawName:           req.PromptName,
		Description:       req.Description,
		LanguageTag:       strings.ToLower(req.Language),
	}, middleware.SessionFromContext(r.Context()).Record)
	s.deps.Metrics.RecordExport(outcome(err))
	if err != nil {
		writeFailure(w, r, "export", err)
		return
	}

	writeJSON(w, http.StatusOK, exportResponse{Success: true, PromptName: name})
}

// handleStagedAudio serves a staged artifact for preview.
func (s *Server) handleStagedAudio(w http.ResponseWriter, r *http.Request) {
	f, info, err := s.deps.Staging.Open(chi.URLParam(r, "filename"))
	if err != nil {
		writeFailure(w, r, "staged audio", err)
		return
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(info.Name()), ".wav") {
		w.Header().Set("Content-Type", "audio/wav")
	}
	w.Header().Set("Cache-Control", "private, no-cache")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
