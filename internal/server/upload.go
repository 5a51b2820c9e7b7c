package server

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/example/voiceapi/internal/voice"
)

// parseUpload parses a multipart body capped at maxUploadBytes.
func (h *handler) parseUpload(w http.ResponseWriter, r *http.Request) bool {
	if h.opts.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds maximum size")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return false
	}
	return true
}

// formFile opens a required file field; the caller closes the returned file.
func formFile(w http.ResponseWriter, r *http.Request, field string) (voice.Upload, multipart.File, bool) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		writeError(w, http.StatusBadRequest, field+" file is required")
		return voice.Upload{}, nil, false
	}
	return voice.Upload{Filename: hdr.Filename, Body: f}, f, true
}

func (h *handler) handleVoiceConversion(w http.ResponseWriter, r *http.Request) {
	if !h.parseUpload(w, r) {
		return
	}
	src, srcFile, ok := formFile(w, r, "source_audio")
	if !ok {
		return
	}
	defer srcFile.Close()
	target, targetFile, ok := formFile(w, r, "target_audio")
	if !ok {
		return
	}
	defer targetFile.Close()

	ctx, cancel := h.inferenceContext(r)
	defer cancel()

	start := time.Now()
	art, err := h.svc.Convert(ctx, src, target)
	if err != nil {
		h.fail(w, r, "voice conversion", start, err)
		return
	}
	h.log.InfoContext(r.Context(), "voice conversion complete",
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.Int("wav_bytes", len(art.WAV)),
	)
	writeWAV(w, "voice_converted.wav", art.WAV)
}

func (h *handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if !h.parseUpload(w, r) {
		return
	}
	up, f, ok := formFile(w, r, "audio_file")
	if !ok {
		return
	}
	defer f.Close()

	language := r.FormValue("language")
	if language == "" {
		language = h.opts.language
	}

	ctx, cancel := h.inferenceContext(r)
	defer cancel()

	start := time.Now()
	res, err := h.svc.Transcribe(ctx, up, language)
	if err != nil {
		h.fail(w, r, "transcription", start, err)
		return
	}
	h.log.InfoContext(r.Context(), "transcription complete",
		slog.String("language", res.Language),
		slog.Int("segments", len(res.Segments)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) handleEnhance(w http.ResponseWriter, r *http.Request) {
	if !h.parseUpload(w, r) {
		return
	}
	up, f, ok := formFile(w, r, "audio_file")
	if !ok {
		return
	}
	defer f.Close()

	start := time.Now()
	art, err := h.svc.Enhance(r.Context(), up)
	if err != nil {
		h.fail(w, r, "enhancement", start, err)
		return
	}
	writeWAV(w, "enhanced_audio.wav", art.WAV)
}

func (h *handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !h.parseUpload(w, r) {
		return
	}
	up, f, ok := formFile(w, r, "audio_file")
	if !ok {
		return
	}
	defer f.Close()

	start := time.Now()
	features, err := h.svc.Analyze(r.Context(), up)
	if err != nil {
		h.fail(w, r, "analysis", start, err)
		return
	}
	writeJSON(w, http.StatusOK, features)
}
