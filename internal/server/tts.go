package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/voiceapi/internal/audio"
	"github.com/example/voiceapi/internal/voice"
)

func (h *handler) decodeSynthesisRequest(w http.ResponseWriter, r *http.Request) (voice.SynthesisRequest, bool) {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return voice.SynthesisRequest{}, false
	}

	req := voice.NewSynthesisRequest("")
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return voice.SynthesisRequest{}, false
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text field is required")
		return voice.SynthesisRequest{}, false
	}
	if h.opts.maxTextBytes > 0 && len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return voice.SynthesisRequest{}, false
	}
	return req, true
}

func (h *handler) handleTTS(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSynthesisRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.inferenceContext(r)
	defer cancel()

	start := time.Now()
	art, err := h.svc.Synthesize(ctx, req)
	if err != nil {
		h.fail(w, r, "synthesis", start, err)
		return
	}

	h.log.InfoContext(r.Context(), "synthesis complete",
		slog.String("voice_profile", req.VoiceProfile),
		slog.Int("text_len", len(req.Text)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.Int("wav_bytes", len(art.WAV)),
	)
	writeWAV(w, "generated_speech.wav", art.WAV)
}

// handleTTSStream writes a streaming WAV header followed by PCM for each
// sentence chunk as it is generated. Errors before the first chunk get a JSON
// error response; later errors end the stream early.
func (h *handler) handleTTSStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSynthesisRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.inferenceContext(r)
	defer cancel()

	rc := http.NewResponseController(w)
	start := time.Now()
	stream := audio.NewStream(w)
	chunks := 0
	sent := false

	err := h.svc.SynthesizeStream(ctx, req, func(clip audio.Clip) error {
		if !sent {
			w.Header().Set("Content-Type", "audio/wav")
			w.Header().Set("Content-Disposition", `attachment; filename="stream.wav"`)
			w.WriteHeader(http.StatusOK)
			sent = true
		}
		if err := stream.WriteClip(clip); err != nil {
			return err
		}
		chunks++
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	})

	if err != nil {
		if !sent {
			h.fail(w, r, "stream synthesis", start, err)
			return
		}
		h.log.WarnContext(r.Context(), "stream ended early",
			slog.Int("chunks", chunks),
			slog.Int64("audio_ms", streamedMs(stream)),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("error", err.Error()),
		)
		return
	}

	h.log.InfoContext(r.Context(), "stream synthesis complete",
		slog.String("voice_profile", req.VoiceProfile),
		slog.Int("text_len", len(req.Text)),
		slog.Int("chunks", chunks),
		slog.Int64("audio_ms", streamedMs(stream)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

// streamedMs is the playback length written to s so far.
func streamedMs(s *audio.Stream) int64 {
	if s.SampleRate() == 0 {
		return 0
	}
	return s.Samples() * 1000 / int64(s.SampleRate())
}
