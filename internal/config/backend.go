package config

import (
	"fmt"
	"strings"
)

const (
	BackendHTTP      = "http"
	BackendCLI       = "cli"
	BackendPocketTTS = "pockettts"
	BackendWhisper   = "whisper"
	BackendOpenAI    = "openai"
	BackendNone      = "none"

	BackendFile  = "file"
	BackendRedis = "redis"
)

func NormalizeTTSBackend(raw string) (string, error) {
	return normalizeBackend("tts", raw, BackendHTTP, map[string]string{
		"pocket-tts": BackendPocketTTS,
		"pocket":     BackendPocketTTS,
	}, BackendHTTP, BackendCLI, BackendPocketTTS, BackendNone)
}

func NormalizeVCBackend(raw string) (string, error) {
	return normalizeBackend("vc", raw, BackendHTTP, nil, BackendHTTP, BackendCLI, BackendNone)
}

func NormalizeTranscribeBackend(raw string) (string, error) {
	return normalizeBackend("transcribe", raw, BackendWhisper, map[string]string{
		"whisper-server": BackendWhisper,
		"whisper.cpp":    BackendWhisper,
	}, BackendWhisper, BackendOpenAI, BackendNone)
}

func NormalizeProfilesBackend(raw string) (string, error) {
	return normalizeBackend("profiles", raw, BackendFile, map[string]string{
		"json": BackendFile,
	}, BackendFile, BackendRedis)
}

func normalizeBackend(kind, raw, def string, aliases map[string]string, allowed ...string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		return def, nil
	}
	if alias, ok := aliases[backend]; ok {
		return alias, nil
	}
	for _, a := range allowed {
		if backend == a {
			return backend, nil
		}
	}
	return "", fmt.Errorf("invalid %s backend %q (expected %s)", kind, raw, strings.Join(allowed, "|"))
}
