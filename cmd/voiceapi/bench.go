package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/example/voiceapi/internal/audio"
	"github.com/example/voiceapi/internal/bench"
	"github.com/example/voiceapi/internal/voice"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		text         string
		profileName  string
		url          string
		runs         int
		format       string
		rtfThreshold float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark synthesis latency and realtime factor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if strings.TrimSpace(text) == "" {
				return errors.New("--text is required for bench")
			}
			if runs < 1 {
				return errors.New("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return errors.New("--format must be 'table' or 'json'")
			}

			req := voice.NewSynthesisRequest(text)
			req.VoiceProfile = profileName

			var synth bench.Synthesizer
			if url != "" {
				synth = remoteSynthesizer(&http.Client{Timeout: cfg.Server.RequestTimeout}, url, req)
			} else {
				a, err := buildApp(cmd.Context(), ttsOnly(cfg), nil)
				if err != nil {
					return err
				}
				defer func() { _ = a.Close() }()
				if err := a.svc.LoadModels(cmd.Context()); err != nil {
					return err
				}
				synth = func(ctx context.Context) (audio.Clip, error) {
					return a.svc.Generate(ctx, req)
				}
			}

			samples, err := bench.Run(cmd.Context(), runs, synth)
			if err != nil {
				return err
			}

			report := bench.Summarize(samples)
			out := cmd.OutOrStdout()
			if format == "json" {
				err = report.WriteJSON(out)
			} else {
				err = report.WriteTable(out)
			}
			if err != nil {
				return err
			}
			return report.Check(rtfThreshold)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to synthesize for each run (required)")
	cmd.Flags().StringVar(&profileName, "profile", "", "Voice profile to apply")
	cmd.Flags().StringVar(&url, "url", "", "Benchmark a running server at this base URL instead of the local backend")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of synthesis runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Exit non-zero if mean RTF exceeds this value (0 = disabled)")

	return cmd
}

// remoteSynthesizer posts req to the server's /tts/ endpoint and decodes the
// returned WAV.
func remoteSynthesizer(client *http.Client, baseURL string, req voice.SynthesisRequest) bench.Synthesizer {
	endpoint := strings.TrimRight(baseURL, "/") + "/tts/"

	return func(ctx context.Context) (audio.Clip, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return audio.Clip{}, err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return audio.Clip{}, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(httpReq)
		if err != nil {
			return audio.Clip{}, err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return audio.Clip{}, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return audio.Clip{}, fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
		}
		return audio.DecodeWAV(data)
	}
}
