package main

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/example/voiceapi/internal/doctor"
	"github.com/example/voiceapi/internal/testutil"
	"github.com/nats-io/nats-server/v2/test"
)

func TestDoctorConfig_AllBackendsReachable(t *testing.T) {
	fake := testutil.NewFakeModelServer(t)

	dcfg, cleanup, err := doctorConfig(testConfig(t, fake))
	if err != nil {
		t.Fatalf("doctorConfig: %v", err)
	}
	defer cleanup()

	var out strings.Builder
	result := doctor.Run(context.Background(), dcfg, &out)
	if result.Failed() {
		t.Fatalf("unexpected failures: %v\n%s", result.Failures(), out.String())
	}

	for _, want := range []string{"tts model", "vc model", "whisper model", "voice profiles: 4 available"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestDoctorConfig_DisabledAndUnhealthyBackends(t *testing.T) {
	fake := testutil.NewFakeModelServer(t)
	fake.SetHealthy(false)

	cfg := testConfig(t, fake)
	cfg.VC.Backend = "none"
	cfg.Transcribe.Backend = "none"

	dcfg, cleanup, err := doctorConfig(cfg)
	if err != nil {
		t.Fatalf("doctorConfig: %v", err)
	}
	defer cleanup()

	var out strings.Builder
	result := doctor.Run(context.Background(), dcfg, &out)

	if !result.Failed() || len(result.Failures()) != 1 {
		t.Fatalf("want exactly the tts failure, got %v", result.Failures())
	}
	if !strings.Contains(out.String(), "vc model: disabled") {
		t.Errorf("vc should report disabled:\n%s", out.String())
	}
}

func TestDoctorConfig_ChecksBroker(t *testing.T) {
	opts := test.DefaultTestOptions
	opts.Port = -1
	srv := test.RunServer(&opts)
	defer srv.Shutdown()

	fake := testutil.NewFakeModelServer(t)
	cfg := testConfig(t, fake)
	cfg.Jobs.NATSURL = srv.ClientURL()

	dcfg, cleanup, err := doctorConfig(cfg)
	if err != nil {
		t.Fatalf("doctorConfig: %v", err)
	}
	defer cleanup()

	if dcfg.Broker == nil {
		t.Fatal("broker check not configured")
	}
	// A context without a deadline must still get a bounded flush.
	if err := dcfg.Broker(context.Background()); err != nil {
		t.Fatalf("broker: %v", err)
	}

	srv.Shutdown()
	result := doctor.Run(context.Background(), doctor.Config{Broker: dcfg.Broker}, io.Discard)
	if !result.Failed() {
		t.Error("want broker failure after shutdown")
	}
}

func TestDoctorCmd_FailsOnUnreachableBackend(t *testing.T) {
	_, err := runCLI(t, append([]string{"doctor"}, isolatedFlags(t, nil)...)...)
	if err == nil || !strings.Contains(err.Error(), "doctor checks failed") {
		t.Fatalf("want doctor failure, got %v", err)
	}
}

func TestDoctorConfig_UnreachableRedis(t *testing.T) {
	fake := testutil.NewFakeModelServer(t)
	cfg := testConfig(t, fake)
	cfg.Profiles.Backend = "redis"
	cfg.Profiles.RedisAddr = "127.0.0.1:1"

	dcfg, cleanup, err := doctorConfig(cfg)
	if err != nil {
		t.Fatalf("doctorConfig: %v", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = dcfg.Profiles(ctx)
	if err == nil || !strings.Contains(err.Error(), "connect redis 127.0.0.1:1") {
		t.Fatalf("profiles check = %v, want connect redis error", err)
	}
}
