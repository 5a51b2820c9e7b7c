package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. VOICEAPI_SERVER_WORKERS.
const EnvPrefix = "VOICEAPI"

type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Server     ServerConfig     `mapstructure:"server"`
	TTS        TTSConfig        `mapstructure:"tts"`
	VC         VCConfig         `mapstructure:"vc"`
	Transcribe TranscribeConfig `mapstructure:"transcribe"`
	Profiles   ProfilesConfig   `mapstructure:"profiles"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
}

type PathsConfig struct {
	ProfilesFile string `mapstructure:"profiles_file"`
	TempDir      string `mapstructure:"temp_dir"`
	DatasetsDir  string `mapstructure:"datasets_dir"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	Workers         int           `mapstructure:"workers"`
	MaxTextBytes    int           `mapstructure:"max_text_bytes"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     string        `mapstructure:"cors_origins"`
}

type TTSConfig struct {
	Backend string        `mapstructure:"backend"`
	URL     string        `mapstructure:"url"`
	CLIPath string        `mapstructure:"cli_path"`
	Voice   string        `mapstructure:"voice"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Concurrency caps parallel pockettts subprocesses.
	Concurrency int `mapstructure:"concurrency"`
}

type VCConfig struct {
	Backend string        `mapstructure:"backend"`
	URL     string        `mapstructure:"url"`
	CLIPath string        `mapstructure:"cli_path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TranscribeConfig struct {
	Backend    string        `mapstructure:"backend"`
	URL        string        `mapstructure:"url"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	Language   string        `mapstructure:"language"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type ProfilesConfig struct {
	Backend     string `mapstructure:"backend"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

type JobsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
	Bucket  string `mapstructure:"bucket"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Paths: PathsConfig{
			ProfilesFile: "voice_profiles.json",
			TempDir:      "temp_audio",
			DatasetsDir:  "voice_datasets",
		},
		Server: ServerConfig{
			ListenAddr:      ":8000",
			Workers:         1,
			MaxTextBytes:    4096,
			MaxUploadBytes:  32 << 20,
			RequestTimeout:  120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     "*",
		},
		TTS: TTSConfig{
			Backend:     BackendHTTP,
			URL:         "http://127.0.0.1:8001",
			Timeout:     120 * time.Second,
			Concurrency: 1,
		},
		VC: VCConfig{
			Backend: BackendHTTP,
			URL:     "http://127.0.0.1:8002",
			Timeout: 120 * time.Second,
		},
		Transcribe: TranscribeConfig{
			Backend:    BackendWhisper,
			URL:        "http://127.0.0.1:8003",
			Model:      "whisper-1",
			Timeout:    120 * time.Second,
			MaxRetries: 2,
		},
		Profiles: ProfilesConfig{
			Backend:     BackendFile,
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "voiceapi",
		},
		Jobs: JobsConfig{
			Subject: "voiceapi.batch",
			Bucket:  "voiceapi-batch",
		},
	}
}

// flagKeys maps each config key to its command-line flag.
var flagKeys = map[string]string{
	"log_level":               "log-level",
	"paths.profiles_file":     "profiles-file",
	"paths.temp_dir":          "temp-dir",
	"paths.datasets_dir":      "datasets-dir",
	"server.listen_addr":      "listen-addr",
	"server.workers":          "workers",
	"server.max_text_bytes":   "max-text-bytes",
	"server.max_upload_bytes": "max-upload-bytes",
	"server.request_timeout":  "request-timeout",
	"server.shutdown_timeout": "shutdown-timeout",
	"server.cors_origins":     "cors-origins",
	"tts.backend":             "tts-backend",
	"tts.url":                 "tts-url",
	"tts.cli_path":            "tts-cli-path",
	"tts.voice":               "tts-voice",
	"tts.timeout":             "tts-timeout",
	"tts.concurrency":         "tts-concurrency",
	"vc.backend":              "vc-backend",
	"vc.url":                  "vc-url",
	"vc.cli_path":             "vc-cli-path",
	"vc.timeout":              "vc-timeout",
	"transcribe.backend":      "transcribe-backend",
	"transcribe.url":          "transcribe-url",
	"transcribe.model":        "transcribe-model",
	"transcribe.api_key":      "transcribe-api-key",
	"transcribe.language":     "transcribe-language",
	"transcribe.timeout":      "transcribe-timeout",
	"transcribe.max_retries":  "transcribe-max-retries",
	"profiles.backend":        "profiles-backend",
	"profiles.redis_addr":     "redis-addr",
	"profiles.redis_prefix":   "redis-prefix",
	"jobs.nats_url":           "nats-url",
	"jobs.subject":            "jobs-subject",
	"jobs.bucket":             "jobs-bucket",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")

	fs.String("profiles-file", defaults.Paths.ProfilesFile, "Voice profile JSON file")
	fs.String("temp-dir", defaults.Paths.TempDir, "Directory for generated and uploaded audio")
	fs.String("datasets-dir", defaults.Paths.DatasetsDir, "Root directory of batch datasets")

	fs.String("listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Concurrent inference slots (0 = unlimited)")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Maximum TTS input size in bytes")
	fs.Int64("max-upload-bytes", defaults.Server.MaxUploadBytes, "Maximum multipart upload size in bytes")
	fs.Duration("request-timeout", defaults.Server.RequestTimeout, "Per-request inference deadline")
	fs.Duration("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain time")
	fs.String("cors-origins", defaults.Server.CORSOrigins, "Access-Control-Allow-Origin value")

	fs.String("tts-backend", defaults.TTS.Backend, "TTS backend (http|cli|pockettts|none)")
	fs.String("tts-url", defaults.TTS.URL, "TTS model server base URL")
	fs.String("tts-cli-path", defaults.TTS.CLIPath, "TTS executable for the cli and pockettts backends")
	fs.String("tts-voice", defaults.TTS.Voice, "Voice for the pockettts backend")
	fs.Duration("tts-timeout", defaults.TTS.Timeout, "TTS backend call timeout")
	fs.Int("tts-concurrency", defaults.TTS.Concurrency, "Parallel pockettts subprocesses")

	fs.String("vc-backend", defaults.VC.Backend, "Voice conversion backend (http|cli|none)")
	fs.String("vc-url", defaults.VC.URL, "Voice conversion model server base URL")
	fs.String("vc-cli-path", defaults.VC.CLIPath, "Voice conversion executable")
	fs.Duration("vc-timeout", defaults.VC.Timeout, "Voice conversion backend call timeout")

	fs.String("transcribe-backend", defaults.Transcribe.Backend, "Transcription backend (whisper|openai|none)")
	fs.String("transcribe-url", defaults.Transcribe.URL, "Whisper server or OpenAI-compatible base URL")
	fs.String("transcribe-model", defaults.Transcribe.Model, "Transcription model name (openai backend)")
	fs.String("transcribe-api-key", defaults.Transcribe.APIKey, "API key (openai backend)")
	fs.String("transcribe-language", defaults.Transcribe.Language, "Default transcription language (empty = auto)")
	fs.Duration("transcribe-timeout", defaults.Transcribe.Timeout, "Transcription backend call timeout")
	fs.Int("transcribe-max-retries", defaults.Transcribe.MaxRetries, "Retries for rate-limited or failed openai transcription calls")

	fs.String("profiles-backend", defaults.Profiles.Backend, "Voice profile store (file|redis)")
	fs.String("redis-addr", defaults.Profiles.RedisAddr, "Redis address for the redis profile store")
	fs.String("redis-prefix", defaults.Profiles.RedisPrefix, "Redis key prefix")

	fs.String("nats-url", defaults.Jobs.NATSURL, "NATS URL for batch jobs (empty = in-process)")
	fs.String("jobs-subject", defaults.Jobs.Subject, "NATS subject for batch jobs")
	fs.String("jobs-bucket", defaults.Jobs.Bucket, "JetStream object store bucket for batch output")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("voiceapi")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key, name := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("paths.profiles_file", c.Paths.ProfilesFile)
	v.SetDefault("paths.temp_dir", c.Paths.TempDir)
	v.SetDefault("paths.datasets_dir", c.Paths.DatasetsDir)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.max_upload_bytes", c.Server.MaxUploadBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.cors_origins", c.Server.CORSOrigins)
	v.SetDefault("tts.backend", c.TTS.Backend)
	v.SetDefault("tts.url", c.TTS.URL)
	v.SetDefault("tts.cli_path", c.TTS.CLIPath)
	v.SetDefault("tts.voice", c.TTS.Voice)
	v.SetDefault("tts.timeout", c.TTS.Timeout)
	v.SetDefault("tts.concurrency", c.TTS.Concurrency)
	v.SetDefault("vc.backend", c.VC.Backend)
	v.SetDefault("vc.url", c.VC.URL)
	v.SetDefault("vc.cli_path", c.VC.CLIPath)
	v.SetDefault("vc.timeout", c.VC.Timeout)
	v.SetDefault("transcribe.backend", c.Transcribe.Backend)
	v.SetDefault("transcribe.url", c.Transcribe.URL)
	v.SetDefault("transcribe.model", c.Transcribe.Model)
	v.SetDefault("transcribe.api_key", c.Transcribe.APIKey)
	v.SetDefault("transcribe.language", c.Transcribe.Language)
	v.SetDefault("transcribe.timeout", c.Transcribe.Timeout)
	v.SetDefault("transcribe.max_retries", c.Transcribe.MaxRetries)
	v.SetDefault("profiles.backend", c.Profiles.Backend)
	v.SetDefault("profiles.redis_addr", c.Profiles.RedisAddr)
	v.SetDefault("profiles.redis_prefix", c.Profiles.RedisPrefix)
	v.SetDefault("jobs.nats_url", c.Jobs.NATSURL)
	v.SetDefault("jobs.subject", c.Jobs.Subject)
	v.SetDefault("jobs.bucket", c.Jobs.Bucket)
}

func (c *Config) normalize() error {
	var err error
	if c.TTS.Backend, err = NormalizeTTSBackend(c.TTS.Backend); err != nil {
		return err
	}
	if c.VC.Backend, err = NormalizeVCBackend(c.VC.Backend); err != nil {
		return err
	}
	if c.Transcribe.Backend, err = NormalizeTranscribeBackend(c.Transcribe.Backend); err != nil {
		return err
	}
	if c.Profiles.Backend, err = NormalizeProfilesBackend(c.Profiles.Backend); err != nil {
		return err
	}
	if c.Server.Workers < 0 {
		return fmt.Errorf("server.workers must be >= 0, got %d", c.Server.Workers)
	}
	if c.TTS.Concurrency < 1 {
		c.TTS.Concurrency = 1
	}
	if c.Transcribe.MaxRetries < 0 {
		return fmt.Errorf("transcribe.max_retries must be >= 0, got %d", c.Transcribe.MaxRetries)
	}
	return nil
}
