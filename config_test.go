package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultTuningIsValid(t *testing.T) {
	tuning := DefaultTuning()
	if err := tuning.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if tuning.SubSteps != 4 || tuning.Width != 800 || tuning.Height != 600 {
		t.Errorf("unexpected defaults %+v", tuning)
	}
	if d := tuning.TickDuration(); d != time.Second/60 {
		t.Errorf("tick duration %v", d)
	}
	if step := tuning.MaxStepTime(); step <= tuning.TickDuration().Seconds() || step >= tuning.MaxDeltaTime {
		t.Errorf("max step %f should fit a normal tick and split a stall", step)
	}
}

func TestLoadTuning(t *testing.T) {
	if tuning, err := LoadTuning(""); err != nil || tuning != DefaultTuning() {
		t.Errorf("empty path should return defaults: %v", err)
	}

	path := filepath.Join(t.TempDir(), "rink.toml")
	os.WriteFile(path, []byte("tick_rate = 30\nplayer_max_speed = 450.5\nmax_players = 6\n"), 0o644)
	tuning, err := LoadTuning(path)
	if err != nil {
		t.Fatal(err)
	}
	if tuning.TickRate != 30 || tuning.PlayerMaxSpeed != 450.5 || tuning.MaxPlayers != 6 {
		t.Errorf("overrides not applied: %+v", tuning)
	}
	if tuning.BallMaxSpeed != DefaultTuning().BallMaxSpeed {
		t.Error("keys absent from the file keep their defaults")
	}
}

func TestLoadTuningRejects(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name, body, want string
	}{
		{"syntax", "tick_rate = = 3", "decode"},
		{"zero tick rate", "tick_rate = 0", "tick_rate"},
		{"empty ball band", "ball_min_speed = 500", "ball speed"},
		{"one player", "max_players = 1", "max_players"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".toml")
			os.WriteFile(path, []byte(tt.body), 0o644)
			_, err := LoadTuning(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
	if _, err := LoadTuning(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("PONGHUB_DB", "env.db")
	t.Setenv("PONGHUB_PUBLIC_URL", "")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9000" || cfg.DBPath != "env.db" || cfg.PublicURL != "http://localhost:9000" {
		t.Errorf("environment not applied: %+v", cfg)
	}

	cfg, err = LoadConfig([]string{"-db", "flag.db", "-addr", "127.0.0.1:1"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "flag.db" || cfg.Addr != "127.0.0.1:1" {
		t.Errorf("flags should win over the environment: %+v", cfg)
	}

	if _, err := LoadConfig([]string{"-bogus"}); err == nil {
		t.Error("unknown flag should fail")
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("PONGHUB_CLIENT_DIR", "")
	os.Unsetenv("PONGHUB_CLIENT_DIR")
	os.WriteFile(filepath.Join(dir, ".env"), []byte("PONGHUB_CLIENT_DIR=/srv/client\n"), 0o644)

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ClientDir != "/srv/client" {
		t.Errorf("expected .env value, got %q", cfg.ClientDir)
	}
}
