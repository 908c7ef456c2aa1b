package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds the process-level settings
type Config struct {
	Addr       string
	ClientDir  string
	DBPath     string
	PublicURL  string
	TuningFile string
}

// LoadConfig reads .env (optional), then the environment, then the command line.
// Flags win over environment variables.
func LoadConfig(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env loaded: %v", err)
	}

	port := envOr("PORT", "8080")
	fs := flag.NewFlagSet("ponghub", flag.ContinueOnError)
	cfg := Config{}
	fs.StringVar(&cfg.Addr, "addr", ":"+port, "HTTP listen address")
	fs.StringVar(&cfg.ClientDir, "client", envOr("PONGHUB_CLIENT_DIR", "../client"), "Path to client directory")
	fs.StringVar(&cfg.DBPath, "db", envOr("PONGHUB_DB", "ponghub.db"), "SQLite database path")
	fs.StringVar(&cfg.PublicURL, "public-url", envOr("PONGHUB_PUBLIC_URL", "http://localhost:"+port), "Public URL of the game, used for the mobile QR code")
	fs.StringVar(&cfg.TuningFile, "tuning", os.Getenv("PONGHUB_TUNING"), "Optional TOML file overriding rink tuning")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Tuning holds every gameplay constant of the rink.
// Distances are in world units (pixels), speeds in units per second.
type Tuning struct {
	TickRate     int     `toml:"tick_rate"`
	SubSteps     int     `toml:"sub_steps"`
	MaxDeltaTime float64 `toml:"max_delta_time"`
	MaxPlayers   int     `toml:"max_players"`

	Width            float64 `toml:"width"`
	Height           float64 `toml:"height"`
	WallThickness    float64 `toml:"wall_thickness"`
	GoalHeight       float64 `toml:"goal_height"`
	GoalDepth        float64 `toml:"goal_depth"`
	NetWidth         float64 `toml:"net_width"`
	TeamCenterOffset float64 `toml:"team_center_offset"`
	SpreadDistance   float64 `toml:"spread_distance"`

	PlayerWidth       float64 `toml:"player_width"`
	PlayerHeight      float64 `toml:"player_height"`
	PlayerMaxSpeed    float64 `toml:"player_max_speed"`
	PlayerAccel       float64 `toml:"player_accel"`
	PlayerAirFriction float64 `toml:"player_air_friction"`

	BallRadius    float64 `toml:"ball_radius"`
	BallMinSpeed  float64 `toml:"ball_min_speed"`
	BallMaxSpeed  float64 `toml:"ball_max_speed"`
	ServeMinSpeed float64 `toml:"serve_min_speed"`
	ServeMaxSpeed float64 `toml:"serve_max_speed"`

	TiltThreshold float64 `toml:"tilt_threshold"` // degrees
}

// DefaultTuning returns the stock rink
func DefaultTuning() Tuning {
	return Tuning{
		TickRate:     60,
		SubSteps:     4,
		MaxDeltaTime: 1,
		MaxPlayers:   20,

		Width:            800,
		Height:           600,
		WallThickness:    50,
		GoalHeight:       200,
		GoalDepth:        20,
		NetWidth:         6,
		TeamCenterOffset: 200,
		SpreadDistance:   200,

		PlayerWidth:       20,
		PlayerHeight:      80,
		PlayerMaxSpeed:    300,
		PlayerAccel:       1500,
		PlayerAirFriction: 2,

		BallRadius:    12,
		BallMinSpeed:  100,
		BallMaxSpeed:  400,
		ServeMinSpeed: 150,
		ServeMaxSpeed: 220,

		TiltThreshold: 10,
	}
}

// LoadTuning returns the defaults overridden by the TOML file at path.
// An empty path returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return t, fmt.Errorf("decode tuning %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

// Validate rejects tunings that would break the simulation invariants
func (t Tuning) Validate() error {
	switch {
	case t.TickRate <= 0:
		return fmt.Errorf("tick_rate must be positive")
	case t.SubSteps <= 0:
		return fmt.Errorf("sub_steps must be positive")
	case t.Width <= 0 || t.Height <= 0:
		return fmt.Errorf("rink dimensions must be positive")
	case t.PlayerMaxSpeed <= 0:
		return fmt.Errorf("player_max_speed must be positive")
	case t.BallMinSpeed <= 0 || t.BallMaxSpeed < t.BallMinSpeed:
		return fmt.Errorf("ball speed band is empty")
	case t.ServeMinSpeed > t.ServeMaxSpeed:
		return fmt.Errorf("serve speed band is empty")
	case t.MaxPlayers < 2:
		return fmt.Errorf("max_players must allow a match")
	}
	return nil
}

// MaxStepTime is the longest span simulated in one world step. Ticks
// longer than this are split.
func (t Tuning) MaxStepTime() float64 {
	if t.TickRate <= 0 {
		return 0
	}
	return 2 / float64(t.TickRate)
}

// TickDuration is the wall-clock interval between ticks
func (t Tuning) TickDuration() time.Duration {
	return time.Second / time.Duration(t.TickRate)
}
