package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/brensch/teamgrid/game"
	"github.com/brensch/teamgrid/logging"
	"github.com/brensch/teamgrid/peer"
	"github.com/brensch/teamgrid/registry"
	"github.com/brensch/teamgrid/transport/mqtt"
)

const (
	transportMQTT = "mqtt"
	transportWS   = "ws"
)

type config struct {
	Lobby     string
	ClientID  string
	Transport string
	RelayURL  string
	MQTT      mqtt.Config

	Mode    game.Kind
	Name    string
	Team    string
	Bots    int
	BotTeam string

	BarrierDwell time.Duration
	ArchiveDir   string
	Log          logging.Options
}

// parseConfig reads flags from args, falling back to the environment and
// then to the broker credentials file.
func parseConfig(args []string, stderr io.Writer) (config, error) {
	flags := flag.NewFlagSet("teamgrid", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var cfg config
	credentials := flags.String("credentials", getEnvOrDefault("CREDENTIALS_FILE", "credentials.env"), "dotenv file with BROKER_ADDRESS, BROKER_PORT, USER_NAME, PASSWORD")
	flags.StringVar(&cfg.Lobby, "lobby", getEnvOrDefault("LOBBY", "TestLobby"), "Lobby name")
	flags.StringVar(&cfg.ClientID, "client-id", getEnvOrDefault("CLIENT_ID", ""), "Client ID on the bus (default: random UUID)")
	flags.StringVar(&cfg.Transport, "transport", getEnvOrDefault("TRANSPORT", transportMQTT), "Bus transport: mqtt or ws")
	flags.StringVar(&cfg.RelayURL, "relay-url", getEnvOrDefault("RELAY_URL", "ws://localhost:8090/ws"), "Websocket relay URL when -transport=ws")
	mode := flags.String("mode", getEnvOrDefault("MODE", string(game.KindUser)), "Player kind controlled from this terminal: user or bot")
	flags.StringVar(&cfg.Name, "name", getEnvOrDefault("PLAYER_NAME", ""), "Player name (bots default to Player{n})")
	flags.StringVar(&cfg.Team, "team", getEnvOrDefault("TEAM_NAME", ""), "Team name")
	flags.IntVar(&cfg.Bots, "bots", getEnvIntOrDefault("BOTS", 0), "Additional bots to create on -bot-team")
	flags.StringVar(&cfg.BotTeam, "bot-team", getEnvOrDefault("BOT_TEAM", ""), "Team for -bots (default: -team)")
	flags.DurationVar(&cfg.BarrierDwell, "barrier-dwell", getEnvDurationOrDefault("BARRIER_DWELL", peer.DefaultBarrierDwell), "How long every client must stay ready before the game starts")
	flags.StringVar(&cfg.ArchiveDir, "archive-dir", getEnvOrDefault("ARCHIVE_DIR", ""), "Directory for Parquet turn archives (empty disables)")
	flags.StringVar(&cfg.Log.Format, "log-format", getEnvOrDefault("LOG_FORMAT", logging.FormatPretty), "Log format: pretty, json or text")
	flags.StringVar(&cfg.Log.Level, "log-level", getEnvOrDefault("LOG_LEVEL", "info"), "Log level")
	flags.StringVar(&cfg.Log.File, "log-file", getEnvOrDefault("LOG_FILE", ""), "Log file (user mode defaults to teamgrid.log)")
	tlsFlag := flags.Bool("tls", getEnvBoolOrDefault("BROKER_TLS", false), "Force TLS to the MQTT broker (always on for port 8883)")

	if err := flags.Parse(args); err != nil {
		return cfg, err
	}

	if err := godotenv.Load(*credentials); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load %s: %w", *credentials, err)
	}
	cfg.MQTT = mqtt.DefaultConfig()
	cfg.MQTT.Host = getEnvOrDefault("BROKER_ADDRESS", "")
	cfg.MQTT.Port = getEnvIntOrDefault("BROKER_PORT", cfg.MQTT.Port)
	cfg.MQTT.Username = getEnvOrDefault("USER_NAME", "")
	cfg.MQTT.Password = getEnvOrDefault("PASSWORD", "")
	cfg.MQTT.TLS = *tlsFlag

	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	cfg.MQTT.ClientID = cfg.ClientID

	cfg.Mode = game.Kind(strings.ToLower(*mode))
	if !cfg.Mode.Valid() {
		return cfg, fmt.Errorf("unknown mode %q", *mode)
	}
	switch cfg.Transport {
	case transportMQTT, transportWS:
	default:
		return cfg, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	if cfg.Team == "" {
		return cfg, fmt.Errorf("-team is required")
	}
	if cfg.Mode == game.KindUser && cfg.Name == "" {
		return cfg, fmt.Errorf("-name is required in user mode")
	}
	if cfg.BotTeam == "" {
		cfg.BotTeam = cfg.Team
	}
	if err := registry.ValidName(cfg.Team); err != nil {
		return cfg, fmt.Errorf("-team: %w", err)
	}
	if err := registry.ValidName(cfg.BotTeam); err != nil {
		return cfg, fmt.Errorf("-bot-team: %w", err)
	}
	if cfg.Name != "" {
		if err := registry.ValidName(cfg.Name); err != nil {
			return cfg, fmt.Errorf("-name: %w", err)
		}
	}
	if cfg.Mode == game.KindUser && cfg.Log.File == "" {
		cfg.Log.File = "teamgrid.log"
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
