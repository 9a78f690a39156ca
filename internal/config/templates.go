package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Swarm Trader Configuration

[trading]
# Trading mode: "live" or "paper"
mode = "paper"
# Symbols to trade
symbols = ["BTC"]
# Decision cycle interval in minutes
interval_minutes = 15
# Position P&L check interval in seconds
pnl_check_seconds = 10
# Long positions only
long_only = true
# Exchange REST endpoint (live mode)
exchange_base_url = ""
# Exchange websocket endpoint for mark prices (optional)
exchange_ws_url = ""

[risk]
# Maximum position size as percentage of balance
max_position_pct = 50.0
# Position leverage
leverage = 5
# Stop loss as a raw price move from entry
stop_loss_pct = 10.0
# Take profit as a raw price move from entry
take_profit_pct = 15.0
# Minimum consensus confidence to trade
min_confidence = 60.0
# Maximum trades per day
max_daily_trades = 10
# Cooldown after a losing trade in minutes
cooldown_minutes = 30

[swarm]
# One voter per model
models = ["gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "o3-mini", "gpt-3.5-turbo"]
# Minimum responding voters for a valid tick
min_voters = 3
# Per-voter call timeout in seconds
voter_timeout_seconds = 60

[notifications]
enabled = true
# Notification level: all, trades_only, errors_only
level = "all"
terminal = true

[notifications.webhook]
enabled = false
url = ""

[notifications.telegram]
enabled = true

[store]
# SQLite database path; empty uses the config directory
path = ""
`

const credentialsTemplate = `# Swarm Trader Credentials
# Keep this file private (chmod 600).

[exchange]
api_key = ""
api_secret = ""

[openai]
api_key = ""
# Optional OpenAI-compatible endpoint
base_url = ""

[telegram]
bot_token = ""
chat_id = ""
`

func createTemplateConfig(configDir string) error {
	return writeTemplate(configDir, "config.toml", configTemplate, 0644)
}

func createTemplateCredentials(configDir string) error {
	return writeTemplate(configDir, "credentials.toml", credentialsTemplate, 0600)
}

func writeTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}

	fmt.Fprintf(os.Stderr, "Created template %s — fill it in before running live.\n", path)
	return nil
}
