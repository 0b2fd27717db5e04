package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# crypto-analyst configuration
# API keys are read from the environment or a .env file next to this one:
# OPENAI_API_KEY, GEMINI_API_KEY, ANTHROPIC_API_KEY, DEEPSEEK_API_KEY

[market]
source = "binance"
base_url = "https://api.binance.com"
# Candle interval: 1h, 4h, 1d, 1w
interval = "1d"
candle_limit = 100
timeout = "10s"
# Client side throttle (requests per second)
rate_limit = 10.0
burst = 5
# Extra attempts after a network error, 429 or 5xx
max_retries = 2

[ai]
attempt_timeout = "45s"
# Retries on the same entry after a timeout or 5xx
max_retries = 1
retry_backoff = "2s"
max_tokens = 2000
temperature = 0.3
# Treat an unparseable response as a failed attempt and move on
advance_on_malformed = false
breaker_threshold = 5
breaker_cooldown = "5m"

# Tried in order. Entries without an API key are skipped.
[[ai.chain]]
provider = "openai"
model = "gpt-4o-mini"

[[ai.chain]]
provider = "openai"
model = "gpt-4o"

[[ai.chain]]
provider = "gemini"
model = "gemini-2.5-flash"

[[ai.chain]]
provider = "anthropic"
model = "claude-3-5-haiku-latest"

[indicators]
rsi_period = 14
rsi_overbought = 70.0
rsi_oversold = 30.0
rsi_neutral_band = 5.0
macd_fast = 12
macd_slow = 26
macd_signal = 9
ma_periods = [7, 25, 99]
bollinger_period = 20
bollinger_k = 2.0
# Band width / middle band below this is flagged as a squeeze
squeeze_threshold = 0.04
williams_period = 14
williams_band = 5.0
volume_short = 5
volume_long = 20
volume_tolerance = 0.1
price_epsilon = 0.0001

[indicators.weights]
rsi = 0.20
macd = 0.25
moving_average = 0.20
bollinger = 0.10
williams_r = 0.10
volume = 0.15
threshold = 0.15

[cache]
# sqlite, redis or memory
backend = "sqlite"
redis_addr = "localhost:6379"
redis_db = 0
redis_prefix = "analysis"
ttl = "48h"
# Calendar day boundary for the cache key
timezone = "UTC"
analysis_type = "technical"

[server]
addr = ":8080"
read_timeout = "10s"
write_timeout = "180s"

[schedule]
enabled = false
# Seconds field first
cron = "0 5 0 * * *"
symbols = ["BTCUSDT", "ETHUSDT"]
concurrency = 4

[log]
level = "info"
console = true
json = false
file = false
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
