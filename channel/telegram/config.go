package telegram

import "time"

// Config holds the bot credentials and the family allow-list.
type Config struct {
	BotToken       string        `envconfig:"BOT_TOKEN" split_words:"true" required:"true"`
	AllowedUserIDs []int64       `envconfig:"ALLOWED_USER_IDS" split_words:"true"`
	APIBaseURL     string        `envconfig:"API_BASE_URL" split_words:"true" default:"https://api.telegram.org"`
	PollTimeout    time.Duration `envconfig:"POLL_TIMEOUT" split_words:"true" default:"30s"`
}
