package config

// NotifierConfig configures cmd/notifier, which consumes booking
// notifications from RabbitMQ.
type NotifierConfig struct {
	RabbitMQURL string
	Queue       string
	// LogFile receives one line per delivered notification.  Empty writes
	// to stdout.
	LogFile   string
	LogLevel  string
	LogFormat string
}

// LoadNotifier reads the notifier configuration.  RABBITMQ_URL is required.
func LoadNotifier() NotifierConfig {
	return NotifierConfig{
		RabbitMQURL: must("RABBITMQ_URL"),
		Queue:       envStr("NOTIFICATION_QUEUE", "booking.notifications"),
		LogFile:     envStr("NOTIFICATION_LOG", "logs/notifications.log"),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		LogFormat:   envStr("LOG_FORMAT", "text"),
	}
}
