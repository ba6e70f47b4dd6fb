package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port      string         `mapstructure:"port"`
	PprofAddr string         `mapstructure:"pprof_addr"`
	Store     StoreConfig    `mapstructure:"store"`
	MongoSQL  DatabaseConfig `mapstructure:"mongo"`
	Redis     RedisConfig    `mapstructure:"redis"`
	Relay     RelayConfig    `mapstructure:"chat"`
	Auth      AuthConfig     `mapstructure:"auth"`
	Events    EventsConfig   `mapstructure:"events"`
}

// StoreConfig message store driver, "mongo" or "memory"
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	RedisDB       int           `mapstructure:"redis_db"`
	GroupCacheTTL time.Duration `mapstructure:"group_cache_ttl"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// RelayConfig definition websocket relay tuning
type RelayConfig struct {
	TypingTTL          time.Duration `mapstructure:"typing_ttl"`
	TypingSweep        time.Duration `mapstructure:"typing_sweep"`
	PingInterval       time.Duration `mapstructure:"ping_interval"`
	PongWait           time.Duration `mapstructure:"pong_wait"`
	WriteWait          time.Duration `mapstructure:"write_wait"`
	SendBuffer         int           `mapstructure:"send_buffer"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes"`
	MaxTextLength      int           `mapstructure:"max_text_length"`
	RequirePaidBooking bool          `mapstructure:"require_paid_booking"`
}

// AuthConfig definition token verification
type AuthConfig struct {
	Required bool   `mapstructure:"required"`
	Secret   string `mapstructure:"secret"`
}

// EventsConfig definition message event sink
type EventsConfig struct {
	Driver        string   `mapstructure:"driver"`
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	AMQPURL       string   `mapstructure:"amqp_url"`
	Exchange      string   `mapstructure:"exchange"`
	RetryCount    int      `mapstructure:"retry_count"`
	RetryInterval int      `mapstructure:"retry_interval"`
}

// WithDefaults fill zero values with the service defaults
func (c Chat) WithDefaults() Chat {
	if c.Port == "" {
		c.Port = "3000"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "mongo"
	}
	if c.MongoSQL.Database == "" {
		c.MongoSQL.Database = "tour_booking"
	}
	if c.MongoSQL.RetryCount == 0 {
		c.MongoSQL.RetryCount = 3
	}
	if c.MongoSQL.RetryInterval == 0 {
		c.MongoSQL.RetryInterval = 2
	}
	if c.Redis.GroupCacheTTL == 0 {
		c.Redis.GroupCacheTTL = time.Minute
	}
	c.Relay = c.Relay.WithDefaults()
	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "chat.message.created"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "chat"
	}
	if c.Events.RetryCount == 0 {
		c.Events.RetryCount = 3
	}
	if c.Events.RetryInterval == 0 {
		c.Events.RetryInterval = 2
	}
	// booking checks only trust token identities
	if c.Relay.RequirePaidBooking {
		c.Auth.Required = true
	}
	return c
}

// WithDefaults fill zero relay values
func (r RelayConfig) WithDefaults() RelayConfig {
	if r.TypingTTL == 0 {
		r.TypingTTL = 3 * time.Second
	}
	if r.TypingSweep == 0 {
		r.TypingSweep = 500 * time.Millisecond
	}
	if r.PingInterval == 0 {
		r.PingInterval = 30 * time.Second
	}
	if r.PongWait == 0 {
		r.PongWait = 60 * time.Second
	}
	if r.WriteWait == 0 {
		r.WriteWait = 10 * time.Second
	}
	if r.SendBuffer == 0 {
		r.SendBuffer = 256
	}
	if r.MaxMessageBytes == 0 {
		r.MaxMessageBytes = 64 << 10
	}
	if r.MaxTextLength == 0 {
		r.MaxTextLength = 4000
	}
	return r
}
