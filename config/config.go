package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Clan     ClanConfig     `mapstructure:"clan"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
	// AdminKeyHash is a bcrypt hash of the break-glass admin key.
	// Empty disables the key-based admin routes entirely.
	AdminKeyHash string `mapstructure:"admin_key_hash"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
}

type SecurityConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTTTLH   time.Duration `mapstructure:"jwt_ttl_h"`
	// ResolveSecret signs the short-lived resolve tokens. It must not be
	// the same key as JWTSecret; the two token kinds are not interchangeable.
	ResolveSecret  string        `mapstructure:"resolve_secret"`
	ResolveTTL     time.Duration `mapstructure:"resolve_ttl"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// CookieSecure controls the Secure flag on the session cookie; leave
	// false only for plain-HTTP local development.
	CookieSecure bool `mapstructure:"cookie_secure"`
}

type DiscordConfig struct {
	APIBase         string        `mapstructure:"api_base"`
	BotToken        string        `mapstructure:"bot_token"`
	ClientID        string        `mapstructure:"client_id"`
	ClientSecret    string        `mapstructure:"client_secret"`
	RedirectURL     string        `mapstructure:"redirect_url"`
	GuildID         string        `mapstructure:"guild_id"`
	MemberRoleID    string        `mapstructure:"member_role_id"`
	AnnounceChannel string        `mapstructure:"announce_channel"`
	OwnerRoleIDs    []string      `mapstructure:"owner_role_ids"`
	WebDevRoleIDs   []string      `mapstructure:"webdev_role_ids"`
	AdminRoleIDs    []string      `mapstructure:"admin_role_ids"`
	MemberCacheTTL  time.Duration `mapstructure:"member_cache_ttl"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// RankConfig is one rung of the promotion ladder.
type RankConfig struct {
	Name         string `mapstructure:"name"`
	RoleID       string `mapstructure:"role_id"`
	DaysRequired int    `mapstructure:"days_required"`
}

type ClanConfig struct {
	Tag             string        `mapstructure:"tag"`
	MinConfirmBatch int           `mapstructure:"min_confirm_batch"`
	SyncInterval    time.Duration `mapstructure:"sync_interval"`
	PromoteWindow   time.Duration `mapstructure:"promote_window"`
	BanReportWindow time.Duration `mapstructure:"ban_report_window"`
	Ranks           []RankConfig  `mapstructure:"ranks"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/clanhub.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.resolve_ttl", "10m")
	v.SetDefault("security.rate_limit_rps", 50)
	v.SetDefault("security.rate_limit_burst", 100)
	v.SetDefault("discord.api_base", "https://discord.com/api/v10")
	v.SetDefault("discord.member_cache_ttl", "2m")
	v.SetDefault("discord.request_timeout", "10s")
	v.SetDefault("clan.tag", "420")
	v.SetDefault("clan.min_confirm_batch", 5)
	v.SetDefault("clan.sync_interval", "15m")
	v.SetDefault("clan.promote_window", "1m")
	v.SetDefault("clan.ban_report_window", "24h")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
