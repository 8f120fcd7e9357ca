package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	AppPort string

	// DBDriver: postgres / sqlite
	DBDriver    string
	PostgresDSN string
	RedisAddr   string

	CronSpec string

	// BasicAuthUser / BasicAuthPass 均非空时，API 开启 Basic Auth
	BasicAuthUser string
	BasicAuthPass string

	// BrowserEndpoint 为 cmd/browser-scraper 的地址，为空则只做静态抓取
	BrowserEndpoint string
	UserAgent       string
	SitesFile       string
	OutputDir       string

	CrawlDays  int
	CrawlLimit int
	Debug      bool
}

func Load() *Config {
	cfg := &Config{
		AppPort:         getEnv("APP_PORT", "9000"),
		DBDriver:        getEnv("DB_DRIVER", "postgres"),
		PostgresDSN:     getEnv("POSTGRES_DSN", "host=localhost user=ainews password=ainews dbname=ainews port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6380"),
		CronSpec:        getEnv("CRON_SPEC", "0 8 * * *"),
		BasicAuthUser:   os.Getenv("APP_BASIC_USER"),
		BasicAuthPass:   os.Getenv("APP_BASIC_PASS"),
		BrowserEndpoint: os.Getenv("BROWSER_ENDPOINT"),
		UserAgent:       getEnv("USER_AGENT", "Mozilla/5.0 (compatible; AINewsDigest/1.0)"),
		SitesFile:       os.Getenv("SITES_FILE"),
		OutputDir:       os.Getenv("OUTPUT_DIR"),
		CrawlDays:       getEnvInt("CRAWL_DAYS", 7),
		CrawlLimit:      getEnvInt("CRAWL_LIMIT", 10),
		Debug:           getEnvBool("DEBUG", false),
	}

	log.Printf("config loaded: port=%s db=%s cron=%s browser=%q", cfg.AppPort, cfg.DBDriver, cfg.CronSpec, cfg.BrowserEndpoint)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("warn: invalid %s=%q, use default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("warn: invalid %s=%q, use default %v", key, v, def)
		return def
	}
	return b
}
