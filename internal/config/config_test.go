package config

import (
	"os"
	"testing"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	// 环境变量设置后，应优先返回环境变量
	t.Setenv(key, "8080")
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestGetEnvIntAndBool(t *testing.T) {
	t.Setenv("TEST_CRAWL_DAYS", "3")
	if got := getEnvInt("TEST_CRAWL_DAYS", 7); got != 3 {
		t.Fatalf("getEnvInt = %d, want 3", got)
	}
	t.Setenv("TEST_CRAWL_DAYS", "three")
	if got := getEnvInt("TEST_CRAWL_DAYS", 7); got != 7 {
		t.Fatalf("getEnvInt with invalid value = %d, want default 7", got)
	}

	t.Setenv("TEST_DEBUG", "true")
	if !getEnvBool("TEST_DEBUG", false) {
		t.Fatalf("getEnvBool should parse true")
	}
	t.Setenv("TEST_DEBUG", "maybe")
	if getEnvBool("TEST_DEBUG", false) {
		t.Fatalf("getEnvBool with invalid value should fall back to default")
	}
}

func TestLoadReadsAuthAndPorts(t *testing.T) {
	t.Setenv("APP_PORT", "1234")
	t.Setenv("APP_BASIC_USER", "user")
	t.Setenv("APP_BASIC_PASS", "pass")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CRAWL_LIMIT", "5")

	cfg := Load()
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want %q", cfg.AppPort, "1234")
	}
	if cfg.BasicAuthUser != "user" || cfg.BasicAuthPass != "pass" {
		t.Fatalf("BasicAuthUser/Pass not loaded correctly: %+v", cfg)
	}
	if cfg.DBDriver != "sqlite" || cfg.CrawlLimit != 5 {
		t.Fatalf("DBDriver/CrawlLimit not loaded correctly: %+v", cfg)
	}
	if cfg.CrawlDays != 7 {
		t.Fatalf("CrawlDays default = %d, want 7", cfg.CrawlDays)
	}
}
