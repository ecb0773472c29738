package config

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Mongo.DBName != "site_procurement" {
		t.Errorf("default dbName = %q, want site_procurement", cfg.Mongo.DBName)
	}
	if cfg.JWT.Expiration != "24h" {
		t.Errorf("default expiration = %q, want 24h", cfg.JWT.Expiration)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.example.com,http://b.example.com")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, want 9090 from SERVER_PORT", cfg.Server.Port)
	}
	want := []string{"http://a.example.com", "http://b.example.com"}
	if len(cfg.CORS.AllowOrigins) != len(want) {
		t.Fatalf("allowOrigins = %v, want %v", cfg.CORS.AllowOrigins, want)
	}
	for i := range want {
		if cfg.CORS.AllowOrigins[i] != want[i] {
			t.Errorf("allowOrigins[%d] = %q, want %q", i, cfg.CORS.AllowOrigins[i], want[i])
		}
	}
}
