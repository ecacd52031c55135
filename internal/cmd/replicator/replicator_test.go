package replicator

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("replicator", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Store != StoreSQLite {
		t.Fatalf("Store = %q, want %q", cfg.Store, StoreSQLite)
	}
	if cfg.SQLitePath != "orderflow.db" {
		t.Fatalf("SQLitePath = %q, want %q", cfg.SQLitePath, "orderflow.db")
	}
	if cfg.EventsTopic != "orderflow.events" {
		t.Fatalf("EventsTopic = %q, want %q", cfg.EventsTopic, "orderflow.events")
	}
	if cfg.GroupID != "orderflow-replicator" {
		t.Fatalf("GroupID = %q, want %q", cfg.GroupID, "orderflow-replicator")
	}
	if cfg.AdminAddr != ":8080" {
		t.Fatalf("AdminAddr = %q, want %q", cfg.AdminAddr, ":8080")
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("replicator", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-store", "postgres", "-admin-addr", "127.0.0.1:9999"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Store != StorePostgres {
		t.Fatalf("Store = %q, want %q", cfg.Store, StorePostgres)
	}
	if cfg.AdminAddr != "127.0.0.1:9999" {
		t.Fatalf("AdminAddr = %q, want %q", cfg.AdminAddr, "127.0.0.1:9999")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Store:        StoreSQLite,
		SQLitePath:   "orderflow.db",
		KafkaBrokers: []string{"localhost:9092"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store", func(cfg *Config) { cfg.Store = "etcd" }},
		{"sqlite without path", func(cfg *Config) { cfg.SQLitePath = " " }},
		{"postgres without dsn", func(cfg *Config) {
			cfg.Store = StorePostgres
			cfg.PostgresDSN = ""
		}},
		{"no brokers", func(cfg *Config) { cfg.KafkaBrokers = nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate() = nil, want error")
			}
		})
	}
}
