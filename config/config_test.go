package config

import (
	"testing"
	"time"
)

func TestParseFlagsDefaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "s3cret")

	cfg, err := ParseFlags(nil)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Addr != "0.0.0.0:80" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.DBDriver != DriverSQLite {
		t.Errorf("DBDriver = %q", cfg.DBDriver)
	}
	if cfg.AccessTTL != 120*time.Second {
		t.Errorf("AccessTTL = %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 8760*time.Hour {
		t.Errorf("RefreshTTL = %v", cfg.RefreshTTL)
	}
	if cfg.Url() != "http://localhost:80" {
		t.Errorf("Url() = %q", cfg.Url())
	}
}

func TestParseFlagsOverridesEnv(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "from-env")
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "postgres")

	cfg, err := ParseFlags([]string{"-port", "8080", "-token-secret", "from-flag", "-debug"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Addr != "0.0.0.0:8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.TokenSecret != "from-flag" {
		t.Errorf("TokenSecret = %q", cfg.TokenSecret)
	}
	if cfg.DBDriver != DriverPostgres {
		t.Errorf("DBDriver = %q", cfg.DBDriver)
	}
	if !cfg.Debug {
		t.Error("Debug not set")
	}
}

func TestParseFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"missing secret", nil, nil},
		{"bad driver", map[string]string{"TOKEN_SECRET": "x"}, []string{"-db-driver", "mysql"}},
		{"bad port env", map[string]string{"TOKEN_SECRET": "x", "PORT": "eighty"}, nil},
		{"bootstrap without password", map[string]string{"TOKEN_SECRET": "x"}, []string{"-bootstrap-email", "root@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TOKEN_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := ParseFlags(tt.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
