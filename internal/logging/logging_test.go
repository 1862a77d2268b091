package logging

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"console debug", Config{Level: "DEBUG", Format: "console"}, false},
		{"json warn", Config{Level: "warn", Format: "json"}, false},
		{"bad level", Config{Level: "loud"}, true},
		{"bad format", Config{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if logger != nil {
				Sync(logger)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TRACESCOPE_LOG_LEVEL", "debug")
	t.Setenv("TRACESCOPE_LOG_FORMAT", "console")

	cfg := FromEnv()
	if cfg.Level != "debug" || cfg.Format != "console" {
		t.Errorf("unexpected config %+v", cfg)
	}
}
