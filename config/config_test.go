package config

import (
	"os"
	"strings"
	"testing"
)

func TestConfigValidation(t *testing.T) {
	// Test that validation fails when required fields are missing
	cfg := &Config{}

	err := cfg.validate()
	if err == nil {
		t.Error("Expected validation to fail with empty config")
	}

	// Check that error message includes helpful information
	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "PLEX_URL") {
		t.Error("Expected error message to mention PLEX_URL")
	}
	if !strings.Contains(errorMsg, "PLEX_TOKEN") {
		t.Error("Expected error message to mention PLEX_TOKEN")
	}

	// Test valid configuration
	cfg = &Config{
		Plex: PlexConfig{
			URL:   "http://test.plex.server:32400",
			Token: "test_token",
		},
		Matching: MatchingConfig{
			Threshold: 0.55,
		},
	}

	err = cfg.validate()
	if err != nil {
		t.Errorf("Expected no validation error, got %v", err)
	}

	// Test missing Plex Token
	cfg.Plex.Token = ""
	err = cfg.validate()
	if err == nil {
		t.Error("Expected validation error for missing Plex Token")
	}

	// Test out-of-range threshold
	cfg.Plex.Token = "test_token"
	cfg.Matching.Threshold = 1.5
	err = cfg.validate()
	if err == nil {
		t.Error("Expected validation error for threshold above 1")
	}
}

func TestValidateSpotify(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateSpotify(); err == nil {
		t.Error("Expected Spotify validation to fail without credentials")
	}

	cfg.Spotify.ClientID = "test_client_id"
	if err := cfg.ValidateSpotify(); err == nil {
		t.Error("Expected Spotify validation to fail without client secret")
	}

	cfg.Spotify.ClientSecret = "test_client_secret"
	if err := cfg.ValidateSpotify(); err != nil {
		t.Errorf("Expected no Spotify validation error, got %v", err)
	}
}

func TestInitializeDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.initializeDefaults()

	if cfg.Plex.URL != DefaultPlexURL {
		t.Errorf("Expected default Plex URL %q, got %q", DefaultPlexURL, cfg.Plex.URL)
	}
	if cfg.Matching.Threshold != DefaultMatchThreshold {
		t.Errorf("Expected default threshold %f, got %f", DefaultMatchThreshold, cfg.Matching.Threshold)
	}
	if len(cfg.Matching.RelaxedArtists) != 3 {
		t.Errorf("Expected 3 default relaxed artists, got %v", cfg.Matching.RelaxedArtists)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PLEX_URL", "http://env.plex.server:32400")
	t.Setenv("PLEX_TOKEN", "env_token")
	t.Setenv("PLEX_LIBRARY_SECTION_ID", "7")
	t.Setenv("MATCH_THRESHOLD", "0.75")
	t.Setenv("MATCH_RELAXED_ARTISTS", "Some Artist, OTHER ARTIST")

	cfg := &Config{}
	cfg.initializeDefaults()
	cfg.loadFromEnv()

	if cfg.Plex.URL != "http://env.plex.server:32400" {
		t.Errorf("Expected Plex URL from env, got %q", cfg.Plex.URL)
	}
	if cfg.Plex.Token != "env_token" {
		t.Errorf("Expected Plex token from env, got %q", cfg.Plex.Token)
	}
	if cfg.Plex.LibrarySectionID != 7 {
		t.Errorf("Expected section ID 7, got %d", cfg.Plex.LibrarySectionID)
	}
	if cfg.Matching.Threshold != 0.75 {
		t.Errorf("Expected threshold 0.75, got %f", cfg.Matching.Threshold)
	}
	want := []string{"some artist", "other artist"}
	if len(cfg.Matching.RelaxedArtists) != len(want) {
		t.Fatalf("Expected %v, got %v", want, cfg.Matching.RelaxedArtists)
	}
	for i := range want {
		if cfg.Matching.RelaxedArtists[i] != want[i] {
			t.Errorf("Relaxed artist %d = %q, want %q", i, cfg.Matching.RelaxedArtists[i], want[i])
		}
	}
}

func TestEnvDoesNotClearDefaults(t *testing.T) {
	os.Unsetenv("PLEX_URL")
	os.Unsetenv("MATCH_THRESHOLD")

	cfg := &Config{}
	cfg.initializeDefaults()
	cfg.loadFromEnv()

	if cfg.Plex.URL != DefaultPlexURL {
		t.Errorf("Unset env var must not clear the default URL, got %q", cfg.Plex.URL)
	}
	if cfg.Matching.Threshold != DefaultMatchThreshold {
		t.Errorf("Unset env var must not clear the default threshold, got %f", cfg.Matching.Threshold)
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := &Config{}
	cfg.initializeDefaults()

	cfg.applyOverrides(map[string]string{
		"PLEX_URL":        "http://flag.plex.server:32400",
		"PLEX_TOKEN":      "flag_token",
		"MATCH_THRESHOLD": "0.9",
		"PLEX_SERVER_ID":  "", // empty values are ignored
	})

	if cfg.Plex.URL != "http://flag.plex.server:32400" {
		t.Errorf("Expected overridden URL, got %q", cfg.Plex.URL)
	}
	if cfg.Plex.Token != "flag_token" {
		t.Errorf("Expected overridden token, got %q", cfg.Plex.Token)
	}
	if cfg.Matching.Threshold != 0.9 {
		t.Errorf("Expected overridden threshold, got %f", cfg.Matching.Threshold)
	}
	if cfg.Plex.ServerID != "" {
		t.Errorf("Empty override must be ignored, got %q", cfg.Plex.ServerID)
	}
}

func TestParseArtistList(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"One Artist", []string{"one artist"}},
		{"A, B ,  C", []string{"a", "b", "c"}},
		{"Calvin Harris,,", []string{"calvin harris"}},
	}

	for _, tt := range tests {
		got := parseArtistList(tt.input)
		if len(got) != len(tt.expected) {
			t.Errorf("parseArtistList(%q) = %v, want %v", tt.input, got, tt.expected)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("parseArtistList(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.expected[i])
			}
		}
	}
}

func TestParseThreshold(t *testing.T) {
	if v, err := parseThreshold("0.55"); err != nil || v != 0.55 {
		t.Errorf("parseThreshold(0.55) = %f, %v", v, err)
	}
	if _, err := parseThreshold("1.5"); err == nil {
		t.Error("Expected error for threshold above 1")
	}
	if _, err := parseThreshold("-0.1"); err == nil {
		t.Error("Expected error for negative threshold")
	}
	if _, err := parseThreshold("not-a-number"); err == nil {
		t.Error("Expected error for non-numeric threshold")
	}
}

func TestParseLibrarySectionID(t *testing.T) {
	if v, err := parseLibrarySectionID("12"); err != nil || v != 12 {
		t.Errorf("parseLibrarySectionID(12) = %d, %v", v, err)
	}
	if v, err := parseLibrarySectionID("0"); err != nil || v != 0 {
		t.Errorf("parseLibrarySectionID(0) = %d, %v", v, err)
	}
	// Placeholder from a template .env file is treated as unset
	if v, err := parseLibrarySectionID("your_music_library_section_id"); err != nil || v != 0 {
		t.Errorf("parseLibrarySectionID(placeholder) = %d, %v", v, err)
	}
	if _, err := parseLibrarySectionID("abc"); err == nil {
		t.Error("Expected error for non-numeric section ID")
	}
}
