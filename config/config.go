package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Default values applied before any other configuration source
const (
	DefaultPlexURL        = "http://localhost:32400"
	DefaultMatchThreshold = 0.55
)

// DefaultRelaxedArtists are the artists whose featured-credit naming is
// inconsistent enough that matching uses the relaxed threshold.
var DefaultRelaxedArtists = []string{"calvin harris", "cobra starship", "kelly clarkson"}

// Config holds all configuration values
type Config struct {
	Plex     PlexConfig
	Spotify  SpotifyConfig
	Matching MatchingConfig
}

// PlexConfig holds Plex server configuration
type PlexConfig struct {
	URL              string
	Token            string
	LibrarySectionID int // 0 means the first music section is used
	ServerID         string
}

// SpotifyConfig holds Spotify API configuration, only required when a
// Spotify playlist is used as the source.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// MatchingConfig holds the fuzzy-matching tunables
type MatchingConfig struct {
	Threshold      float64
	RelaxedArtists []string // lowercased artist names
}

// Load loads configuration following the specified order:
// 1. Start with default values
// 2. Load from OS environment variables (only if they exist)
// 3. Load from .env file (only if it exists and values exist)
func Load() (*Config, error) {
	return LoadWithOverrides(nil)
}

// LoadWithOverrides loads configuration and applies CLI flag overrides as
// the final step. Validation runs after all sources have been merged.
func LoadWithOverrides(overrides map[string]string) (*Config, error) {
	config := &Config{}

	// Step 1: Initialize with default values
	config.initializeDefaults()

	// Step 2: Load from OS environment variables (only if they exist)
	config.loadFromEnv()

	// Step 3: Load from .env file (only if it exists and values exist)
	if err := godotenv.Load(); err == nil {
		config.loadFromEnv()
	}

	// Step 4: Apply CLI flag overrides (only if they exist)
	config.applyOverrides(overrides)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// initializeDefaults sets up the initial configuration with default values
func (c *Config) initializeDefaults() {
	c.Plex = PlexConfig{
		URL:              DefaultPlexURL,
		Token:            "", // Empty by default
		LibrarySectionID: 0,  // First music section
		ServerID:         "", // Empty by default (will be auto-discovered)
	}

	c.Spotify = SpotifyConfig{
		ClientID:     "",
		ClientSecret: "",
		RedirectURI:  "http://localhost:8080/callback",
	}

	c.Matching = MatchingConfig{
		Threshold:      DefaultMatchThreshold,
		RelaxedArtists: DefaultRelaxedArtists,
	}
}

// loadFromEnv loads configuration from environment variables, replacing
// only the values that are present and non-empty.
func (c *Config) loadFromEnv() {
	// Plex configuration
	if value := os.Getenv("PLEX_URL"); value != "" {
		c.Plex.URL = value
	}
	if value := os.Getenv("PLEX_TOKEN"); value != "" {
		c.Plex.Token = value
	}
	if value := os.Getenv("PLEX_LIBRARY_SECTION_ID"); value != "" {
		if sectionID, err := parseLibrarySectionID(value); err == nil {
			c.Plex.LibrarySectionID = sectionID
		}
	}
	if value := os.Getenv("PLEX_SERVER_ID"); value != "" {
		c.Plex.ServerID = value
	}

	// Spotify configuration
	if value := os.Getenv("SPOTIFY_CLIENT_ID"); value != "" {
		c.Spotify.ClientID = value
	}
	if value := os.Getenv("SPOTIFY_CLIENT_SECRET"); value != "" {
		c.Spotify.ClientSecret = value
	}
	if value := os.Getenv("SPOTIFY_REDIRECT_URI"); value != "" {
		c.Spotify.RedirectURI = value
	}

	// Matching configuration
	if value := os.Getenv("MATCH_THRESHOLD"); value != "" {
		if threshold, err := parseThreshold(value); err == nil {
			c.Matching.Threshold = threshold
		}
	}
	if value := os.Getenv("MATCH_RELAXED_ARTISTS"); value != "" {
		c.Matching.RelaxedArtists = parseArtistList(value)
	}
}

// applyOverrides applies CLI flag overrides to the configuration (only if they exist)
func (c *Config) applyOverrides(overrides map[string]string) {
	for key, value := range overrides {
		// Only apply if the value is not empty
		if value == "" {
			continue
		}

		switch key {
		case "PLEX_URL":
			c.Plex.URL = value
		case "PLEX_TOKEN":
			c.Plex.Token = value
		case "PLEX_LIBRARY_SECTION_ID":
			if sectionID, err := parseLibrarySectionID(value); err == nil {
				c.Plex.LibrarySectionID = sectionID
			}
		case "PLEX_SERVER_ID":
			c.Plex.ServerID = value
		case "SPOTIFY_CLIENT_ID":
			c.Spotify.ClientID = value
		case "SPOTIFY_CLIENT_SECRET":
			c.Spotify.ClientSecret = value
		case "SPOTIFY_REDIRECT_URI":
			c.Spotify.RedirectURI = value
		case "MATCH_THRESHOLD":
			if threshold, err := parseThreshold(value); err == nil {
				c.Matching.Threshold = threshold
			}
		case "MATCH_RELAXED_ARTISTS":
			c.Matching.RelaxedArtists = parseArtistList(value)
		}
	}
}

// parseArtistList parses a comma-separated artist list into lowercased,
// trimmed names.
func parseArtistList(input string) []string {
	if input == "" {
		return nil
	}

	items := strings.Split(input, ",")
	artists := items[:0]
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			artists = append(artists, item)
		}
	}

	return artists
}

// parseLibrarySectionID parses the library section ID from string
func parseLibrarySectionID(value string) (int, error) {
	if value == "0" || value == "your_music_library_section_id" {
		return 0, nil
	}

	sectionID, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid section ID '%s': %w", value, err)
	}

	return sectionID, nil
}

// parseThreshold parses the match threshold and checks its range
func parseThreshold(value string) (float64, error) {
	threshold, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold '%s': %w", value, err)
	}
	if threshold < 0 || threshold > 1 {
		return 0, fmt.Errorf("threshold %f out of range [0, 1]", threshold)
	}
	return threshold, nil
}

// validate checks that all required configuration values are present
func (c *Config) validate() error {
	var missingFields []string

	if c.Plex.URL == "" {
		missingFields = append(missingFields, "PLEX_URL")
	}
	if c.Plex.Token == "" {
		missingFields = append(missingFields, "PLEX_TOKEN")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration values:\n%s\n\nSet these values via environment variables, .env file, or CLI flags", strings.Join(missingFields, "\n"))
	}

	if c.Matching.Threshold < 0 || c.Matching.Threshold > 1 {
		return fmt.Errorf("match threshold %f out of range [0, 1]", c.Matching.Threshold)
	}

	return nil
}

// ValidateSpotify checks the extra fields required when reading a playlist
// from Spotify.
func (c *Config) ValidateSpotify() error {
	var missingFields []string

	if c.Spotify.ClientID == "" {
		missingFields = append(missingFields, "SPOTIFY_CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		missingFields = append(missingFields, "SPOTIFY_CLIENT_SECRET")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration values for Spotify sources:\n%s", strings.Join(missingFields, "\n"))
	}

	return nil
}
