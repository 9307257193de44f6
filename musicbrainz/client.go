// Package musicbrainz looks up MusicBrainz recording IDs, used to enrich the
// missing-tracks report with links.
package musicbrainz

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public MusicBrainz web service root.
const DefaultBaseURL = "https://musicbrainz.org"

// Client wraps the MusicBrainz API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// Recording represents a MusicBrainz recording
type Recording struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"title,attr"`
}

// Release represents a MusicBrainz release
type Release struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"title,attr"`
}

// Track represents a MusicBrainz track with recording and release info
type Track struct {
	Recording Recording `xml:"recording"`
	Release   Release   `xml:"release"`
}

// SearchResponse represents the response from MusicBrainz search API
type SearchResponse struct {
	TrackList struct {
		Tracks []Track `xml:"track"`
	} `xml:"track-list"`
}

// ISRCResponse represents the response from MusicBrainz ISRC API
type ISRCResponse struct {
	ISRC struct {
		RecordingList struct {
			Recordings []Recording `xml:"recording"`
		} `xml:"recording-list"`
	} `xml:"isrc"`
}

// NewClient creates a new MusicBrainz client
func NewClient() *Client {
	return NewClientWithBaseURL(DefaultBaseURL)
}

// NewClientWithBaseURL creates a client against a specific API root; tests
// point this at a local server.
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   baseURL,
		userAgent: "plexm3u/1.0 (https://github.com/garry/plexm3u)",
	}
}

// GetMusicBrainzIDByISRC searches for a track by ISRC and returns the MusicBrainz recording ID
func (c *Client) GetMusicBrainzIDByISRC(ctx context.Context, isrc string) (string, error) {
	if isrc == "" {
		return "", fmt.Errorf("ISRC cannot be empty")
	}

	params := url.Values{}
	params.Add("fmt", "xml")

	// The ISRC goes in the path
	reqURL := c.baseURL + "/ws/2/isrc/" + isrc + "?" + params.Encode()

	var isrcResp ISRCResponse
	if err := c.get(ctx, reqURL, &isrcResp); err != nil {
		return "", err
	}

	if len(isrcResp.ISRC.RecordingList.Recordings) == 0 {
		return "", fmt.Errorf("no recordings found for ISRC: %s", isrc)
	}

	// Return the first recording's ID
	return isrcResp.ISRC.RecordingList.Recordings[0].ID, nil
}

// GetMusicBrainzIDByArtistAndTitle searches for a track by artist and title
func (c *Client) GetMusicBrainzIDByArtistAndTitle(ctx context.Context, artist, title string) (string, error) {
	if artist == "" || title == "" {
		return "", fmt.Errorf("artist and title cannot be empty")
	}

	query := fmt.Sprintf("artist:\"%s\" AND recording:\"%s\"",
		strings.ReplaceAll(artist, "\"", "\\\""),
		strings.ReplaceAll(title, "\"", "\\\""))

	params := url.Values{}
	params.Add("query", query)
	params.Add("fmt", "xml")

	reqURL := c.baseURL + "/ws/2/recording/?" + params.Encode()

	var searchResp SearchResponse
	if err := c.get(ctx, reqURL, &searchResp); err != nil {
		return "", err
	}

	if len(searchResp.TrackList.Tracks) == 0 {
		return "", fmt.Errorf("no tracks found for artist: %s, title: %s", artist, title)
	}

	// Return the first track's recording ID
	return searchResp.TrackList.Tracks[0].Recording.ID, nil
}

// get performs a MusicBrainz API request with the required headers and
// decodes the XML response.
func (c *Client) get(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// MusicBrainz requires an identifying User-Agent
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("MusicBrainz API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode XML response: %w", err)
	}

	return nil
}
