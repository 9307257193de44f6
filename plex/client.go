// Package plex is an HTTP client for the Plex Media Server API, covering the
// catalog enumeration (sections, artists, albums, tracks) the library index
// is built from, and the playlist operations the importer performs.
package plex

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/garry/plexm3u/config"
)

// Constants for Plex API
const (
	// Section type for music libraries
	MusicSectionType = "artist"

	// Metadata type filter for artist listings
	PlexArtistType = "8"

	// HTTP timeouts
	DefaultHTTPTimeout = 30 * time.Second

	// HTTP status codes
	StatusOK        = http.StatusOK
	StatusCreated   = http.StatusCreated
	StatusNoContent = http.StatusNoContent
)

// Client wraps the Plex API client
type Client struct {
	baseURL    string
	token      string
	sectionID  int
	serverID   string
	httpClient *http.Client
	debug      bool
}

// Section represents a library section from Plex
type Section struct {
	Key   int    `xml:"key,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

// Artist represents an artist entry in a music section
type Artist struct {
	RatingKey string `xml:"ratingKey,attr"`
	Name      string `xml:"title,attr"`
}

// Album represents an album belonging to an artist
type Album struct {
	RatingKey string `xml:"ratingKey,attr"`
	Title     string `xml:"title,attr"`
	Year      int    `xml:"year,attr"`
}

// PlexTrack represents a track from Plex
type PlexTrack struct {
	ID        string `xml:"ratingKey,attr"`
	Title     string `xml:"title,attr"`
	Artist    string `xml:"grandparentTitle,attr"`
	Album     string `xml:"parentTitle,attr"`
	Duration  int    `xml:"duration,attr"`
	AddedAt   string `xml:"addedAt,attr"`
	UpdatedAt string `xml:"updatedAt,attr"`
	File      string `xml:"file,attr"`
}

// PlexPlaylist represents a Plex playlist
type PlexPlaylist struct {
	ID          string `xml:"ratingKey,attr" json:"ratingKey"`
	Title       string `xml:"title,attr" json:"title"`
	Description string `xml:"summary,attr" json:"summary"`
	TrackCount  int    `xml:"leafCount,attr" json:"leafCount"`
	CreatedAt   string `xml:"createdAt,attr" json:"createdAt"`
	UpdatedAt   string `xml:"updatedAt,attr" json:"updatedAt"`
}

// PlexPlaylistJSON is used for JSON responses where timestamps are numbers
type PlexPlaylistJSON struct {
	ID          string      `json:"ratingKey"`
	Title       string      `json:"title"`
	Description string      `json:"summary"`
	TrackCount  int         `json:"leafCount"`
	CreatedAt   interface{} `json:"createdAt"` // Can be string or number
	UpdatedAt   interface{} `json:"updatedAt"` // Can be string or number
}

// PlexResponse represents the XML response from Plex API
type PlexResponse struct {
	XMLName   xml.Name       `xml:"MediaContainer"`
	Sections  []Section      `xml:"Directory"`
	Tracks    []PlexTrack    `xml:"Track"`
	Playlists []PlexPlaylist `xml:"Playlist"`
}

// artistsResponse and albumsResponse decode the Directory entries of artist
// and album listings, which share their element name with sections.
type artistsResponse struct {
	XMLName xml.Name `xml:"MediaContainer"`
	Artists []Artist `xml:"Directory"`
}

type albumsResponse struct {
	XMLName xml.Name `xml:"MediaContainer"`
	Albums  []Album  `xml:"Directory"`
}

// PlexServerInfo represents server information from Plex API
type PlexServerInfo struct {
	XMLName           xml.Name `xml:"MediaContainer"`
	FriendlyName      string   `xml:"friendlyName,attr"`
	MachineIdentifier string   `xml:"machineIdentifier,attr"`
	Version           string   `xml:"version,attr"`
	Platform          string   `xml:"platform,attr"`
	PlatformVersion   string   `xml:"platformVersion,attr"`
}

// NewClient creates a new Plex client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.Plex.URL,
		token:      cfg.Plex.Token,
		sectionID:  cfg.Plex.LibrarySectionID,
		serverID:   cfg.Plex.ServerID,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		debug:      false,
	}
}

// NewClientWithTLSConfig creates a new Plex client with custom TLS configuration
func NewClientWithTLSConfig(cfg *config.Config, skipTLSVerify bool) *Client {
	httpClient := &http.Client{Timeout: DefaultHTTPTimeout}

	if skipTLSVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		baseURL:    cfg.Plex.URL,
		token:      cfg.Plex.Token,
		sectionID:  cfg.Plex.LibrarySectionID,
		serverID:   cfg.Plex.ServerID,
		httpClient: httpClient,
		debug:      false,
	}
}

// SetServerID updates the server ID in the client
func (c *Client) SetServerID(serverID string) {
	c.serverID = serverID
}

// SetDebug enables or disables debug mode
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// getXML performs a GET request against the Plex API and decodes the XML
// response into out.
func (c *Client) getXML(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("X-Plex-Token", c.token)

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}

	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request for %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("plex API returned status %d for %s", resp.StatusCode, path)
	}

	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", path, err)
	}

	return nil
}

// GetServerInfo retrieves server information from the Plex API
func (c *Client) GetServerInfo(ctx context.Context) (*PlexServerInfo, error) {
	var serverInfo PlexServerInfo
	if err := c.getXML(ctx, "/", nil, &serverInfo); err != nil {
		return nil, fmt.Errorf("failed to get server info: %w", err)
	}
	return &serverInfo, nil
}

// GetServerID retrieves the server ID (machine identifier) from the Plex API
func (c *Client) GetServerID(ctx context.Context) (string, error) {
	serverInfo, err := c.GetServerInfo(ctx)
	if err != nil {
		return "", err
	}

	if serverInfo.MachineIdentifier == "" {
		return "", fmt.Errorf("server info response does not contain machine identifier")
	}

	return serverInfo.MachineIdentifier, nil
}

// GetMusicSections lists the music-type library sections of the server
func (c *Client) GetMusicSections(ctx context.Context) ([]Section, error) {
	var resp PlexResponse
	if err := c.getXML(ctx, "/library/sections", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list library sections: %w", err)
	}

	var sections []Section
	for _, section := range resp.Sections {
		if section.Type == MusicSectionType {
			sections = append(sections, section)
		}
	}

	c.debugLog("GetMusicSections: %d of %d sections are music libraries", len(sections), len(resp.Sections))
	return sections, nil
}

// GetArtists enumerates every artist of a music section
func (c *Client) GetArtists(ctx context.Context, sectionKey int) ([]Artist, error) {
	params := url.Values{}
	params.Set("type", PlexArtistType)

	var resp artistsResponse
	path := fmt.Sprintf("/library/sections/%d/all", sectionKey)
	if err := c.getXML(ctx, path, params, &resp); err != nil {
		return nil, fmt.Errorf("failed to list artists for section %d: %w", sectionKey, err)
	}

	c.debugLog("GetArtists: section %d has %d artists", sectionKey, len(resp.Artists))
	return resp.Artists, nil
}

// GetAlbums enumerates the albums of an artist
func (c *Client) GetAlbums(ctx context.Context, artistKey string) ([]Album, error) {
	var resp albumsResponse
	path := fmt.Sprintf("/library/metadata/%s/children", artistKey)
	if err := c.getXML(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list albums for artist %s: %w", artistKey, err)
	}

	return resp.Albums, nil
}

// GetTracks enumerates the tracks of an album
func (c *Client) GetTracks(ctx context.Context, albumKey string) ([]PlexTrack, error) {
	var resp PlexResponse
	path := fmt.Sprintf("/library/metadata/%s/children", albumKey)
	if err := c.getXML(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list tracks for album %s: %w", albumKey, err)
	}

	return resp.Tracks, nil
}

// GetPlaylists retrieves all playlists from the Plex server
func (c *Client) GetPlaylists(ctx context.Context) ([]PlexPlaylist, error) {
	var resp PlexResponse
	if err := c.getXML(ctx, "/playlists", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	return resp.Playlists, nil
}

// GetPlaylistItems retrieves the tracks currently on a playlist
func (c *Client) GetPlaylistItems(ctx context.Context, playlistID string) ([]PlexTrack, error) {
	var resp PlexResponse
	path := fmt.Sprintf("/playlists/%s/items", playlistID)
	if err := c.getXML(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list playlist items: %w", err)
	}

	return resp.Tracks, nil
}

// trackURI builds the server URI for one or more library metadata IDs
func (c *Client) trackURI(trackIDs []string) string {
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s",
		c.serverID, strings.Join(trackIDs, ","))
}

// CreatePlaylist creates a new audio playlist containing the given tracks
func (c *Client) CreatePlaylist(ctx context.Context, title string, trackIDs []string) (*PlexPlaylist, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("cannot create playlist %q with no tracks", title)
	}

	reqURL := fmt.Sprintf("%s/playlists", c.baseURL)

	params := url.Values{}
	params.Add("type", "audio")
	params.Add("title", title)
	params.Add("smart", "0")
	params.Add("uri", c.trackURI(trackIDs))
	params.Add("X-Plex-Token", c.token)

	// Create request with empty body (matching Plex Web behavior)
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist request: %w", err)
	}

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("X-Plex-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make playlist creation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != StatusOK && resp.StatusCode != StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("plex playlist creation API returned status %d: %s", resp.StatusCode, string(body))
	}

	var playlistResp struct {
		MediaContainer struct {
			Metadata []PlexPlaylistJSON `json:"Metadata"`
		} `json:"MediaContainer"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&playlistResp); err != nil {
		return nil, fmt.Errorf("failed to decode playlist creation response: %w", err)
	}

	if len(playlistResp.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("no playlist returned from creation request")
	}

	jsonPlaylist := playlistResp.MediaContainer.Metadata[0]
	createdPlaylist := &PlexPlaylist{
		ID:          jsonPlaylist.ID,
		Title:       jsonPlaylist.Title,
		Description: jsonPlaylist.Description,
		TrackCount:  jsonPlaylist.TrackCount,
		CreatedAt:   fmt.Sprintf("%v", jsonPlaylist.CreatedAt),
		UpdatedAt:   fmt.Sprintf("%v", jsonPlaylist.UpdatedAt),
	}

	log.Printf("Successfully created playlist: %s (ID: %s)", createdPlaylist.Title, createdPlaylist.ID)

	return createdPlaylist, nil
}

// DeletePlaylist removes a playlist from the server
func (c *Client) DeletePlaylist(ctx context.Context, playlistID string) error {
	reqURL := fmt.Sprintf("%s/playlists/%s", c.baseURL, playlistID)
	params := url.Values{}
	params.Add("X-Plex-Token", c.token)

	req, err := http.NewRequestWithContext(ctx, "DELETE", reqURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create playlist delete request: %w", err)
	}

	req.Header.Set("Accept", "application/xml")
	req.Header.Set("X-Plex-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make playlist delete request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != StatusOK && resp.StatusCode != StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("plex playlist delete API returned status %d: %s", resp.StatusCode, string(body))
	}

	log.Printf("Successfully deleted playlist: %s", playlistID)
	return nil
}

// AddTracksToPlaylist adds tracks to an existing playlist
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	log.Printf("Adding %d tracks to playlist %s", len(trackIDs), playlistID)

	// Add tracks one by one using the correct Plex API format
	successCount := 0
	for _, trackID := range trackIDs {
		reqURL := fmt.Sprintf("%s/playlists/%s/items", c.baseURL, playlistID)
		params := url.Values{}
		params.Add("X-Plex-Token", c.token)
		params.Add("uri", c.trackURI([]string{trackID}))

		req, err := http.NewRequestWithContext(ctx, "PUT", reqURL+"?"+params.Encode(), nil)
		if err != nil {
			log.Printf("Failed to create request for track %s: %v", trackID, err)
			continue
		}

		req.Header.Set("Accept", "application/xml")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			log.Printf("Failed to make request for track %s: %v", trackID, err)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != StatusOK {
			c.debugLog("Plex API returned status %d for track %s: %s", resp.StatusCode, trackID, string(body))
			continue
		}

		if strings.Contains(string(body), `leafCountAdded="0"`) {
			c.debugLog("Warning: track %s was not added (leafCountAdded=0)", trackID)
			continue
		}

		successCount++
	}

	if successCount == 0 {
		return fmt.Errorf("failed to add any tracks to playlist - check that playlist modifications are enabled on your Plex server and that your token has write permissions")
	}

	c.debugLog("Successfully processed %d/%d tracks for playlist %s", successCount, len(trackIDs), playlistID)
	return nil
}

// debugLog logs a message only if debug mode is enabled
func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		log.Printf(format, args...)
	}
}
