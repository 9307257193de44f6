// Package spotify reads the contents of a Spotify playlist so it can be
// imported like a local playlist file.
package spotify

import (
	"context"
	"fmt"

	"github.com/garry/plexm3u/config"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Client wraps the Spotify API client
type Client struct {
	client *spotify.Client
	config *config.Config
}

// Song represents a track from a Spotify playlist
type Song struct {
	ID       string
	Name     string
	Artist   string
	Album    string
	Duration int
	URI      string
	ISRC     string
}

// NewClient creates a new Spotify client with authentication
func NewClient(cfg *config.Config) (*Client, error) {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(cfg.Spotify.RedirectURI),
		spotifyauth.WithClientID(cfg.Spotify.ClientID),
		spotifyauth.WithClientSecret(cfg.Spotify.ClientSecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistReadCollaborative,
		),
	)

	// Client credentials flow: no user interaction, enough for reading
	// public playlists from a CLI.
	ctx := context.Background()

	token, err := auth.Exchange(ctx, "", oauth2.SetAuthURLParam("grant_type", "client_credentials"))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	client := spotify.New(httpClient)

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// GetPlaylistInfo returns basic information about a playlist
func (c *Client) GetPlaylistInfo(ctx context.Context, playlistID string) (*spotify.FullPlaylist, error) {
	playlist, err := c.client.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist info: %w", err)
	}

	return playlist, nil
}

// GetPlaylistSongs fetches all songs from a Spotify playlist
func (c *Client) GetPlaylistSongs(ctx context.Context, playlistID string) ([]Song, error) {
	// Validate playlist exists
	if _, err := c.client.GetPlaylist(ctx, spotify.ID(playlistID)); err != nil {
		return nil, fmt.Errorf("playlist not found or not accessible: %w", err)
	}

	var songs []Song
	page := 1

	// Iterate through all tracks in the playlist
	for {
		playlistTracks, err := c.client.GetPlaylistTracks(ctx, spotify.ID(playlistID), spotify.Offset((page-1)*100), spotify.Limit(100))
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist tracks (page %d): %w", page, err)
		}

		for _, item := range playlistTracks.Tracks {
			songs = append(songs, convertTrackToSong(item.Track))
		}

		// Check if we've processed all tracks
		if len(playlistTracks.Tracks) < 100 {
			break
		}
		page++
	}

	return songs, nil
}

// convertTrackToSong converts a Spotify track to our Song struct
func convertTrackToSong(track spotify.FullTrack) Song {
	// Get artist name (handle multiple artists)
	artist := ""
	if len(track.Artists) > 0 {
		artist = track.Artists[0].Name
	}

	return Song{
		ID:       string(track.ID),
		Name:     track.Name,
		Artist:   artist,
		Album:    track.Album.Name,
		Duration: track.Duration,
		URI:      string(track.URI),
		ISRC:     track.ExternalIDs["isrc"],
	}
}
