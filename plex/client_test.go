package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/garry/plexm3u/config"
)

func testConfig(url string) *config.Config {
	return &config.Config{
		Plex: config.PlexConfig{
			URL:              url,
			Token:            "test_token",
			LibrarySectionID: 1,
			ServerID:         "test_server_id",
		},
	}
}

func TestNewClient(t *testing.T) {
	cfg := testConfig("http://test.plex.server:32400")

	client := NewClient(cfg)
	if client == nil {
		t.Fatal("Expected client to be created, got nil")
	}

	if client.baseURL != cfg.Plex.URL {
		t.Errorf("Expected baseURL to be %s, got %s", cfg.Plex.URL, client.baseURL)
	}

	if client.token != cfg.Plex.Token {
		t.Errorf("Expected token to be %s, got %s", cfg.Plex.Token, client.token)
	}

	if client.sectionID != cfg.Plex.LibrarySectionID {
		t.Errorf("Expected sectionID to be %d, got %d", cfg.Plex.LibrarySectionID, client.sectionID)
	}
}

func TestGetServerID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("X-Plex-Token") != "test_token" {
			t.Error("Expected token query parameter")
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer friendlyName="Test Server" machineIdentifier="machine-123" version="1.32.0"/>`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	serverID, err := client.GetServerID(context.Background())
	if err != nil {
		t.Fatalf("GetServerID returned error: %v", err)
	}
	if serverID != "machine-123" {
		t.Errorf("Expected server ID 'machine-123', got %s", serverID)
	}
}

func TestGetMusicSections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/library/sections" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="3">
  <Directory key="1" type="movie" title="Films"/>
  <Directory key="2" type="artist" title="Music"/>
  <Directory key="3" type="artist" title="Audiobooks"/>
</MediaContainer>`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	sections, err := client.GetMusicSections(context.Background())
	if err != nil {
		t.Fatalf("GetMusicSections returned error: %v", err)
	}

	if len(sections) != 2 {
		t.Fatalf("Expected 2 music sections, got %d", len(sections))
	}
	if sections[0].Key != 2 || sections[0].Title != "Music" {
		t.Errorf("Unexpected first section: %+v", sections[0])
	}
}

func TestGetArtists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/library/sections/2/all" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("type") != PlexArtistType {
			t.Errorf("Expected type=%s, got %s", PlexArtistType, r.URL.Query().Get("type"))
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="2">
  <Directory ratingKey="100" title="The Rolling Stones"/>
  <Directory ratingKey="200" title="Oasis"/>
</MediaContainer>`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	artists, err := client.GetArtists(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetArtists returned error: %v", err)
	}

	if len(artists) != 2 {
		t.Fatalf("Expected 2 artists, got %d", len(artists))
	}
	if artists[0].RatingKey != "100" || artists[0].Name != "The Rolling Stones" {
		t.Errorf("Unexpected first artist: %+v", artists[0])
	}
}

func TestGetAlbumsAndTracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		switch r.URL.Path {
		case "/library/metadata/100/children":
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="1">
  <Directory ratingKey="101" title="Sticky Fingers" year="1971"/>
</MediaContainer>`)
		case "/library/metadata/101/children":
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="2">
  <Track ratingKey="1001" title="Brown Sugar" grandparentTitle="The Rolling Stones" parentTitle="Sticky Fingers" duration="228000"/>
  <Track ratingKey="1002" title="Wild Horses" grandparentTitle="The Rolling Stones" parentTitle="Sticky Fingers" duration="342000"/>
</MediaContainer>`)
		default:
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	ctx := context.Background()

	albums, err := client.GetAlbums(ctx, "100")
	if err != nil {
		t.Fatalf("GetAlbums returned error: %v", err)
	}
	if len(albums) != 1 || albums[0].Title != "Sticky Fingers" || albums[0].Year != 1971 {
		t.Fatalf("Unexpected albums: %+v", albums)
	}

	tracks, err := client.GetTracks(ctx, albums[0].RatingKey)
	if err != nil {
		t.Fatalf("GetTracks returned error: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("Expected 2 tracks, got %d", len(tracks))
	}
	if tracks[0].ID != "1001" || tracks[0].Title != "Brown Sugar" || tracks[0].Artist != "The Rolling Stones" {
		t.Errorf("Unexpected first track: %+v", tracks[0])
	}
}

func TestGetPlaylists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/playlists" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="1">
  <Playlist ratingKey="500" title="Road Trip" leafCount="12"/>
</MediaContainer>`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	playlists, err := client.GetPlaylists(context.Background())
	if err != nil {
		t.Fatalf("GetPlaylists returned error: %v", err)
	}

	if len(playlists) != 1 {
		t.Fatalf("Expected 1 playlist, got %d", len(playlists))
	}
	if playlists[0].ID != "500" || playlists[0].Title != "Road Trip" || playlists[0].TrackCount != 12 {
		t.Errorf("Unexpected playlist: %+v", playlists[0])
	}
}

func TestGetPlaylistItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/playlists/500/items" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="1">
  <Track ratingKey="1001" title="Brown Sugar" grandparentTitle="The Rolling Stones" parentTitle="Sticky Fingers"/>
</MediaContainer>`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	tracks, err := client.GetPlaylistItems(context.Background(), "500")
	if err != nil {
		t.Fatalf("GetPlaylistItems returned error: %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != "1001" {
		t.Errorf("Unexpected playlist items: %+v", tracks)
	}
}

func TestCreatePlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/playlists" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		uri := r.URL.Query().Get("uri")
		want := "server://test_server_id/com.plexapp.plugins.library/library/metadata/1001,1002"
		if uri != want {
			t.Errorf("Expected uri %q, got %q", want, uri)
		}
		if r.URL.Query().Get("type") != "audio" {
			t.Errorf("Expected type=audio, got %s", r.URL.Query().Get("type"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"MediaContainer":{"Metadata":[{"ratingKey":"600","title":"New Playlist","leafCount":2,"createdAt":1714000000}]}}`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	playlist, err := client.CreatePlaylist(context.Background(), "New Playlist", []string{"1001", "1002"})
	if err != nil {
		t.Fatalf("CreatePlaylist returned error: %v", err)
	}

	if playlist.ID != "600" || playlist.Title != "New Playlist" || playlist.TrackCount != 2 {
		t.Errorf("Unexpected created playlist: %+v", playlist)
	}
}

func TestCreatePlaylistEmpty(t *testing.T) {
	client := NewClient(testConfig("http://unused"))
	if _, err := client.CreatePlaylist(context.Background(), "Empty", nil); err == nil {
		t.Error("Expected error for empty track list")
	}
}

func TestDeletePlaylist(t *testing.T) {
	deleted := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" || r.URL.Path != "/playlists/500" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if err := client.DeletePlaylist(context.Background(), "500"); err != nil {
		t.Fatalf("DeletePlaylist returned error: %v", err)
	}
	if !deleted {
		t.Error("Expected the delete request to reach the server")
	}
}

func TestAddTracksToPlaylist(t *testing.T) {
	var uris []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" || r.URL.Path != "/playlists/500/items" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		uris = append(uris, r.URL.Query().Get("uri"))
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<MediaContainer leafCountAdded="1"/>`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if err := client.AddTracksToPlaylist(context.Background(), "500", []string{"1001", "1002"}); err != nil {
		t.Fatalf("AddTracksToPlaylist returned error: %v", err)
	}

	if len(uris) != 2 {
		t.Fatalf("Expected 2 item requests, got %d", len(uris))
	}
	if !strings.HasSuffix(uris[0], "/library/metadata/1001") {
		t.Errorf("Unexpected first uri: %s", uris[0])
	}
}

func TestAddTracksToPlaylistAllRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<MediaContainer leafCountAdded="0"/>`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if err := client.AddTracksToPlaylist(context.Background(), "500", []string{"1001"}); err == nil {
		t.Error("Expected error when the server adds no tracks")
	}
}

func TestAPIErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if _, err := client.GetMusicSections(context.Background()); err == nil {
		t.Error("Expected error for non-200 response")
	}
}
