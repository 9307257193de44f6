package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/garry/plexm3u/config"
	"github.com/garry/plexm3u/library"
	"github.com/garry/plexm3u/musicbrainz"
	"github.com/garry/plexm3u/playlist"
	"github.com/garry/plexm3u/plex"
	"github.com/garry/plexm3u/spotify"
)

// Version information - set during build
var version = "dev"

// Constants for display formatting
const (
	separatorLine          = "="
	separatorLength        = 80
	playlistSeparator      = "🎵"
	playlistSeparatorCount = 40
)

// Exit codes
const (
	exitCodeSuccess     = 0
	exitCodeUsageError  = 1
	exitCodeConfigError = 2
	exitCodeClientError = 3
)

// options holds the parsed command line flags
type options struct {
	file            string
	folder          string
	spotifyPlaylist string
	playlistName    string
	verbose         bool
	noCreate        bool
	assumeYes       bool
	debug           bool
}

// importStats tracks how one playlist import went
type importStats struct {
	Name    string
	Total   int
	Matched int
}

// Application represents the main application state
type Application struct {
	config            *config.Config
	plexClient        *plex.Client
	musicBrainzClient *musicbrainz.Client
	matcher           *library.Matcher
	opts              options
	stdin             io.Reader
	reader            *bufio.Reader
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config, opts options) *Application {
	plexClient := plex.NewClientWithTLSConfig(cfg, true)
	plexClient.SetDebug(opts.debug)

	matcher := &library.Matcher{
		Index:          library.NewIndex(plexClient, cfg.Plex.LibrarySectionID),
		Threshold:      cfg.Matching.Threshold,
		RelaxedArtists: cfg.Matching.RelaxedArtists,
		Verbose:        opts.verbose,
	}

	return &Application{
		config:            cfg,
		plexClient:        plexClient,
		musicBrainzClient: musicbrainz.NewClient(),
		matcher:           matcher,
		opts:              opts,
		stdin:             os.Stdin,
	}
}

// Run executes the main application logic
func (app *Application) Run(ctx context.Context) error {
	// Auto-discover server ID if not provided
	if err := app.discoverServerID(ctx); err != nil {
		log.Printf("⚠️  Warning: Failed to auto-discover server ID: %v", err)
		log.Printf("   If playlist creation fails, please set PLEX_SERVER_ID manually.")
	}

	switch {
	case app.opts.folder != "":
		return app.processFolder(ctx, app.opts.folder)
	case app.opts.spotifyPlaylist != "":
		return app.processSpotifyPlaylist(ctx, app.opts.spotifyPlaylist)
	default:
		_, err := app.processPlaylistFile(ctx, app.opts.file)
		return err
	}
}

// discoverServerID attempts to auto-discover the Plex server ID
func (app *Application) discoverServerID(ctx context.Context) error {
	if app.config.Plex.ServerID != "" {
		return nil // Already set
	}

	fmt.Println("🔍 Auto-discovering Plex server ID...")
	serverID, err := app.plexClient.GetServerID(ctx)
	if err != nil {
		return err
	}

	app.config.Plex.ServerID = serverID
	app.plexClient.SetServerID(serverID)
	fmt.Printf("✅ Discovered server ID: %s\n", serverID)
	return nil
}

// processPlaylistFile imports a single M3U8 file
func (app *Application) processPlaylistFile(ctx context.Context, path string) (importStats, error) {
	name := app.opts.playlistName
	if name == "" {
		name = playlistNameFromPath(path)
	}

	fmt.Printf("📋 Importing playlist: %s\n", path)
	fmt.Println(strings.Repeat(separatorLine, separatorLength))

	refs, err := playlist.ParseFile(path)
	if err != nil {
		return importStats{Name: name}, err
	}

	return app.importPlaylist(ctx, name, refs, nil)
}

// processFolder imports every playlist file found in a folder
func (app *Application) processFolder(ctx context.Context, folder string) error {
	var files []string
	for _, pattern := range []string{"*.m3u8", "*.m3u"} {
		matches, err := filepath.Glob(filepath.Join(folder, pattern))
		if err != nil {
			return fmt.Errorf("failed to scan folder %s: %w", folder, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	if len(files) == 0 {
		return fmt.Errorf("no playlist files found in %s", folder)
	}

	fmt.Printf("🎵 Found %d playlist file(s) in %s\n\n", len(files), folder)

	var allStats []importStats
	for i, file := range files {
		// The -playlist-name flag only makes sense for a single file
		app.opts.playlistName = ""

		stats, err := app.processPlaylistFile(ctx, file)
		if err != nil {
			log.Printf("❌ Failed to process %s: %v", file, err)
		} else {
			allStats = append(allStats, stats)
		}

		if i < len(files)-1 {
			fmt.Println("\n" + strings.Repeat(playlistSeparator, playlistSeparatorCount))
			fmt.Println()
		}
	}

	app.displayFolderSummary(allStats)
	return nil
}

// displayFolderSummary prints the per-playlist and overall match totals
func (app *Application) displayFolderSummary(allStats []importStats) {
	fmt.Println("\n" + strings.Repeat(separatorLine, separatorLength))
	fmt.Println("OVERALL SUMMARY")
	fmt.Println(strings.Repeat(separatorLine, separatorLength))

	var total, matched int
	for _, stats := range allStats {
		total += stats.Total
		matched += stats.Matched
		fmt.Printf("  %s: %d/%d matched (%.1f%%)\n", stats.Name, stats.Matched, stats.Total, percentage(stats.Matched, stats.Total))
	}

	fmt.Printf("\nAll playlists: %d/%d tracks matched (%.1f%%)\n", matched, total, percentage(matched, total))
	fmt.Println("\n🎉 All playlists processed!")
}

// processSpotifyPlaylist imports the contents of a Spotify playlist
func (app *Application) processSpotifyPlaylist(ctx context.Context, playlistID string) error {
	if err := app.config.ValidateSpotify(); err != nil {
		return err
	}

	spotifyClient, err := spotify.NewClient(app.config)
	if err != nil {
		return fmt.Errorf("failed to create Spotify client: %w", err)
	}

	info, err := spotifyClient.GetPlaylistInfo(ctx, playlistID)
	if err != nil {
		return err
	}

	songs, err := spotifyClient.GetPlaylistSongs(ctx, playlistID)
	if err != nil {
		return err
	}

	name := app.opts.playlistName
	if name == "" {
		name = info.Name
	}

	fmt.Printf("📋 Importing Spotify playlist: %s (%d tracks)\n", info.Name, len(songs))
	fmt.Println(strings.Repeat(separatorLine, separatorLength))

	// Keep the ISRCs on the side: they give the MusicBrainz lookup a much
	// better hit rate than artist/title search.
	refs := make([]playlist.TrackReference, 0, len(songs))
	isrcByPath := make(map[string]string)
	for _, song := range songs {
		ref := playlist.TrackReference{
			Artist: song.Artist,
			Title:  song.Name,
			Album:  song.Album,
			Path:   "spotify:track:" + song.ID,
		}
		refs = append(refs, ref)
		if song.ISRC != "" {
			isrcByPath[ref.Path] = song.ISRC
		}
	}

	_, err = app.importPlaylist(ctx, name, refs, isrcByPath)
	return err
}

// importPlaylist matches the references against the library, reports the
// results, and creates or updates the Plex playlist.
func (app *Application) importPlaylist(ctx context.Context, name string, refs []playlist.TrackReference, isrcByPath map[string]string) (importStats, error) {
	stats := importStats{Name: name, Total: len(refs)}

	if len(refs) == 0 {
		fmt.Println("❌ Playlist contains no usable tracks")
		return stats, nil
	}

	fmt.Println("\nMATCHING TRACKS TO PLEX LIBRARY")
	fmt.Println(strings.Repeat(separatorLine, separatorLength))

	var trackIDs []string
	var missing []playlist.MissingTrack

	for i, ref := range refs {
		track, err := app.matcher.MatchTrack(ctx, ref)
		if err != nil {
			return stats, fmt.Errorf("matching failed: %w", err)
		}

		if track != nil {
			trackIDs = append(trackIDs, track.ID)
			fmt.Printf("%3d. %s - %s: ✅ %s - %s\n", i+1, ref.Artist, ref.Title, track.Artist, track.Title)
		} else {
			missing = append(missing, playlist.MissingTrack{Ref: ref})
			fmt.Printf("%3d. %s - %s: ❌ No match\n", i+1, ref.Artist, ref.Title)
		}
	}

	stats.Matched = len(trackIDs)
	app.displaySummary(stats, len(missing))

	if len(missing) > 0 {
		app.enrichMissingTracks(ctx, missing, isrcByPath)
		reportPath := missingReportPath(name)
		if err := playlist.SaveMissingTracks(reportPath, missing, app.opts.verbose); err != nil {
			log.Printf("⚠️  Failed to write missing tracks report: %v", err)
		}
	}

	if len(trackIDs) == 0 {
		fmt.Println("\n❌ Nothing to add to Plex")
		return stats, nil
	}

	if app.opts.noCreate {
		fmt.Printf("\nSkipping playlist creation (-no-create): %d tracks matched\n", len(trackIDs))
		return stats, nil
	}

	if err := app.createOrUpdatePlaylist(ctx, name, trackIDs); err != nil {
		return stats, err
	}

	return stats, nil
}

// displaySummary displays a summary of the matching results
func (app *Application) displaySummary(stats importStats, noMatches int) {
	fmt.Println("\n" + strings.Repeat(separatorLine, separatorLength))
	fmt.Println("SUMMARY")
	fmt.Println(strings.Repeat(separatorLine, separatorLength))
	fmt.Printf("Total tracks: %d\n", stats.Total)
	fmt.Printf("Matched: %d (%.1f%%)\n", stats.Matched, percentage(stats.Matched, stats.Total))
	fmt.Printf("No matches: %d (%.1f%%)\n", noMatches, percentage(noMatches, stats.Total))
}

// enrichMissingTracks looks up MusicBrainz recording IDs for the report,
// preferring ISRC lookups when the source provided them.
func (app *Application) enrichMissingTracks(ctx context.Context, missing []playlist.MissingTrack, isrcByPath map[string]string) {
	fmt.Println("\n🔍 Looking up MusicBrainz IDs for missing tracks...")

	for i := range missing {
		ref := missing[i].Ref

		if isrc := isrcByPath[ref.Path]; isrc != "" {
			if id, err := app.musicBrainzClient.GetMusicBrainzIDByISRC(ctx, isrc); err == nil && id != "" {
				missing[i].MusicBrainzID = id
				continue
			}
		}

		if id, err := app.musicBrainzClient.GetMusicBrainzIDByArtistAndTitle(ctx, ref.Artist, ref.Title); err == nil && id != "" {
			missing[i].MusicBrainzID = id
		} else if app.opts.verbose && err != nil {
			fmt.Printf("  No MusicBrainz match for %s - %s\n", ref.Artist, ref.Title)
		}
	}
}

// createOrUpdatePlaylist creates the playlist, or resolves the conflict when
// one with the same name already exists.
func (app *Application) createOrUpdatePlaylist(ctx context.Context, name string, trackIDs []string) error {
	playlists, err := app.plexClient.GetPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing playlists: %w", err)
	}

	for i := range playlists {
		if playlists[i].Title == name {
			return app.handleExistingPlaylist(ctx, &playlists[i], trackIDs)
		}
	}

	if !app.confirmCreation(name, len(trackIDs)) {
		fmt.Println("Playlist creation cancelled")
		return nil
	}

	created, err := app.plexClient.CreatePlaylist(ctx, name, trackIDs)
	if err != nil {
		return err
	}

	fmt.Printf("\n✅ Successfully created playlist: %s (ID: %s)\n", created.Title, created.ID)
	return nil
}

// handleExistingPlaylist asks what to do with a name conflict: replace the
// playlist, add only the tracks it is missing, or cancel.
func (app *Application) handleExistingPlaylist(ctx context.Context, existing *plex.PlexPlaylist, trackIDs []string) error {
	choice := "1"
	if !app.opts.assumeYes {
		fmt.Printf("\nPlaylist '%s' already exists (%d tracks). What would you like to do?\n", existing.Title, existing.TrackCount)
		fmt.Println("  1) Replace it")
		fmt.Println("  2) Add only new tracks")
		fmt.Println("  3) Cancel")
		fmt.Print("Choice [1/2/3]: ")
		choice = app.readLine()
	}

	switch strings.TrimSpace(choice) {
	case "1":
		return app.replacePlaylist(ctx, existing, trackIDs)
	case "2":
		return app.addNewTracks(ctx, existing, trackIDs)
	default:
		fmt.Println("Cancelled, existing playlist left untouched")
		return nil
	}
}

// replacePlaylist deletes the existing playlist and recreates it
func (app *Application) replacePlaylist(ctx context.Context, existing *plex.PlexPlaylist, trackIDs []string) error {
	if err := app.plexClient.DeletePlaylist(ctx, existing.ID); err != nil {
		return err
	}

	created, err := app.plexClient.CreatePlaylist(ctx, existing.Title, trackIDs)
	if err != nil {
		return err
	}

	fmt.Printf("\n✅ Replaced playlist: %s (ID: %s)\n", created.Title, created.ID)
	return nil
}

// addNewTracks appends only the tracks the existing playlist does not
// already contain.
func (app *Application) addNewTracks(ctx context.Context, existing *plex.PlexPlaylist, trackIDs []string) error {
	items, err := app.plexClient.GetPlaylistItems(ctx, existing.ID)
	if err != nil {
		return fmt.Errorf("failed to read existing playlist: %w", err)
	}

	onPlaylist := make(map[string]bool, len(items))
	for _, item := range items {
		onPlaylist[item.ID] = true
	}

	var newIDs []string
	for _, id := range trackIDs {
		if !onPlaylist[id] {
			newIDs = append(newIDs, id)
		}
	}

	if len(newIDs) == 0 {
		fmt.Println("\nNo new tracks to add, playlist already up to date")
		return nil
	}

	if err := app.plexClient.AddTracksToPlaylist(ctx, existing.ID, newIDs); err != nil {
		return err
	}

	fmt.Printf("\n✅ Added %d new track(s) to playlist: %s\n", len(newIDs), existing.Title)
	return nil
}

// confirmCreation asks for a final confirmation unless -yes was given
func (app *Application) confirmCreation(name string, trackCount int) bool {
	if app.opts.assumeYes {
		return true
	}

	fmt.Printf("\nCreate playlist '%s' with %d track(s)? [y/N]: ", name, trackCount)
	answer := strings.ToLower(strings.TrimSpace(app.readLine()))
	return answer == "y" || answer == "yes"
}

// readLine reads one line of input for interactive prompts. All prompts share
// one buffered reader; a fresh reader per prompt would swallow any input it
// buffered past the first line.
func (app *Application) readLine() string {
	if app.reader == nil {
		app.reader = bufio.NewReader(app.stdin)
	}
	line, err := app.reader.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimRight(line, "\r\n")
}

// playlistNameFromPath derives the default playlist name from the file name
func playlistNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// missingReportPath builds the missing-tracks report filename for a playlist
func missingReportPath(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return "missing_tracks_" + sanitized + ".txt"
}

// percentage guards the division so empty playlists print 0.0%
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// parseFlags parses command line flags and returns the options and the
// config overrides they imply
func parseFlags() (options, map[string]string) {
	var opts options
	var plexURL, plexToken, threshold string

	flag.StringVar(&opts.file, "file", "", "Path to an M3U8 playlist file to import")
	flag.StringVar(&opts.folder, "folder", "", "Folder of M3U8 playlist files to import")
	flag.StringVar(&opts.spotifyPlaylist, "spotify-playlist", "", "Spotify playlist ID to import")
	flag.StringVar(&opts.playlistName, "playlist-name", "", "Name for the Plex playlist (defaults to the file name)")
	flag.StringVar(&plexURL, "url", "", "Plex server URL (overrides PLEX_URL env var)")
	flag.StringVar(&plexToken, "token", "", "Plex token (overrides PLEX_TOKEN env var)")
	flag.StringVar(&threshold, "threshold", "", "Match score threshold between 0 and 1 (overrides MATCH_THRESHOLD env var)")
	flag.BoolVar(&opts.verbose, "verbose", false, "Verbose output with matching diagnostics")
	flag.BoolVar(&opts.noCreate, "no-create", false, "Match tracks but do not create the playlist")
	flag.BoolVar(&opts.assumeYes, "yes", false, "Do not prompt for confirmation")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug output for Plex API calls")

	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Parse()

	if showVersion {
		fmt.Printf("plexm3u version %s\n", version)
		os.Exit(exitCodeSuccess)
	}

	overrides := map[string]string{
		"PLEX_URL":        plexURL,
		"PLEX_TOKEN":      plexToken,
		"MATCH_THRESHOLD": threshold,
	}

	return opts, overrides
}

// validateSource checks that exactly one playlist source was given
func validateSource(opts options) error {
	sources := 0
	for _, s := range []string{opts.file, opts.folder, opts.spotifyPlaylist} {
		if s != "" {
			sources++
		}
	}

	switch sources {
	case 0:
		return fmt.Errorf("no playlist source specified: use -file, -folder or -spotify-playlist")
	case 1:
		return nil
	default:
		return fmt.Errorf("only one of -file, -folder and -spotify-playlist may be used")
	}
}

func printUsageHint() {
	fmt.Println("❌ No playlist source specified!")
	fmt.Println("Please provide one of:")
	fmt.Println("  -file playlist.m3u8            import a single playlist file")
	fmt.Println("  -folder ./playlists            import every playlist file in a folder")
	fmt.Println("  -spotify-playlist <id>         import a Spotify playlist")
	fmt.Println("\nExample:")
	fmt.Println("  ./plexm3u -file roadtrip.m3u8")
	fmt.Println("  ./plexm3u -folder ./playlists -yes")
	fmt.Println("  ./plexm3u -file roadtrip.m3u8 -threshold 0.7 -verbose")
}

func main() {
	opts, overrides := parseFlags()

	if err := validateSource(opts); err != nil {
		printUsageHint()
		os.Exit(exitCodeUsageError)
	}

	cfg, err := config.LoadWithOverrides(overrides)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(exitCodeConfigError)
	}

	app := NewApplication(cfg, opts)

	ctx := context.Background()
	if err := app.Run(ctx); err != nil {
		log.Printf("Application failed: %v", err)
		os.Exit(exitCodeClientError)
	}
}
