// Package library builds an in-memory index of a Plex music section and
// resolves playlist track references against it with fuzzy matching.
package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/garry/plexm3u/plex"
	"github.com/garry/plexm3u/stringutil"
)

// ErrNoMusicLibrary is returned by Build when the server has no music-type
// library section (or none matching the configured section ID).
var ErrNoMusicLibrary = errors.New("no music library section found")

// Catalog is the subset of the Plex client the index needs. plex.Client
// satisfies it; tests use a fake.
type Catalog interface {
	GetMusicSections(ctx context.Context) ([]plex.Section, error)
	GetArtists(ctx context.Context, sectionKey int) ([]plex.Artist, error)
	GetAlbums(ctx context.Context, artistKey string) ([]plex.Album, error)
	GetTracks(ctx context.Context, albumKey string) ([]plex.PlexTrack, error)
}

// IndexEntry ties an indexed track to its artist and album.
type IndexEntry struct {
	Track  plex.PlexTrack
	Artist plex.Artist
	Album  plex.Album
}

// Candidate is one possible match for a reference, with the component
// similarities that produced its score.
type Candidate struct {
	Track       plex.PlexTrack
	ArtistName  string
	AlbumName   string
	Score       float64
	ArtistSim   float64
	TitleSim    float64
	AlbumSim    float64
	HasAlbumSim bool
}

// initialRe detects initials-style artist names ("R.E.M.") whose periods
// produce an alias variant without them.
var initialRe = regexp.MustCompile(`\b[A-Z]\.`)

// Index holds the normalized lookup tables for one music section.
//
// Map iteration order is randomized in Go, so the fuzzy scans walk the
// insertion-ordered key slices (artistNames, trackTitles) to keep results
// deterministic for a given library.
type Index struct {
	catalog   Catalog
	sectionID int // preferred section key, 0 means first music section

	artistIndex   map[string]plex.Artist  // normalized name -> artist
	artistAliases map[string]string       // normalized alias -> canonical normalized name
	artistNames   []string                // artistIndex keys in insertion order
	artistEntries map[string][]IndexEntry // artist rating key -> that artist's tracks
	trackIndex    map[string][]IndexEntry // normalized title -> entries
	trackTitles   []string                // trackIndex keys in insertion order
	initialized   bool
}

// NewIndex creates an index over the given catalog. sectionID narrows the
// build to one library section; pass 0 to use the first music section.
func NewIndex(catalog Catalog, sectionID int) *Index {
	return &Index{
		catalog:       catalog,
		sectionID:     sectionID,
		artistIndex:   make(map[string]plex.Artist),
		artistAliases: make(map[string]string),
		artistEntries: make(map[string][]IndexEntry),
		trackIndex:    make(map[string][]IndexEntry),
	}
}

// Ready reports whether Build has completed successfully.
func (idx *Index) Ready() bool {
	return idx.initialized
}

// ArtistCount returns the number of distinct indexed artists.
func (idx *Index) ArtistCount() int {
	return len(idx.artistNames)
}

// TrackCount returns the number of indexed track entries.
func (idx *Index) TrackCount() int {
	count := 0
	for _, entries := range idx.artistEntries {
		count += len(entries)
	}
	return count
}

// Build enumerates the music section and populates the lookup tables.
// Failures for a single artist or album are logged and skipped; the index is
// marked ready only after the full pass completes.
func (idx *Index) Build(ctx context.Context) error {
	sections, err := idx.catalog.GetMusicSections(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover music sections: %w", err)
	}

	var section *plex.Section
	for i := range sections {
		if idx.sectionID == 0 || sections[i].Key == idx.sectionID {
			section = &sections[i]
			break
		}
	}
	if section == nil {
		return ErrNoMusicLibrary
	}

	artists, err := idx.catalog.GetArtists(ctx, section.Key)
	if err != nil {
		return fmt.Errorf("failed to list artists in section %d: %w", section.Key, err)
	}

	fmt.Printf("Indexing %d artists from library section '%s'...\n", len(artists), section.Title)

	for _, artist := range artists {
		idx.addArtist(artist)

		albums, err := idx.catalog.GetAlbums(ctx, artist.RatingKey)
		if err != nil {
			log.Printf("Warning: skipping artist '%s': %v", artist.Name, err)
			continue
		}

		for _, album := range albums {
			tracks, err := idx.catalog.GetTracks(ctx, album.RatingKey)
			if err != nil {
				log.Printf("Warning: skipping album '%s' by '%s': %v", album.Title, artist.Name, err)
				continue
			}

			for _, track := range tracks {
				idx.addTrack(IndexEntry{Track: track, Artist: artist, Album: album})
			}
		}
	}

	idx.initialized = true
	fmt.Printf("Library index ready: %d artists, %d tracks\n", idx.ArtistCount(), idx.TrackCount())
	return nil
}

// addArtist indexes an artist under its normalized name and registers alias
// variants. An alias never shadows a real artist name or an earlier alias.
func (idx *Index) addArtist(artist plex.Artist) {
	norm := stringutil.Normalize(artist.Name)
	if norm == "" {
		return
	}

	if _, exists := idx.artistIndex[norm]; !exists {
		idx.artistIndex[norm] = artist
		idx.artistNames = append(idx.artistNames, norm)
	}

	for _, variant := range artistVariations(artist.Name) {
		alias := stringutil.Normalize(variant)
		if alias == "" || alias == norm {
			continue
		}
		if _, taken := idx.artistIndex[alias]; taken {
			continue
		}
		if _, taken := idx.artistAliases[alias]; taken {
			continue
		}
		idx.artistAliases[alias] = norm
	}
}

// artistVariations derives the alternate spellings an artist may appear
// under in playlist text.
func artistVariations(name string) []string {
	var variants []string

	if strings.Contains(name, "/") {
		variants = append(variants,
			strings.ReplaceAll(name, "/", " "),
			strings.ReplaceAll(name, "/", "-"),
			strings.ReplaceAll(name, "/", ""),
		)
	}

	if strings.HasPrefix(name, "The ") {
		variants = append(variants, strings.TrimPrefix(name, "The "))
	} else {
		variants = append(variants, "The "+name)
	}

	if initialRe.MatchString(name) {
		variants = append(variants, strings.ReplaceAll(name, ".", ""))
	}

	return variants
}

// addTrack indexes a track under its normalized title, and also under its
// paren-stripped base title when that differs ("Song (Live)" -> "song").
func (idx *Index) addTrack(entry IndexEntry) {
	norm := stringutil.Normalize(entry.Track.Title)
	if norm == "" {
		return
	}

	idx.addTrackKey(norm, entry)

	base := stringutil.Normalize(stringutil.StripParens(entry.Track.Title))
	if base != "" && base != norm {
		idx.addTrackKey(base, entry)
	}

	idx.artistEntries[entry.Artist.RatingKey] = append(idx.artistEntries[entry.Artist.RatingKey], entry)
}

func (idx *Index) addTrackKey(key string, entry IndexEntry) {
	if _, exists := idx.trackIndex[key]; !exists {
		idx.trackTitles = append(idx.trackTitles, key)
	}
	idx.trackIndex[key] = append(idx.trackIndex[key], entry)
}

// FindArtist resolves an artist name: exact normalized hit, then alias hit,
// then the best fuzzy candidate scoring strictly above threshold.
func (idx *Index) FindArtist(name string, threshold float64) (plex.Artist, bool) {
	if !idx.initialized {
		return plex.Artist{}, false
	}

	norm := stringutil.Normalize(name)
	if norm == "" {
		return plex.Artist{}, false
	}

	if artist, ok := idx.artistIndex[norm]; ok {
		return artist, true
	}
	if canonical, ok := idx.artistAliases[norm]; ok {
		return idx.artistIndex[canonical], true
	}

	bestScore := threshold
	var best plex.Artist
	found := false
	for _, candidate := range idx.artistNames {
		if score := stringutil.Similarity(norm, candidate); score > bestScore {
			bestScore = score
			best = idx.artistIndex[candidate]
			found = true
		}
	}
	return best, found
}

// FindTrack returns scored candidates for an artist/title reference, best
// first. Four strategies run in order, each only when the previous one found
// nothing: direct title lookup, cleaned-title scan for featured-artist
// titles, a scan of the resolved artist's own tracks, and a global fuzzy
// scan.
func (idx *Index) FindTrack(artist, title, album string) []Candidate {
	if !idx.initialized {
		return nil
	}

	normTitle := stringutil.Normalize(title)
	cleanNormTitle := stringutil.Normalize(stringutil.CleanTitleForSearch(title))

	results := idx.directLookup(artist, album, normTitle, cleanNormTitle)

	if len(results) == 0 && hasFeatureMarker(title) {
		results = idx.cleanTitleScan(artist, title)
	}

	if len(results) == 0 {
		results = idx.artistTrackScan(artist, album, normTitle, cleanNormTitle)
	}

	if len(results) == 0 {
		results = idx.globalScan(artist, album, normTitle, cleanNormTitle)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// hasFeatureMarker reports whether a title carries a featured-artist marker.
// The check is case sensitive: lowercase markers are the overwhelmingly
// common form, and "With" starting a title is usually part of the name.
func hasFeatureMarker(title string) bool {
	return strings.Contains(title, "feat.") || strings.Contains(title, "with")
}

// blendAlbum reweights a candidate's score with the album similarity whenever
// the reference supplied an album. An entry without an album contributes 0,
// which lowers the score rather than leaving it untouched.
func blendAlbum(c *Candidate, refAlbum, entryAlbum string) {
	if refAlbum == "" {
		return
	}
	albumSim := stringutil.Similarity(refAlbum, entryAlbum)
	c.AlbumSim = albumSim
	c.HasAlbumSim = true
	c.Score = c.Score*0.8 + albumSim*0.2
}

// directLookup checks the title index under the normalized and cleaned
// titles. A direct hit pins the title similarity to 1.0.
func (idx *Index) directLookup(artist, album, normTitle, cleanNormTitle string) []Candidate {
	var results []Candidate
	seen := make(map[string]bool)

	keys := []string{normTitle}
	if cleanNormTitle != "" && cleanNormTitle != normTitle {
		keys = append(keys, cleanNormTitle)
	}

	for _, key := range keys {
		for _, entry := range idx.trackIndex[key] {
			if seen[entry.Track.ID] {
				continue
			}
			seen[entry.Track.ID] = true

			artistSim := stringutil.Similarity(artist, entry.Artist.Name)
			candidate := Candidate{
				Track:      entry.Track,
				ArtistName: entry.Artist.Name,
				AlbumName:  entry.Album.Title,
				ArtistSim:  artistSim,
				TitleSim:   1.0,
				Score:      0.4*artistSim + 0.6,
			}
			blendAlbum(&candidate, album, entry.Album.Title)
			results = append(results, candidate)
		}
	}
	return results
}

// cleanTitleScan compares cleaned titles across the whole index; used when
// the reference title names a featured artist the library omits.
func (idx *Index) cleanTitleScan(artist, title string) []Candidate {
	var results []Candidate
	seen := make(map[string]bool)
	cleanRef := stringutil.CleanTitleForSearch(title)

	for _, key := range idx.trackTitles {
		titleSim := stringutil.Similarity(cleanRef, stringutil.CleanTitleForSearch(key))
		if titleSim <= 0.85 {
			continue
		}
		for _, entry := range idx.trackIndex[key] {
			if seen[entry.Track.ID] {
				continue
			}
			artistSim := stringutil.Similarity(artist, entry.Artist.Name)
			if artistSim <= 0.7 {
				continue
			}
			seen[entry.Track.ID] = true
			results = append(results, Candidate{
				Track:      entry.Track,
				ArtistName: entry.Artist.Name,
				AlbumName:  entry.Album.Title,
				ArtistSim:  artistSim,
				TitleSim:   titleSim,
				Score:      0.4*artistSim + 0.6*titleSim,
			})
		}
	}
	return results
}

// artistTrackScan resolves the artist first, then fuzzily compares the
// reference title against only that artist's tracks. A resolved artist
// counts as an exact artist match.
func (idx *Index) artistTrackScan(artist, album, normTitle, cleanNormTitle string) []Candidate {
	resolved, ok := idx.FindArtist(artist, 0.6)
	if !ok {
		return nil
	}

	var results []Candidate
	for _, entry := range idx.artistEntries[resolved.RatingKey] {
		normTrack := stringutil.Normalize(entry.Track.Title)
		cleanTrack := stringutil.Normalize(stringutil.CleanTitleForSearch(entry.Track.Title))

		titleSim := stringutil.Similarity(normTitle, normTrack)
		if cleanNormTitle != "" {
			titleSim = max(titleSim, stringutil.Similarity(cleanNormTitle, cleanTrack))
		}
		if titleSim <= 0.7 {
			continue
		}

		candidate := Candidate{
			Track:      entry.Track,
			ArtistName: entry.Artist.Name,
			AlbumName:  entry.Album.Title,
			ArtistSim:  1.0,
			TitleSim:   titleSim,
			Score:      0.4 + 0.6*titleSim,
		}
		blendAlbum(&candidate, album, entry.Album.Title)
		results = append(results, candidate)
	}
	return results
}

// globalScan is the last resort: every indexed title is compared against the
// reference, with a tighter title gate to keep false positives down.
func (idx *Index) globalScan(artist, album, normTitle, cleanNormTitle string) []Candidate {
	var results []Candidate
	seen := make(map[string]bool)

	for _, key := range idx.trackTitles {
		titleSim := stringutil.Similarity(normTitle, key)
		if cleanNormTitle != "" {
			titleSim = max(titleSim, stringutil.Similarity(cleanNormTitle, key))
		}
		if titleSim <= 0.8 {
			continue
		}

		for _, entry := range idx.trackIndex[key] {
			if seen[entry.Track.ID] {
				continue
			}
			artistSim := stringutil.Similarity(artist, entry.Artist.Name)
			if artistSim <= 0.6 {
				continue
			}
			seen[entry.Track.ID] = true
			candidate := Candidate{
				Track:      entry.Track,
				ArtistName: entry.Artist.Name,
				AlbumName:  entry.Album.Title,
				ArtistSim:  artistSim,
				TitleSim:   titleSim,
				Score:      0.4*artistSim + 0.6*titleSim,
			}
			blendAlbum(&candidate, album, entry.Album.Title)
			results = append(results, candidate)
		}
	}
	return results
}
