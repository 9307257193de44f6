package playlist

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/garry/plexm3u/stringutil"
)

// MissingTrack is an unmatched reference plus any enrichment gathered for the
// report (a MusicBrainz recording ID when a lookup succeeded).
type MissingTrack struct {
	Ref           TrackReference
	MusicBrainzID string
}

// SaveMissingTracks writes the missing-tracks report. With verbose set, each
// entry carries matching diagnostics and suggested manual search terms.
func SaveMissingTracks(filename string, tracks []MissingTrack, verbose bool) error {
	if len(tracks) == 0 {
		return nil
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create missing tracks file: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	b.WriteString("# Missing tracks from playlist\n")
	fmt.Fprintf(&b, "# Generated on: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "# Total missing tracks: %d\n\n", len(tracks))

	for i, track := range tracks {
		ref := track.Ref
		fmt.Fprintf(&b, "Track %d: %s - %s\n", i+1, ref.Artist, ref.Title)

		if ref.Album != "" {
			fmt.Fprintf(&b, "  Album: %s\n", ref.Album)
		}

		fmt.Fprintf(&b, "  Path: %s\n", ref.Path)

		if track.MusicBrainzID != "" {
			fmt.Fprintf(&b, "  MusicBrainz: https://musicbrainz.org/recording/%s\n", track.MusicBrainzID)
		}

		if verbose {
			writeDiagnostics(&b, ref)
		}

		b.WriteString("\n")
	}

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write missing tracks file: %w", err)
	}

	fmt.Printf("Missing tracks saved to: %s\n", filename)
	return nil
}

// writeDiagnostics appends the derived annotations that help a manual search:
// the paren-stripped base title, a camel-case split suggestion, the cleaned
// title when a featured-artist marker is present, and the decomposed
// multi-artist credit.
func writeDiagnostics(b *strings.Builder, ref TrackReference) {
	b.WriteString("  --- Matching Diagnostics ---\n")

	baseTitle := ""
	if strings.Contains(ref.Title, "(") {
		baseTitle = stringutil.StripParens(ref.Title)
		fmt.Fprintf(b, "  Base title (without parentheses): %s\n", baseTitle)
	}

	if pos, ok := CamelSplitPoint(ref.Title); ok {
		runes := []rune(ref.Title)
		fmt.Fprintf(b, "  Potential split point detected in title at position %d: %s/%s\n",
			pos, string(runes[:pos]), string(runes[pos:]))
	}

	if strings.Contains(ref.Title, "feat.") || strings.Contains(ref.Title, "ft.") || strings.Contains(ref.Title, "with") {
		fmt.Fprintf(b, "  Title contains featured artist. Clean title: %s\n", stringutil.CleanTitleForSearch(ref.Title))
	}

	if strings.Contains(ref.Artist, ",") {
		artists := strings.Split(ref.Artist, ",")
		for i := range artists {
			artists[i] = strings.TrimSpace(artists[i])
		}
		fmt.Fprintf(b, "  Multiple artists detected: %s\n", strings.Join(artists, ", "))
		fmt.Fprintf(b, "  Using first artist: %s\n", artists[0])
	}

	b.WriteString("  Suggested manual search terms:\n")
	primaryArtist := strings.TrimSpace(strings.SplitN(ref.Artist, ",", 2)[0])
	fmt.Fprintf(b, "    - Artist: %s\n", primaryArtist)

	if baseTitle != "" {
		fmt.Fprintf(b, "    - Title (without parentheses): %s\n", baseTitle)
	} else {
		fmt.Fprintf(b, "    - Title: %s\n", ref.Title)
	}
}

// CamelSplitPoint returns the first internal uppercase rune position of a
// title that has no separator at all, suggesting a joined-word title like
// "BlackDog". The boundary runes never count.
func CamelSplitPoint(title string) (int, bool) {
	if strings.ContainsAny(title, "/ ") {
		return 0, false
	}
	runes := []rune(title)
	for i := 1; i < len(runes)-1; i++ {
		if unicode.IsUpper(runes[i]) {
			return i, true
		}
	}
	return 0, false
}
