package library

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/garry/plexm3u/playlist"
	"github.com/garry/plexm3u/plex"
	"github.com/garry/plexm3u/stringutil"
)

// Matcher resolves playlist references to library tracks using an Index and
// an acceptance threshold.
type Matcher struct {
	Index     *Index
	Threshold float64

	// RelaxedArtists (lowercased names) get the relaxed threshold applied to
	// featured-artist titles; some artists credit collaborations
	// inconsistently enough that the normal threshold rejects real matches.
	RelaxedArtists []string

	Verbose bool
}

// MatchTrack resolves one reference. It returns (nil, nil) when no candidate
// clears the threshold, and an error only when the index cannot be built.
func (m *Matcher) MatchTrack(ctx context.Context, ref playlist.TrackReference) (*plex.PlexTrack, error) {
	if !m.Index.Ready() {
		if err := m.Index.Build(ctx); err != nil {
			return nil, err
		}
	}

	effective := m.effectiveThreshold(ref)

	best := topCandidate(m.Index.FindTrack(ref.Artist, ref.Title, ref.Album))

	// Retry with rewritten titles when the straight lookup is not good
	// enough, keeping whichever attempt scored highest.
	if best == nil || best.Score < effective {
		for _, alt := range alternateTitles(ref.Title) {
			if m.Verbose {
				fmt.Printf("  Retrying '%s - %s' with alternate title '%s'\n", ref.Artist, ref.Title, alt)
			}
			candidate := topCandidate(m.Index.FindTrack(ref.Artist, alt, ref.Album))
			if candidate != nil && (best == nil || candidate.Score > best.Score) {
				best = candidate
			}
		}
	}

	if best == nil || best.Score < effective {
		if m.Verbose && best != nil {
			fmt.Printf("  Best candidate for '%s - %s' was '%s - %s' (score %.3f, below %.2f)\n",
				ref.Artist, ref.Title, best.ArtistName, best.Track.Title, best.Score, effective)
		}
		return nil, nil
	}

	if m.Verbose {
		fmt.Printf("  Matched '%s - %s' -> '%s - %s' (score %.3f)\n",
			ref.Artist, ref.Title, best.ArtistName, best.Track.Title, best.Score)
	}

	track := best.Track
	return &track, nil
}

// effectiveThreshold relaxes the configured threshold for featured-artist
// titles and for artists on the relaxed list, but never below 0.7.
func (m *Matcher) effectiveThreshold(ref playlist.TrackReference) float64 {
	if hasFeatureMarker(ref.Title) || m.isRelaxedArtist(ref.Artist) {
		return max(0.7, m.Threshold-0.05)
	}
	return m.Threshold
}

func (m *Matcher) isRelaxedArtist(artist string) bool {
	lower := strings.ToLower(artist)
	for _, name := range m.RelaxedArtists {
		if lower == name {
			return true
		}
	}
	return false
}

func topCandidate(candidates []Candidate) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	return &candidates[0]
}

// alternateTitles generates rewritten titles for a retry: camel-case splits
// of joined-word titles, slash replaced by space, and the paren-stripped
// base title.
func alternateTitles(title string) []string {
	var alternates []string
	seen := map[string]bool{title: true}

	add := func(alt string) {
		alt = strings.TrimSpace(alt)
		if alt != "" && !seen[alt] {
			seen[alt] = true
			alternates = append(alternates, alt)
		}
	}

	if !strings.ContainsAny(title, "/ ") {
		runes := []rune(title)
		for i := 1; i < len(runes)-1; i++ {
			if unicode.IsUpper(runes[i]) {
				add(string(runes[:i]) + "/" + string(runes[i:]))
				add(string(runes[:i]) + " " + string(runes[i:]))
			}
		}
	}

	if strings.Contains(title, "/") {
		add(strings.ReplaceAll(title, "/", " "))
	}

	add(stringutil.StripParens(title))

	return alternates
}
