// Package playlist reads M3U8-style playlist files into track references and
// writes the missing-tracks report produced after matching.
package playlist

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path"
	"regexp"
	"strings"
)

// TrackReference is one parsed playlist line: the artist/title pair to match
// against the library, plus the original line for reporting.
type TrackReference struct {
	Artist    string
	Title     string
	Album     string // empty for flat-form lines
	Path      string // the raw playlist line
	Extension string // lowercased file suffix, including the dot
}

// trackNumberRe strips a leading "01 - " style prefix from a filename.
var trackNumberRe = regexp.MustCompile(`^\d+\s*-\s*(.*)`)

// ParseFile reads an M3U8 file and returns one TrackReference per
// recognizable line. Lines that fail to parse are logged and skipped; only a
// file-level read error is returned.
func ParseFile(filePath string) ([]TrackReference, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist file: %w", err)
	}
	defer f.Close()

	var tracks []TrackReference
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.ToValidUTF8(scanner.Text(), "�")
		if ref, ok := ParseLine(line); ok {
			tracks = append(tracks, ref)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist file: %w", err)
	}

	fmt.Printf("Successfully parsed %d tracks from playlist\n", len(tracks))
	return tracks, nil
}

// ParseLines parses raw playlist lines. Useful for sources other than files.
func ParseLines(lines []string) []TrackReference {
	var tracks []TrackReference
	for _, line := range lines {
		if ref, ok := ParseLine(line); ok {
			tracks = append(tracks, ref)
		}
	}
	return tracks
}

// ParseLine converts a single playlist line to a TrackReference. Blank lines,
// comments and unrecognizable lines yield ok=false; malformed lines are
// additionally reported.
//
// Two shapes are recognized:
//
//	Artist/Album/01 - Title.mp3     (path form, >= 3 slash segments)
//	Artist1, Artist2 - Title.flac   (flat form, first " - " splits the line)
func ParseLine(line string) (TrackReference, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return TrackReference{}, false
	}

	if strings.Contains(line, "/") {
		parts := strings.Split(line, "/")
		if len(parts) < 3 {
			log.Printf("Warning: line does not match expected path format: %s", line)
			return TrackReference{}, false
		}

		artist := parts[0]
		album := parts[1]
		remaining := strings.Join(parts[2:], "/")
		filename := path.Base(remaining)
		extension := strings.ToLower(path.Ext(filename))

		title := filename
		if m := trackNumberRe.FindStringSubmatch(filename); m != nil {
			title = m[1]
		}
		title = strings.TrimSpace(strings.TrimSuffix(title, path.Ext(title)))

		return TrackReference{
			Artist:    artist,
			Album:     album,
			Title:     title,
			Path:      line,
			Extension: extension,
		}, true
	}

	if strings.Contains(line, " - ") {
		split := strings.SplitN(line, " - ", 2)
		artistPart, titlePart := split[0], split[1]

		artist := strings.TrimSpace(artistPart)
		if comma := strings.Index(artistPart, ","); comma != -1 {
			artist = strings.TrimSpace(artistPart[:comma])
			fmt.Printf("Multiple artists detected: '%s' -> using '%s'\n", artistPart, artist)
		}

		extension := strings.ToLower(path.Ext(titlePart))
		title := strings.TrimSpace(strings.TrimSuffix(titlePart, path.Ext(titlePart)))

		return TrackReference{
			Artist:    artist,
			Title:     title,
			Path:      line,
			Extension: extension,
		}, true
	}

	log.Printf("Warning: line does not match any expected format: %s", line)
	return TrackReference{}, false
}
