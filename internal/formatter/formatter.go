// package formatter renders catalog exports as JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/catalogd/internal/ingest"
	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/shared"
)

// Format names an export format.
type Format string

const (
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "txt"
)

// Formats lists the supported export formats.
var Formats = []Format{JSON, CSV, Markdown, Text}

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "txt", "text":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension written for f.
func (f Format) Extension() string {
	if f == Markdown {
		return ".md"
	}
	return "." + string(f)
}

// artistGroup is an artist with the entries that follow it in a document.
type artistGroup struct {
	artist  models.Artist
	entries []models.CatalogEntry
}

// groupByArtist keeps the document's artist order and attaches each entry to its artist.
func groupByArtist(doc *ingest.Document) []artistGroup {
	index := make(map[string]int, len(doc.Artists))
	groups := make([]artistGroup, 0, len(doc.Artists))
	for _, artist := range doc.Artists {
		index[artist.ID] = len(groups)
		groups = append(groups, artistGroup{artist: artist})
	}
	for _, entry := range doc.CatalogEntries {
		i, ok := index[entry.ArtistID]
		if !ok {
			i = len(groups)
			index[entry.ArtistID] = i
			groups = append(groups, artistGroup{artist: models.Artist{ID: entry.ArtistID, Name: entry.ArtistID}})
		}
		groups[i].entries = append(groups[i].entries, entry)
	}
	return groups
}

// ExportToJSON encodes doc as an importable catalog document.
func ExportToJSON(doc *ingest.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := ingest.WriteDocument(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportToCSV writes one row per catalog entry with columns: ID, Title, Artist, Release Date, Tracks, Image
func ExportToCSV(doc *ingest.Document) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Release Date", "Tracks", "Image"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, group := range groupByArtist(doc) {
		for _, entry := range group.entries {
			record := []string{
				entry.ID,
				entry.Title,
				group.artist.Name,
				entry.ReleaseDate,
				strconv.Itoa(len(entry.TrackIDs)),
				entry.ImageID,
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a discography: one section per artist listing its entries and tracks
func ExportToMarkdown(doc *ingest.Document) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Catalog\n\n")
	fmt.Fprintf(&buf, "**Artists**: %d\n", len(doc.Artists))
	fmt.Fprintf(&buf, "**Catalog entries**: %d\n", len(doc.CatalogEntries))
	fmt.Fprintf(&buf, "**Images**: %d\n", len(doc.Images))

	for _, group := range groupByArtist(doc) {
		fmt.Fprintf(&buf, "\n## %s\n\n", group.artist.Name)
		if len(group.entries) == 0 {
			buf.WriteString("_No catalog entries._\n")
			continue
		}
		for _, entry := range group.entries {
			date := ""
			if entry.ReleaseDate != "" {
				date = fmt.Sprintf(" (%s)", entry.ReleaseDate)
			}
			fmt.Fprintf(&buf, "### %s%s\n\n", entry.Title, date)
			for i, track := range entry.TrackIDs {
				fmt.Fprintf(&buf, "%d. `%s`\n", i+1, track)
			}
			if len(entry.TrackIDs) > 0 {
				buf.WriteString("\n")
			}
		}
	}

	return buf.Bytes(), nil
}

// ExportToText writes one "Artist - Title (date)" line per catalog entry
func ExportToText(doc *ingest.Document) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Catalog: %d artists, %d entries, %d images\n\n",
		len(doc.Artists), len(doc.CatalogEntries), len(doc.Images))

	for _, group := range groupByArtist(doc) {
		for _, entry := range group.entries {
			fmt.Fprintf(&buf, "%s - %s", group.artist.Name, entry.Title)
			if entry.ReleaseDate != "" {
				fmt.Fprintf(&buf, " (%s)", entry.ReleaseDate)
			}
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}

// Export renders doc in format f.
func Export(doc *ingest.Document, f Format) ([]byte, error) {
	switch f {
	case JSON:
		return ExportToJSON(doc)
	case CSV:
		return ExportToCSV(doc)
	case Markdown:
		return ExportToMarkdown(doc)
	case Text:
		return ExportToText(doc)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, f)
	}
}

// WriteExport renders doc and writes it to path.
//
// Defaults to catalog{ext} in the working directory.
func WriteExport(doc *ingest.Document, f Format, path string) (string, error) {
	if path == "" {
		path = "catalog" + f.Extension()
	}

	data, err := Export(doc, f)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s export: %w", f, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
