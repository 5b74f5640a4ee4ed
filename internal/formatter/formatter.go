// package formatter renders catalog entities and result pages as plain text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
)

// Format selects an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or its common abbreviation. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt", "plain":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// ToJSON marshals v, indented when pretty is set.
func ToJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

var (
	songHeaders   = []string{"ID", "Title", "Artist", "Album", "Duration", "Popularity", "Released", "Plays", "URL"}
	artistHeaders = []string{"ID", "Name", "Genres", "Followers", "Popularity", "Listeners", "Plays", "URL"}
	albumHeaders  = []string{"ID", "Title", "Artist", "Tracks", "Popularity", "Released", "Plays", "URL"}
)

// SongsToCSV converts songs to CSV with a header row.
func SongsToCSV(songs []models.Song) ([]byte, error) {
	rows := make([][]string, 0, len(songs))
	for _, s := range songs {
		rows = append(rows, []string{
			s.ID, s.Title, s.Artist.Name, s.Album.Title,
			FormatDuration(s.DurationMS),
			strconv.Itoa(s.Popularity),
			FormatReleaseDate(s.ReleaseDate, s.ReleaseDatePrecision),
			countField(s.PlayCount),
			s.URL,
		})
	}
	return writeCSV(songHeaders, rows)
}

// ArtistsToCSV converts artists to CSV with a header row. Genres are joined with ";".
func ArtistsToCSV(artists []models.Artist) ([]byte, error) {
	rows := make([][]string, 0, len(artists))
	for _, a := range artists {
		rows = append(rows, []string{
			a.ID, a.Name, strings.Join(a.Genres, ";"),
			strconv.Itoa(a.Followers),
			strconv.Itoa(a.Popularity),
			countField(a.ListenerCount),
			countField(a.PlayCount),
			a.URL,
		})
	}
	return writeCSV(artistHeaders, rows)
}

// AlbumsToCSV converts albums to CSV with a header row.
func AlbumsToCSV(albums []models.Album) ([]byte, error) {
	rows := make([][]string, 0, len(albums))
	for _, a := range albums {
		rows = append(rows, []string{
			a.ID, a.Title, a.Artist.Name,
			strconv.Itoa(a.TotalTracks),
			strconv.Itoa(a.Popularity),
			FormatReleaseDate(a.ReleaseDate, a.ReleaseDatePrecision),
			countField(a.PlayCount),
			a.URL,
		})
	}
	return writeCSV(albumHeaders, rows)
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range rows {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// SongsToMarkdown renders a numbered Markdown list of songs under heading.
func SongsToMarkdown(heading string, songs []models.Song) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", heading)
	for i, s := range songs {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, songLine(s, true))
	}
	return buf.Bytes()
}

// ArtistsToMarkdown renders a numbered Markdown list of artists under heading.
func ArtistsToMarkdown(heading string, artists []models.Artist) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", heading)
	for i, a := range artists {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, artistLine(a, true))
	}
	return buf.Bytes()
}

// AlbumsToMarkdown renders a numbered Markdown list of albums under heading.
func AlbumsToMarkdown(heading string, albums []models.Album) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", heading)
	for i, a := range albums {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, albumLine(a, true))
	}
	return buf.Bytes()
}

// SongsToText renders a numbered plain list of songs with a styled heading.
func SongsToText(heading string, songs []models.Song) []byte {
	return textList(heading, len(songs), func(i int) string { return songLine(songs[i], false) })
}

// ArtistsToText renders a numbered plain list of artists with a styled heading.
func ArtistsToText(heading string, artists []models.Artist) []byte {
	return textList(heading, len(artists), func(i int) string { return artistLine(artists[i], false) })
}

// AlbumsToText renders a numbered plain list of albums with a styled heading.
func AlbumsToText(heading string, albums []models.Album) []byte {
	return textList(heading, len(albums), func(i int) string { return albumLine(albums[i], false) })
}

func textList(heading string, n int, line func(int) string) []byte {
	var buf bytes.Buffer
	buf.WriteString(styles.Title(heading) + "\n\n")
	if n == 0 {
		buf.WriteString(styles.Help("No results") + "\n")
		return buf.Bytes()
	}
	for i := range n {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, line(i))
	}
	return buf.Bytes()
}

func songLine(s models.Song, md bool) string {
	line := fmt.Sprintf("%s - %s", s.Artist.Name, s.Title)
	if s.Album.Title != "" {
		line += fmt.Sprintf(" (%s)", s.Album.Title)
	}
	if s.DurationMS > 0 {
		line += fmt.Sprintf(" [%s]", FormatDuration(s.DurationMS))
	}
	return line + idSuffix(s.ID, md)
}

func artistLine(a models.Artist, md bool) string {
	line := a.Name
	if len(a.Genres) > 0 {
		line += fmt.Sprintf(" (%s)", strings.Join(a.Genres, ", "))
	}
	return line + idSuffix(a.ID, md)
}

func albumLine(a models.Album, md bool) string {
	line := fmt.Sprintf("%s - %s", a.Artist.Name, a.Title)
	if d := FormatReleaseDate(a.ReleaseDate, a.ReleaseDatePrecision); d != "" {
		line += fmt.Sprintf(" (%s)", d)
	}
	return line + idSuffix(a.ID, md)
}

func idSuffix(id string, md bool) string {
	if id == "" {
		return ""
	}
	if md {
		return fmt.Sprintf(" `%s`", id)
	}
	return "  " + styles.Help(id)
}

// RenderSongs writes a page of songs in format f.
func RenderSongs(w io.Writer, f Format, heading string, page *models.Page[models.Song]) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON:
		data, err = ToJSON(page, true)
	case FormatCSV:
		data, err = SongsToCSV(page.Results)
	case FormatMarkdown:
		data = SongsToMarkdown(heading, page.Results)
	default:
		data = append(SongsToText(heading, page.Results), pageFooter(page.Total, len(page.Results), page.Offset)...)
	}
	return write(w, data, err)
}

// RenderArtists writes a page of artists in format f.
func RenderArtists(w io.Writer, f Format, heading string, page *models.Page[models.Artist]) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON:
		data, err = ToJSON(page, true)
	case FormatCSV:
		data, err = ArtistsToCSV(page.Results)
	case FormatMarkdown:
		data = ArtistsToMarkdown(heading, page.Results)
	default:
		data = append(ArtistsToText(heading, page.Results), pageFooter(page.Total, len(page.Results), page.Offset)...)
	}
	return write(w, data, err)
}

// RenderAlbums writes a page of albums in format f.
func RenderAlbums(w io.Writer, f Format, heading string, page *models.Page[models.Album]) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON:
		data, err = ToJSON(page, true)
	case FormatCSV:
		data, err = AlbumsToCSV(page.Results)
	case FormatMarkdown:
		data = AlbumsToMarkdown(heading, page.Results)
	default:
		data = append(AlbumsToText(heading, page.Results), pageFooter(page.Total, len(page.Results), page.Offset)...)
	}
	return write(w, data, err)
}

func pageFooter(total *int, n, offset int) []byte {
	if total == nil || n == 0 {
		return nil
	}
	return []byte("\n" + styles.Help(fmt.Sprintf("Showing %d-%d of %d", offset+1, offset+n, *total)) + "\n")
}

// RenderTopStats writes a user's top tracks and artists.
func RenderTopStats(w io.Writer, f Format, stats *models.TopStats) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON:
		data, err = ToJSON(stats, true)
	case FormatCSV:
		data, err = SongsToCSV(stats.Tracks)
	case FormatMarkdown:
		data = append(SongsToMarkdown("Top Tracks", stats.Tracks), '\n')
		data = append(data, ArtistsToMarkdown("Top Artists", stats.Artists)...)
	default:
		data = append(SongsToText("Top Tracks", stats.Tracks), '\n')
		data = append(data, ArtistsToText("Top Artists", stats.Artists)...)
	}
	return write(w, data, err)
}

func write(w io.Writer, data []byte, err error) error {
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		if _, err := w.Write([]byte("\n")); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	return nil
}

// FormatDuration renders milliseconds as m:ss, or h:mm:ss past an hour. Zero renders empty.
func FormatDuration(ms int) string {
	if ms <= 0 {
		return ""
	}
	secs := ms / 1000
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatCount groups the digits of n with commas.
func FormatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func countField(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}
