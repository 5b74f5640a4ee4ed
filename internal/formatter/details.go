package formatter

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/sphere/internal/models"
)

// FormatReleaseDate renders t at the given precision. Nil renders empty.
func FormatReleaseDate(t *time.Time, precision string) string {
	if t == nil {
		return ""
	}
	switch precision {
	case models.PrecisionYear:
		return t.Format("2006")
	case models.PrecisionMonth:
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// field is a labelled value; empty values are skipped when rendered.
type field struct {
	label, value string
}

type detail struct {
	title       string
	fields      []field
	description string
	sections    []section
}

type section struct {
	heading string
	lines   []string
}

func (d detail) text(note string) []byte {
	var buf bytes.Buffer
	buf.WriteString(styles.Title(d.title) + "\n\n")
	for _, f := range d.fields {
		if f.value != "" {
			fmt.Fprintf(&buf, "%s %s\n", styles.Help(f.label+":"), f.value)
		}
	}
	if d.description != "" {
		fmt.Fprintf(&buf, "\n%s\n", d.description)
	}
	for _, s := range d.sections {
		if len(s.lines) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "\n%s\n", styles.OK(s.heading))
		for i, l := range s.lines {
			fmt.Fprintf(&buf, "%d. %s\n", i+1, l)
		}
	}
	if note != "" {
		fmt.Fprintf(&buf, "\n%s\n", styles.Warn(note))
	}
	return buf.Bytes()
}

func (d detail) markdown(note string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", d.title)
	for _, f := range d.fields {
		if f.value != "" {
			fmt.Fprintf(&buf, "**%s**: %s\n", f.label, f.value)
		}
	}
	if d.description != "" {
		fmt.Fprintf(&buf, "\n%s\n", d.description)
	}
	for _, s := range d.sections {
		if len(s.lines) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "\n## %s\n\n", s.heading)
		for i, l := range s.lines {
			fmt.Fprintf(&buf, "%d. %s\n", i+1, l)
		}
	}
	if note != "" {
		fmt.Fprintf(&buf, "\n> %s\n", note)
	}
	return buf.Bytes()
}

func countValue(n *int64) string {
	if n == nil {
		return ""
	}
	return FormatCount(*n)
}

func songDetail(s *models.Song) detail {
	explicit := ""
	if s.Explicit {
		explicit = "yes"
	}
	return detail{
		title: s.Title,
		fields: []field{
			{"Artist", s.Artist.Name},
			{"Album", s.Album.Title},
			{"ID", s.ID},
			{"Duration", FormatDuration(s.DurationMS)},
			{"Released", FormatReleaseDate(s.ReleaseDate, s.ReleaseDatePrecision)},
			{"Popularity", strconv.Itoa(s.Popularity)},
			{"Explicit", explicit},
			{"Plays", countValue(s.PlayCount)},
			{"Listeners", countValue(s.ListenerCount)},
			{"Genres", strings.Join(s.Genres, ", ")},
			{"URL", s.URL},
		},
		description: s.Description,
	}
}

func artistDetail(a *models.Artist) detail {
	d := detail{
		title: a.Name,
		fields: []field{
			{"ID", a.ID},
			{"Followers", FormatCount(int64(a.Followers))},
			{"Popularity", strconv.Itoa(a.Popularity)},
			{"Plays", countValue(a.PlayCount)},
			{"Listeners", countValue(a.ListenerCount)},
			{"Genres", strings.Join(a.Genres, ", ")},
			{"URL", a.URL},
		},
		description: a.Description,
	}

	top := section{heading: "Top Tracks"}
	for _, s := range a.TopTracks {
		top.lines = append(top.lines, s.Title)
	}
	albums := section{heading: "Top Albums"}
	for _, al := range a.TopAlbums {
		albums.lines = append(albums.lines, al.Title)
	}
	similar := section{heading: "Similar Artists"}
	for _, sa := range a.SimilarArtists {
		similar.lines = append(similar.lines, sa.Name)
	}
	d.sections = []section{top, albums, similar}
	return d
}

func albumDetail(a *models.Album) detail {
	d := detail{
		title: a.Title,
		fields: []field{
			{"Artist", a.Artist.Name},
			{"ID", a.ID},
			{"Released", FormatReleaseDate(a.ReleaseDate, a.ReleaseDatePrecision)},
			{"Tracks", strconv.Itoa(a.TotalTracks)},
			{"Popularity", strconv.Itoa(a.Popularity)},
			{"Plays", countValue(a.PlayCount)},
			{"Listeners", countValue(a.ListenerCount)},
			{"Genres", strings.Join(a.Genres, ", ")},
			{"URL", a.URL},
		},
		description: a.Description,
	}

	tracks := section{heading: "Tracklist"}
	for _, s := range a.Tracks {
		line := s.Title
		if dur := FormatDuration(s.DurationMS); dur != "" {
			line += " [" + dur + "]"
		}
		tracks.lines = append(tracks.lines, line)
	}
	d.sections = []section{tracks}
	return d
}

// RenderSong writes a song's details. note, when set, is shown after the details
// in text and Markdown output.
func RenderSong(w io.Writer, f Format, s *models.Song, note string) error {
	switch f {
	case FormatJSON:
		data, err := ToJSON(s, true)
		return write(w, data, err)
	case FormatCSV:
		data, err := SongsToCSV([]models.Song{*s})
		return write(w, data, err)
	case FormatMarkdown:
		return write(w, songDetail(s).markdown(note), nil)
	}
	return write(w, songDetail(s).text(note), nil)
}

// RenderArtist writes an artist's details with its related lists.
func RenderArtist(w io.Writer, f Format, a *models.Artist, note string) error {
	switch f {
	case FormatJSON:
		data, err := ToJSON(a, true)
		return write(w, data, err)
	case FormatCSV:
		data, err := ArtistsToCSV([]models.Artist{*a})
		return write(w, data, err)
	case FormatMarkdown:
		return write(w, artistDetail(a).markdown(note), nil)
	}
	return write(w, artistDetail(a).text(note), nil)
}

// RenderAlbum writes an album's details with its track list.
func RenderAlbum(w io.Writer, f Format, a *models.Album, note string) error {
	switch f {
	case FormatJSON:
		data, err := ToJSON(a, true)
		return write(w, data, err)
	case FormatCSV:
		data, err := AlbumsToCSV([]models.Album{*a})
		return write(w, data, err)
	case FormatMarkdown:
		return write(w, albumDetail(a).markdown(note), nil)
	}
	return write(w, albumDetail(a).text(note), nil)
}
