package synthid

import "testing"

func TestEncode(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{name: "basic", title: "Creep", artist: "Radiohead", want: "creep--radiohead"},
		{name: "spaces become dashes", title: "Karma Police", artist: "Radiohead", want: "karma-police--radiohead"},
		{name: "outer whitespace trimmed", title: "  Paranoid Android ", artist: " Radiohead", want: "paranoid-android--radiohead"},
		{name: "dash inside a half", title: "Re-Stacks", artist: "Bon Iver", want: "re-stacks--bon-iver"},
		{name: "empty artist", title: "Björk", artist: "", want: "björk--"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.title, tt.artist); got != tt.want {
				t.Errorf("Encode(%q, %q) = %q, want %q", tt.title, tt.artist, got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("not synthetic", func(t *testing.T) {
		for _, id := range []string{"4uLU6hMCjMI75M1A2tKUQC", "single-dash", ""} {
			if _, _, ok := Decode(id); ok {
				t.Errorf("Decode(%q) should not apply", id)
			}
			if IsSynthetic(id) {
				t.Errorf("IsSynthetic(%q) should be false", id)
			}
		}
	})

	t.Run("creep--radiohead", func(t *testing.T) {
		title, artist, ok := Decode("creep--radiohead")
		if !ok || title != "creep" || artist != "radiohead" {
			t.Errorf("got (%q, %q, %v)", title, artist, ok)
		}
	})

	t.Run("splits on first separator", func(t *testing.T) {
		title, artist, ok := Decode("a--b--c")
		if !ok || title != "a" || artist != "b  c" {
			t.Errorf("got (%q, %q, %v)", title, artist, ok)
		}
	})

	t.Run("round trip is lossy only in case and dashes", func(t *testing.T) {
		tc := []struct {
			title, artist         string
			wantTitle, wantArtist string
		}{
			{"Karma Police", "Radiohead", "karma police", "radiohead"},
			{"  Holocene ", "Bon Iver", "holocene", "bon iver"},
			{"Re-Stacks", "Bon Iver", "re stacks", "bon iver"},
		}

		for _, tt := range tc {
			title, artist, ok := Decode(Encode(tt.title, tt.artist))
			if !ok {
				t.Fatalf("expected %q to decode", Encode(tt.title, tt.artist))
			}
			if title != tt.wantTitle || artist != tt.wantArtist {
				t.Errorf("round trip of (%q, %q) = (%q, %q)", tt.title, tt.artist, title, artist)
			}
		}
	})

	t.Run("artist ids decode with empty second half", func(t *testing.T) {
		name, rest, ok := Decode(EncodeArtist("Sigur Rós"))
		if !ok || name != "sigur rós" || rest != "" {
			t.Errorf("got (%q, %q, %v)", name, rest, ok)
		}
	})
}
