package naming_test

import (
	"path/filepath"
	"testing"

	"ferry/internal/naming"
	"ferry/internal/parser"
	"ferry/internal/testsupport"
)

func TestRender(t *testing.T) {
	values := naming.Values{Title: "Harbor Lights", Date: "2024-03-15", Year: "2024", Quality: "1080p WEB-DL", ReleaseGroup: "GRP"}
	cases := []struct {
		template string
		values   naming.Values
		want     string
	}{
		{"{Title} - {Date} - {Quality}", values, "Harbor Lights - 2024-03-15 - 1080p WEB-DL"},
		{"{title} ({year})", values, "Harbor Lights (2024)"},
		{"{Title} - {Date} - {Quality}", naming.Values{Title: "Harbor Lights", Quality: "720p"}, "Harbor Lights - 720p"},
		{"{Title} - {Date} - {Quality}", naming.Values{Title: "Harbor Lights"}, "Harbor Lights"},
		{"{Date} - {Title}", naming.Values{Title: "Harbor Lights"}, "Harbor Lights"},
		{"{Title} ({Year})", naming.Values{Title: "Harbor Lights"}, "Harbor Lights"},
		{"{Title} {Unknown} [{ReleaseGroup}]", values, "Harbor Lights [GRP]"},
		{"{Title}", naming.Values{Title: "AC/DC: Live"}, "AC-DC- Live"},
	}
	for _, tc := range cases {
		if got := naming.Render(tc.template, tc.values); got != tc.want {
			t.Errorf("Render(%q) = %q, want %q", tc.template, got, tc.want)
		}
	}
}

func TestResolvePrefersLibraryItem(t *testing.T) {
	info := parser.Parse("Harbor.Lights.2023.01.02.1080p.WEB-DL-GRP.mkv")
	v := naming.Resolve("Harbor Lights Live", "2024-03-15", info)
	if v.Title != "Harbor Lights Live" || v.Date != "2024-03-15" || v.Year != "2024" {
		t.Fatalf("expected library values, got %#v", v)
	}
	if v.Quality != "1080p WEB-DL" || v.ReleaseGroup != "GRP" {
		t.Fatalf("expected parsed quality, got %#v", v)
	}
	if v.OriginalName != "Harbor.Lights.2023.01.02.1080p.WEB-DL-GRP" {
		t.Fatalf("unexpected original name %q", v.OriginalName)
	}

	fallback := naming.Resolve("", "", info)
	if fallback.Title != "Harbor Lights" || fallback.Date != "2023-01-02" || fallback.Year != "2023" {
		t.Fatalf("expected parsed fallbacks, got %#v", fallback)
	}
}

func TestDestination(t *testing.T) {
	values := naming.Values{Title: "Harbor Lights", Date: "2024-03-15", Quality: "1080p"}
	got, err := naming.Destination("/lib", "{Title}", "{Title} - {Date} - {Quality}", values, ".mkv")
	if err != nil {
		t.Fatalf("Destination: %v", err)
	}
	want := filepath.Join("/lib", "Harbor Lights", "Harbor Lights - 2024-03-15 - 1080p.mkv")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	flat, err := naming.Destination("/lib", "{Unknown}", "{Quality}", naming.Values{OriginalName: "raw.name"}, ".mkv")
	if err != nil {
		t.Fatalf("Destination: %v", err)
	}
	if flat != filepath.Join("/lib", "raw.name.mkv") {
		t.Fatalf("expected original name fallback at root, got %q", flat)
	}

	if _, err := naming.Destination("", "{Title}", "{Title}", values, ".mkv"); err == nil {
		t.Fatal("expected empty root to fail")
	}
}

func TestUniqueAppendsCounter(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "D.mkv")

	got, err := naming.Unique(target)
	if err != nil || got != target {
		t.Fatalf("expected free path unchanged, got %q %v", got, err)
	}

	testsupport.WriteFile(t, target, 1)
	testsupport.WriteFile(t, filepath.Join(dir, "D (1).mkv"), 1)
	got, err = naming.Unique(target)
	if err != nil {
		t.Fatalf("Unique: %v", err)
	}
	if want := filepath.Join(dir, "D (2).mkv"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	again, _ := naming.Unique(target)
	if again != got {
		t.Fatalf("expected deterministic choice, got %q then %q", got, again)
	}
}

func TestUniqueFuncSkipsReserved(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "D.mkv")
	testsupport.WriteFile(t, target, 1)

	held := map[string]bool{filepath.Join(dir, "D (1).mkv"): true}
	got, err := naming.UniqueFunc(target, func(p string) bool { return held[p] })
	if err != nil {
		t.Fatalf("UniqueFunc: %v", err)
	}
	if want := filepath.Join(dir, "D (2).mkv"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	free := filepath.Join(dir, "E.mkv")
	held[free] = true
	got, err = naming.UniqueFunc(free, func(p string) bool { return held[p] })
	if err != nil {
		t.Fatalf("UniqueFunc: %v", err)
	}
	if want := filepath.Join(dir, "E (1).mkv"); got != want {
		t.Fatalf("reserved free path: got %q, want %q", got, want)
	}
}
