package ingest

import (
	"strings"
	"testing"
	"time"
)

func TestParseFlexibleDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{name: "rfc3339", input: "2026-06-12T00:00:00Z", want: time.Date(2026, 6, 12, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "iso without zone", input: "2026-06-12T10:30:00", want: time.Date(2026, 6, 12, 10, 30, 0, 0, time.UTC), ok: true},
		{name: "us slash format", input: "08/15/2026", want: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "plain date", input: "2026-03-15", want: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "garbage", input: "soonish", ok: false},
		{name: "empty", input: "", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseFlexibleDate(tc.input)
			if ok != tc.ok {
				t.Fatalf("ParseFlexibleDate(%q) ok = %v, want %v", tc.input, ok, tc.ok)
			}
			if ok && !got.Equal(tc.want) {
				t.Fatalf("ParseFlexibleDate(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseCloseDate_RollingSignals(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"none", "Rolling", "MULTIPLE", " rolling "} {
		closeDate, isRolling, ok := ParseCloseDate(input)
		if !ok {
			t.Fatalf("ParseCloseDate(%q) unexpectedly failed", input)
		}
		if !isRolling {
			t.Fatalf("ParseCloseDate(%q) expected rolling signal", input)
		}
		if closeDate != nil {
			t.Fatalf("ParseCloseDate(%q) expected nil date, got %v", input, closeDate)
		}
	}
}

func TestParseCloseDate_RealDate(t *testing.T) {
	t.Parallel()

	closeDate, isRolling, ok := ParseCloseDate("2024-03-15")
	if !ok || closeDate == nil {
		t.Fatalf("expected parse to succeed, got ok=%v date=%v", ok, closeDate)
	}
	if isRolling {
		t.Fatalf("a concrete date must not set the rolling flag")
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !closeDate.Equal(want) {
		t.Fatalf("close date = %v, want %v", closeDate, want)
	}
}

func TestParseCloseDate_Unparseable(t *testing.T) {
	t.Parallel()

	closeDate, isRolling, ok := ParseCloseDate("when ready")
	if ok {
		t.Fatalf("expected parse failure")
	}
	if closeDate != nil || isRolling {
		t.Fatalf("failure must yield nil date and no rolling flag")
	}
}

func TestParseMoney(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  *int64
	}{
		{input: "$500,000", want: int64Ptr(500000)},
		{input: " 1,250,000 ", want: int64Ptr(1250000)},
		{input: "750000.99", want: int64Ptr(750000)},
		{input: "0", want: nil},
		{input: "", want: nil},
		{input: "$0", want: nil},
		{input: "TBD", want: nil},
		{input: "-500", want: nil},
		{input: "-$1,000,000", want: nil},
	}

	for _, tc := range cases {
		got := ParseMoney(tc.input)
		if (got == nil) != (tc.want == nil) {
			t.Fatalf("ParseMoney(%q) = %v, want %v", tc.input, got, tc.want)
		}
		if got != nil && *got != *tc.want {
			t.Fatalf("ParseMoney(%q) = %d, want %d", tc.input, *got, *tc.want)
		}
	}
}

func TestBuildSummary_TruncatesLongDescription(t *testing.T) {
	t.Parallel()

	description := strings.Repeat("x", 600)
	summary := BuildSummary(description, "title")

	if !strings.HasSuffix(summary, "...") {
		t.Fatalf("expected truncated summary to end with ellipsis")
	}
	if got := len([]rune(summary)); got != 503 {
		t.Fatalf("summary length = %d runes, want 503", got)
	}
}

func TestBuildSummary_FallsBackToTitle(t *testing.T) {
	t.Parallel()

	if got := BuildSummary("", "Community Health Grants"); got != "Community Health Grants" {
		t.Fatalf("summary = %q, want title fallback", got)
	}
	if got := BuildSummary("short", "Community Health Grants"); got != "Community Health Grants" {
		t.Fatalf("summary = %q, want title fallback for sub-threshold description", got)
	}
}

func TestSynthesizeDescription(t *testing.T) {
	t.Parallel()

	got := SynthesizeDescription(
		"Rural Broadband Expansion",
		"Department of Agriculture",
		"USDA-RD-2026-01",
		[]string{"10.752"},
	)

	for _, fragment := range []string{"Rural Broadband Expansion", "Department of Agriculture", "USDA-RD-2026-01", "10.752"} {
		if !strings.Contains(got, fragment) {
			t.Fatalf("synthesized description missing %q: %q", fragment, got)
		}
	}
	if got == "" {
		t.Fatalf("synthesized description must not be empty")
	}
}

func TestInferFocusAreas(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title string
		want  []string
	}{
		{title: "Community Health Research Initiative", want: []string{"health", "technology", "social"}},
		{title: "National Defense Software Modernization", want: []string{"technology", "defense"}},
		{title: "Bridge Repair Fund", want: []string{}},
	}

	for _, tc := range cases {
		got := InferFocusAreas(tc.title)
		if len(got) != len(tc.want) {
			t.Fatalf("InferFocusAreas(%q) = %v, want %v", tc.title, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("InferFocusAreas(%q) = %v, want %v", tc.title, got, tc.want)
			}
		}
	}
}

func TestUnionStrings(t *testing.T) {
	t.Parallel()

	got := UnionStrings([]string{"health", "social"}, []string{"social", "defense", ""})
	want := []string{"health", "social", "defense"}
	if len(got) != len(want) {
		t.Fatalf("union = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("union = %v, want %v", got, want)
		}
	}
}

func TestStripMarkup(t *testing.T) {
	t.Parallel()

	got := StripMarkup("<p>Funding for <b>rural</b> clinics.</p>")
	if got != "Funding for rural clinics." {
		t.Fatalf("StripMarkup = %q", got)
	}

	plain := StripMarkup("already   plain \n text")
	if plain != "already plain text" {
		t.Fatalf("StripMarkup on plain text = %q", plain)
	}
}

func int64Ptr(v int64) *int64 { return &v }
