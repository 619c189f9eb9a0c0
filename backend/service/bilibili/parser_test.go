package bilibili

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind MediaKind
		wantID   string
		wantOK   bool
	}{
		{"video page url", "https://www.bilibili.com/video/BV1xx411c7mD", KindVideo, "BV1xx411c7mD", true},
		{"video page url with query", "https://www.bilibili.com/video/BV1xx411c7mD?p=2&t=30", KindVideo, "BV1xx411c7mD", true},
		{"legacy av url", "https://www.bilibili.com/video/av170001", KindVideo, "av170001", true},
		{"bvid query param", "https://example.com/player?bvid=1xx411c7mD", KindVideo, "BV1xx411c7mD", true},
		{"aid query param", "https://example.com/player?aid=170001", KindVideo, "av170001", true},
		{"bare bv id", "BV1xx411c7mD", KindVideo, "BV1xx411c7mD", true},
		{"bare av id", "av170001", KindVideo, "av170001", true},
		{"uppercase av id", "AV170001", KindVideo, "av170001", true},
		{"bv embedded in text", "看这个 BV1xx411c7mD 超好听", KindVideo, "BV1xx411c7mD", true},
		{"audio page url", "https://www.bilibili.com/audio/au123456", KindAudio, "au123456", true},
		{"auid query param", "https://example.com/player?auid=123456", KindAudio, "au123456", true},
		{"bare au id", "au123456", KindAudio, "au123456", true},
		{"surrounding whitespace", "  BV1xx411c7mD  ", KindVideo, "BV1xx411c7mD", true},
		{"empty input", "", "", "", false},
		{"whitespace only", "   \t ", "", "", false},
		{"unrelated text", "not a bilibili link at all", "", "", false},
		{"unrelated url", "https://example.com/watch?v=abc", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ref, ok := Parse(tc.input)
			if ok != tc.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tc.input, ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if ref.Kind != tc.wantKind || ref.ID != tc.wantID {
				t.Fatalf("Parse(%q) = {%s %s}, want {%s %s}", tc.input, ref.Kind, ref.ID, tc.wantKind, tc.wantID)
			}
		})
	}
}

func TestParseShortLinkDefersClassification(t *testing.T) {
	input := "https://b23.tv/abc123"
	ref, ok := Parse(input)
	if !ok {
		t.Fatal("short link should parse")
	}
	if ref.Kind != KindVideo || ref.ID != input {
		t.Fatalf("short link ref = {%s %s}, want the raw link carried through", ref.Kind, ref.ID)
	}
}

func TestVideoRulesWinOverAudioRules(t *testing.T) {
	ref, ok := Parse("mix BV1xx411c7mD and au123456")
	if !ok || ref.Kind != KindVideo {
		t.Fatalf("mixed input classified as %s, want video", ref.Kind)
	}
}

func TestNormalizeIDsIdempotent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BV1xx411c7mD", "BV1xx411c7mD"},
		{"1xx411c7mD", "BV1xx411c7mD"},
		{"av170001", "av170001"},
		{"AV170001", "av170001"},
	}
	for _, tc := range tests {
		got := NormalizeVideoID(tc.in)
		if got != tc.want {
			t.Errorf("NormalizeVideoID(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if again := NormalizeVideoID(got); again != got {
			t.Errorf("NormalizeVideoID not idempotent: %q -> %q", got, again)
		}
	}

	if got := NormalizeAudioID("123456"); got != "au123456" {
		t.Errorf("NormalizeAudioID(123456) = %q", got)
	}
	if got := NormalizeAudioID("au123456"); got != "au123456" {
		t.Errorf("NormalizeAudioID(au123456) = %q", got)
	}
}

func TestValidateIsMorePermissiveThanParse(t *testing.T) {
	// Anything Parse accepts must pass Validate too.
	accepted := []string{
		"https://www.bilibili.com/video/BV1xx411c7mD",
		"https://b23.tv/abc123",
		"au123456",
		"AV170001",
	}
	for _, input := range accepted {
		if ok, msg := Validate(input); !ok {
			t.Errorf("Validate(%q) rejected parseable input: %s", input, msg)
		}
	}

	if ok, msg := Validate(""); ok || msg == "" {
		t.Error("empty input should fail validation with a message")
	}
	if ok, msg := Validate("random text"); ok || msg == "" {
		t.Error("unrecognized input should fail validation with a message")
	}
}
