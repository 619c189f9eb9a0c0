package bilibili

import (
	"regexp"
	"strings"
)

// ShortLinkHost marks b23.tv share links, which cannot be classified
// without a network round trip.
const ShortLinkHost = "b23.tv"

// idRule pairs an extraction pattern with the canonicalizer for its
// capture: bare aid/auid digits need their kind prefix restored, every
// other capture already carries one.
type idRule struct {
	re        *regexp.Regexp
	canonical func(string) string
}

func avPrefix(id string) string { return "av" + id }

// Video rules run before audio rules; within each family the first match
// wins. The looser "ID anywhere in the string" rules sit last on purpose.
var videoIDRules = []idRule{
	{regexp.MustCompile(`/video/(BV[a-zA-Z0-9]+)`), NormalizeVideoID},
	{regexp.MustCompile(`/video/(av\d+)`), NormalizeVideoID},
	{regexp.MustCompile(`[?&]bvid=([a-zA-Z0-9]+)`), NormalizeVideoID},
	{regexp.MustCompile(`[?&]aid=(\d+)`), avPrefix},
	{regexp.MustCompile(`^(BV[a-zA-Z0-9]+)$`), NormalizeVideoID},
	{regexp.MustCompile(`(?i)^(av\d+)$`), NormalizeVideoID},
	{regexp.MustCompile(`(BV[a-zA-Z0-9]+)`), NormalizeVideoID},
	{regexp.MustCompile(`(?i)(av\d+)`), NormalizeVideoID},
}

var audioIDRules = []idRule{
	{regexp.MustCompile(`/audio/(au\d+)`), NormalizeAudioID},
	{regexp.MustCompile(`[?&]auid=(\d+)`), NormalizeAudioID},
	{regexp.MustCompile(`^(au\d+)$`), NormalizeAudioID},
	{regexp.MustCompile(`(au\d+)`), NormalizeAudioID},
}

var knownHosts = []string{
	"bilibili.com",
	"www.bilibili.com",
	ShortLinkHost,
	"m.bilibili.com",
	"space.bilibili.com",
}

var bareIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^BV[a-zA-Z0-9]+$`),
	regexp.MustCompile(`(?i)^av\d+$`),
	regexp.MustCompile(`(?i)^au\d+$`),
}

var embeddedIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`BV[a-zA-Z0-9]+`),
	regexp.MustCompile(`(?i)av\d+`),
	regexp.MustCompile(`(?i)au\d+`),
}

var bareToken = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Parse extracts a typed media reference from free-text input. It reports
// false when no rule matched; the caller decides whether that is a user
// error or cause for a network lookup.
func Parse(text string) (MediaReference, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return MediaReference{}, false
	}

	// Short links go through the resolver first, before any ID matching.
	if strings.Contains(trimmed, ShortLinkHost) {
		return MediaReference{Kind: KindVideo, ID: trimmed, OriginalText: trimmed}, true
	}

	for _, rule := range videoIDRules {
		match := rule.re.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		return MediaReference{Kind: KindVideo, ID: rule.canonical(match[1]), OriginalText: trimmed}, true
	}

	for _, rule := range audioIDRules {
		match := rule.re.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		return MediaReference{Kind: KindAudio, ID: rule.canonical(match[1]), OriginalText: trimmed}, true
	}

	return MediaReference{}, false
}

// NormalizeVideoID coerces a matched token to the canonical BV or av
// form. Ambiguous tokens default to video, never audio. Idempotent.
func NormalizeVideoID(id string) string {
	if strings.HasPrefix(id, "BV") {
		return id
	}
	if len(id) >= 2 && strings.EqualFold(id[:2], "av") {
		return "av" + id[2:]
	}
	if bareToken.MatchString(id) {
		return "BV" + id
	}
	return id
}

// NormalizeAudioID coerces a matched token to the canonical au form.
// Idempotent.
func NormalizeAudioID(id string) string {
	if len(id) >= 2 && strings.EqualFold(id[:2], "au") {
		return "au" + id[2:]
	}
	return "au" + id
}

// Validate is a cheap pre-check used to fail fast before parsing or a
// network round trip. It is deliberately more permissive than Parse.
func Validate(text string) (bool, string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false, "请输入有效的链接"
	}

	for _, host := range knownHosts {
		if strings.Contains(trimmed, host) {
			return true, ""
		}
	}
	for _, pattern := range bareIDPatterns {
		if pattern.MatchString(trimmed) {
			return true, ""
		}
	}
	for _, pattern := range embeddedIDPatterns {
		if pattern.MatchString(trimmed) {
			return true, ""
		}
	}
	return false, "请输入有效的B站链接或ID（支持 BV号、AV号、AU号）"
}
