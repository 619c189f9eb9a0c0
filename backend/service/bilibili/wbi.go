package bilibili

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Published permutation table used to derive the mixin key from the two
// rotating nav keys.
var mixinKeyEncTab = [64]int{
	46, 47, 18, 2, 53, 8, 23, 32, 15, 50, 10, 31, 58, 3, 45, 35, 27, 43, 5, 49,
	33, 9, 42, 19, 29, 28, 14, 39, 12, 38, 41, 13, 37, 48, 7, 16, 24, 55, 40,
	61, 26, 17, 0, 1, 60, 51, 30, 4, 22, 25, 54, 21, 56, 59, 6, 63, 57, 62, 11,
	36, 20, 34, 44, 52,
}

// KeyPair holds the two rotating WBI keys issued by the nav endpoint.
type KeyPair struct {
	ImgKey string `json:"imgKey"`
	SubKey string `json:"subKey"`
}

// Signer computes WBI request signatures. Fallback keys come from
// configuration so tests can pin them; the clock is injectable for the
// same reason. Signing itself is pure given (params, keys, now).
type Signer struct {
	fallback KeyPair
	now      func() time.Time
}

func NewSigner(fallback KeyPair) *Signer {
	return &Signer{
		fallback: fallback,
		now:      time.Now,
	}
}

func (s *Signer) Fallback() KeyPair {
	return s.fallback
}

func mixinKey(orig string) string {
	var builder strings.Builder
	builder.Grow(len(mixinKeyEncTab))
	for _, idx := range mixinKeyEncTab {
		if idx < len(orig) {
			builder.WriteByte(orig[idx])
		}
	}
	mixed := builder.String()
	if len(mixed) > 32 {
		mixed = mixed[:32]
	}
	return mixed
}

// sanitizeValue strips the characters the remote signer ignores.
func sanitizeValue(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '!', '\'', '(', ')', '*':
			return -1
		}
		return r
	}, value)
}

// wbiEscape matches JS encodeURIComponent for the sanitized charset:
// QueryEscape but with %20 for spaces.
func wbiEscape(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

// Sign injects wts, sorts and sanitizes the parameters and computes w_rid.
// The result is only valid for a short server-side window, so callers must
// sign immediately before sending.
func (s *Signer) Sign(params map[string]string, keys KeyPair) map[string]string {
	signed := make(map[string]string, len(params)+2)
	for key, value := range params {
		signed[key] = sanitizeValue(value)
	}
	signed["wts"] = strconv.FormatInt(s.now().Unix(), 10)

	signKeys := make([]string, 0, len(signed))
	for key := range signed {
		signKeys = append(signKeys, key)
	}
	sort.Strings(signKeys)

	parts := make([]string, 0, len(signKeys))
	for _, key := range signKeys {
		parts = append(parts, wbiEscape(key)+"="+wbiEscape(signed[key]))
	}
	query := strings.Join(parts, "&")

	digest := md5.Sum([]byte(query + mixinKey(keys.ImgKey+keys.SubKey)))
	signed["w_rid"] = hex.EncodeToString(digest[:])
	return signed
}

// SignedQuery returns the final query string for a signed request.
func (s *Signer) SignedQuery(params map[string]string, keys KeyPair) string {
	signed := s.Sign(params, keys)
	signKeys := make([]string, 0, len(signed))
	for key := range signed {
		signKeys = append(signKeys, key)
	}
	sort.Strings(signKeys)
	parts := make([]string, 0, len(signKeys))
	for _, key := range signKeys {
		parts = append(parts, wbiEscape(key)+"="+wbiEscape(signed[key]))
	}
	return strings.Join(parts, "&")
}

// keyFromWbiURL extracts the filename stem that carries the actual key,
// e.g. ".../wbi/7cd0...77c.png" -> "7cd0...77c".
func keyFromWbiURL(raw string) string {
	slash := strings.LastIndex(raw, "/")
	stem := raw[slash+1:]
	if dot := strings.Index(stem, "."); dot >= 0 {
		stem = stem[:dot]
	}
	return stem
}
