package bilibili

import (
	"testing"
	"time"
)

const (
	testImgKey = "7cd084941338484aae1ad9425b84077c"
	testSubKey = "4932caff0ff746eab6f01bf08b70ac45"
)

func frozenSigner(unix int64) *Signer {
	signer := NewSigner(KeyPair{ImgKey: testImgKey, SubKey: testSubKey})
	signer.now = func() time.Time { return time.Unix(unix, 0) }
	return signer
}

func TestMixinKey(t *testing.T) {
	got := mixinKey(testImgKey + testSubKey)
	want := "ea1db124af3c7062474693fa704f4ff8"
	if got != want {
		t.Fatalf("mixinKey = %q, want %q", got, want)
	}
	if len(got) != 32 {
		t.Fatalf("mixinKey length = %d, want 32", len(got))
	}
}

func TestSignKnownVector(t *testing.T) {
	signer := frozenSigner(1702204169)
	signed := signer.Sign(map[string]string{
		"foo": "114",
		"bar": "514",
		"zab": "1919810",
	}, signer.Fallback())

	if signed["wts"] != "1702204169" {
		t.Fatalf("wts = %q, want 1702204169", signed["wts"])
	}
	if signed["w_rid"] != "8f6f2b5b3d485fe1886cec6a0be8c5d4" {
		t.Fatalf("w_rid = %q, want 8f6f2b5b3d485fe1886cec6a0be8c5d4", signed["w_rid"])
	}
}

func TestSignSanitizesValues(t *testing.T) {
	signer := frozenSigner(1700000000)
	signed := signer.Sign(map[string]string{
		"a": "1 2!",
		"b": "c*",
	}, signer.Fallback())

	if signed["a"] != "1 2" || signed["b"] != "c" {
		t.Fatalf("sanitized values = %q, %q", signed["a"], signed["b"])
	}
	if signed["w_rid"] != "0682870d9293930fc060fc987b904324" {
		t.Fatalf("w_rid = %q, want 0682870d9293930fc060fc987b904324", signed["w_rid"])
	}
}

func TestSignDeterministic(t *testing.T) {
	signer := frozenSigner(1702204169)
	params := map[string]string{"foo": "bar"}
	first := signer.Sign(params, signer.Fallback())
	second := signer.Sign(params, signer.Fallback())
	if first["w_rid"] != second["w_rid"] {
		t.Fatalf("same inputs produced different signatures: %q vs %q", first["w_rid"], second["w_rid"])
	}
	if _, ok := params["wts"]; ok {
		t.Fatal("Sign mutated the caller's parameter map")
	}
}

func TestSignedQueryOrdering(t *testing.T) {
	signer := frozenSigner(1702204169)
	query := signer.SignedQuery(map[string]string{
		"zab": "1919810",
		"foo": "114",
		"bar": "514",
	}, signer.Fallback())
	want := "bar=514&foo=114&w_rid=8f6f2b5b3d485fe1886cec6a0be8c5d4&wts=1702204169&zab=1919810"
	if query != want {
		t.Fatalf("SignedQuery = %q, want %q", query, want)
	}
}

func TestWbiEscape(t *testing.T) {
	if got := wbiEscape("a b/c"); got != "a%20b%2Fc" {
		t.Fatalf("wbiEscape = %q, want a%%20b%%2Fc", got)
	}
}

func TestKeyFromWbiURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://i0.hdslb.com/bfs/wbi/7cd084941338484aae1ad9425b84077c.png", "7cd084941338484aae1ad9425b84077c"},
		{"nav_returned_garbage", "nav_returned_garbage"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := keyFromWbiURL(tc.raw); got != tc.want {
			t.Errorf("keyFromWbiURL(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
