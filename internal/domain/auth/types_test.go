package auth

import (
	"testing"
)

func TestBearerFromHeader(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":     "abc",
		"bearer  abc  ":  "abc",
		"Basic dXNlcg==": "",
		"Bearer":         "",
		"":               "",
	}
	for in, want := range cases {
		if got := BearerFromHeader(in); got != want {
			t.Fatalf("BearerFromHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIdentity_Valid(t *testing.T) {
	if (Identity{UserID: "  "}).Valid() {
		t.Fatalf("blank user id should be invalid")
	}
	if !(Identity{UserID: "u"}).Valid() {
		t.Fatalf("expected valid identity")
	}
}
