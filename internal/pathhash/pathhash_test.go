package pathhash

import "testing"

func TestEncodeDecodeClaudeCodeUnix(t *testing.T) {
	got := EncodeClaudeCode("/Users/foo/my_project", false)
	want := "-Users-foo-my-project"
	if got != want {
		t.Fatalf("EncodeClaudeCode() = %q, want %q", got, want)
	}
	if decoded := DecodeClaudeCode(got); decoded != "/Users/foo/my/project" {
		// Underscore information is lost on encode; decode recovers
		// the slash-joined skeleton, which is the documented best effort.
		t.Fatalf("DecodeClaudeCode() = %q", decoded)
	}
}

func TestEncodePi(t *testing.T) {
	got := EncodePi("/home/user/project")
	want := "--home-user-project--"
	if got != want {
		t.Fatalf("EncodePi() = %q, want %q", got, want)
	}
}

func TestHashMatchesAny(t *testing.T) {
	path := "/home/user/project"
	md5Hex, sha1Hex, sha256Hex := HashDigests(path)
	for _, h := range []string{md5Hex, sha1Hex, sha256Hex} {
		if !HashMatchesAny(path, h) {
			t.Fatalf("expected hash %q to match", h)
		}
	}
	if HashMatchesAny(path, "deadbeef") {
		t.Fatal("unexpected match for unrelated digest")
	}
}
