// Package pathhash implements the directory-name codecs adapters use
// to recover a project's absolute path from (or derive it into) the
// directory name an assistant chose for its per-project storage.
package pathhash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// EncodeClaudeCode turns an absolute project path into the directory
// name Claude Code uses under ~/.claude/projects: every character
// that is not alphanumeric becomes a dash. On windows-like hosts the
// path's backslashes are normalized to slashes first, and the
// drive-letter colon becomes a dash before the generic substitution.
func EncodeClaudeCode(absPath string, windowsLike bool) string {
	p := absPath
	if windowsLike {
		p = strings.ReplaceAll(p, `\`, "/")
	}
	var b strings.Builder
	b.Grow(len(p))
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// DecodeClaudeCode is best-effort inverse of EncodeClaudeCode: it
// cannot recover which dashes were originally slashes versus other
// punctuation, so it assumes every dash was a path separator. A
// leading dash implies a Unix root; a leading single-letter-then-dash
// implies a windows-like drive letter.
func DecodeClaudeCode(dirName string) string {
	if dirName == "" {
		return ""
	}
	parts := strings.Split(dirName, "-")
	// Drop the empty leading element produced by a leading dash.
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
		return "/" + strings.Join(parts, "/")
	}
	if len(parts) > 1 && len(parts[0]) == 1 {
		// "C--Users-foo": drive letter; the colon and the separator
		// after it both became dashes.
		rest := parts[1:]
		if rest[0] == "" {
			rest = rest[1:]
		}
		return parts[0] + ":/" + strings.Join(rest, "/")
	}
	return strings.Join(parts, "/")
}

// EncodePi encodes a path the way Pi Agent's CLI does: strip the
// leading slash, replace remaining slashes with dashes, wrap in a
// pair of dashes.
func EncodePi(absPath string) string {
	p := strings.TrimPrefix(absPath, "/")
	p = strings.ReplaceAll(p, "/", "-")
	return "--" + p + "--"
}

// HashDigests returns the md5, sha1, and sha256 hex digests of a
// string. Used by the Cursor adapter to compare a workspace directory
// name against several canonical path encodings (schema drift fallback
// chain, spec.md §4.1).
func HashDigests(s string) (md5Hex, sha1Hex, sha256Hex string) {
	m := md5.Sum([]byte(s))
	s1 := sha1.Sum([]byte(s))
	s256 := sha256.Sum256([]byte(s))
	return hex.EncodeToString(m[:]), hex.EncodeToString(s1[:]), hex.EncodeToString(s256[:])
}

// HashMatchesAny reports whether any hash digest of candidate equals
// dirName.
func HashMatchesAny(candidate, dirName string) bool {
	a, b, c := HashDigests(candidate)
	return dirName == a || dirName == b || dirName == c
}

// HashSHA256Hex is the Gemini CLI path-hash scheme: plain sha256 hex
// of the absolute project path.
func HashSHA256Hex(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(sum[:])
}
