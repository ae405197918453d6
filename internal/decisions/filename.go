package decisions

import (
	"fmt"
	"strings"

	"github.com/mlefevre/upc-decisions/internal/hash/sha256"
)

// maxSlugLen bounds each human-readable filename component.
const maxSlugLen = 40

// DocumentFilename derives the deterministic local filename for a record's
// document. The name embeds date, first party, and court for operators
// browsing the directory, plus a short registry digest so that records
// sharing all three still map to distinct files. The derivation is the join
// key between the tabular store and the document directory; changing it
// orphans previously fetched documents.
func DocumentFilename(r Record) string {
	date := r.DisplayDate()
	if date == "" {
		date = "undated"
	}
	parts := []string{
		slug(strings.ReplaceAll(date, "/", "-")),
		slug(firstParty(r.Parties)),
		slug(r.Court),
		sha256.ShortHex([]byte(r.Registry)),
	}
	return strings.Join(parts, "_") + ".pdf"
}

// firstParty returns the leading party name from the scraped parties cell.
func firstParty(parties string) string {
	if i := strings.IndexByte(parties, '\n'); i >= 0 {
		parties = parties[:i]
	}
	for _, sep := range []string{" v. ", " v ", " vs. ", " vs "} {
		if i := strings.Index(parties, sep); i >= 0 {
			parties = parties[:i]
			break
		}
	}
	return parties
}

// slug lowercases s and maps runs of non-alphanumerics to single dashes.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "unknown"
	}
	return out
}

// Disambiguate appends a numeric suffix to name when taken reports it as
// already used, so no two fetch tasks share a destination file.
func Disambiguate(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	base := strings.TrimSuffix(name, ".pdf")
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d.pdf", base, i)
		if !taken(candidate) {
			return candidate
		}
	}
}
