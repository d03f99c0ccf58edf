// Package fingerprint computes stable content hashes for staleness
// detection. Cosmetic markup or whitespace edits keep the hash stable;
// changes to the visible text do not.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Normalize strips markup from chapter content and collapses all runs of
// whitespace to single spaces. Plain text passes through unchanged apart
// from whitespace collapsing.
func Normalize(content string) string {
	text := content
	if strings.ContainsRune(content, '<') {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err == nil {
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// Hash returns the hex sha256 digest of the normalized content.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(Normalize(content)))
	return hex.EncodeToString(sum[:])
}
