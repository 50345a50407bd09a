package dyntrans

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strings"
)

// HashText computes the SHA-256 hash of the trimmed text. Digests are
// compared for equality only, never ordered.
func HashText(text string) string {
	trimmed := strings.TrimSpace(text)
	hash := sha256.Sum256([]byte(trimmed))
	return hex.EncodeToString(hash[:])
}

// FingerprintView computes a content-level fingerprint over a view's items.
// Items are sorted by the full (ContentType, ContentID, Text) tuple first, so
// two views with the same item set produce identical fingerprints regardless
// of insertion order, even when items share an identity. Fields are
// length-prefixed before hashing so field boundaries cannot collide.
func FingerprintView(items []ContentItem) string {
	sorted := make([]ContentItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ContentType != sorted[j].ContentType {
			return sorted[i].ContentType < sorted[j].ContentType
		}
		if sorted[i].ContentID != sorted[j].ContentID {
			return sorted[i].ContentID < sorted[j].ContentID
		}
		return sorted[i].Text < sorted[j].Text
	})

	h := sha256.New()
	var lenBuf [8]byte
	writeField := func(s string) {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	for _, item := range sorted {
		writeField(item.ContentType)
		writeField(item.ContentID)
		writeField(item.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RecordKey builds the canonical store key for one translation record.
// Stores that key records by string (Redis, in-memory) use this everywhere
// so the two drivers always address the same entry.
func RecordKey(contentType, contentID, locale string) string {
	return contentType + ":" + contentID + ":" + locale
}
