package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Store uploads bytes under key and returns a URL that does not expire.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

const mediaPrefix = "media"

// ObjectKey derives a storage key from a suggested file name and the content
// itself. Equal bytes under the same name always map to the same key.
func ObjectKey(suggestedName, contentType string, data []byte) string {
	ext := strings.ToLower(path.Ext(suggestedName))
	stem := strings.TrimSuffix(path.Base(strings.ReplaceAll(suggestedName, "\\", "/")), path.Ext(suggestedName))
	if ext == "" || !isSafeExt(ext) {
		ext = ExtensionForMIME(contentType)
	}
	stem = slugify(stem)
	if stem == "" {
		stem = "asset"
	}
	sum := sha256.Sum256(data)
	return path.Join(mediaPrefix, stem+"-"+hex.EncodeToString(sum[:8])+ext)
}

// ExtensionForMIME maps the media types the generators return to a file
// extension.
func ExtensionForMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ".bin"
	}
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// slugify folds the name to lowercase ASCII with dashes between words.
func slugify(name string) string {
	folded, _, err := transform.String(foldDiacritics, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > 64 {
		out = strings.TrimRight(out[:64], "-")
	}
	return out
}

func isSafeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
