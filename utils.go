package folio

import (
	"regexp"
	"strings"
)

var unsafeFileNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SafeFileName sanitizes a user-supplied file name for use in a storage
// key. Every character outside [A-Za-z0-9._-] becomes "_"; a name that
// sanitizes to nothing falls back to "ebook".
func SafeFileName(fileName string) string {
	cleaned := unsafeFileNameChars.ReplaceAllString(fileName, "_")
	if cleaned == "" {
		return "ebook"
	}
	return cleaned
}

// HeaderSafeFileName strips quote and newline characters so a file name
// can be embedded in a Content-Disposition value without header
// injection.
func HeaderSafeFileName(fileName string) string {
	return strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(fileName)
}

// DisplayContentType derives the content type used for responses.
// PDF and EPUB extensions override the stored type: some upload paths
// declare a generic MIME type, and browsers won't render those inline.
func DisplayContentType(fileName, stored string) string {
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".epub"):
		return "application/epub+zip"
	default:
		return stored
	}
}

// ContentDisposition renders a Content-Disposition header value with a
// quoted file name. The name must already be header-safe.
func ContentDisposition(disposition, fileName string) string {
	return disposition + `; filename="` + fileName + `"`
}

// StorageKey builds the deterministic blob key for a book's file.
func StorageKey(bookID, fileName string) string {
	return "books/" + bookID + "/" + SafeFileName(fileName)
}
