package registration

import (
	"net/http"
	"slices"
)

// MaxImageSize is the largest profile picture accepted, in bytes.
const MaxImageSize = 5 << 20

// AllowedImageTypes are the sniffed content types accepted for a profile picture.
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// ValidateImage checks a profile picture by its leading bytes and total size.
// PRE: head holds up to the first 512 bytes of the file
// POST: Returns the sniffed content type, or a ValidationError for the picture step
func ValidateImage(head []byte, size int64) (string, error) {
	contentType := http.DetectContentType(head)
	if !slices.Contains(AllowedImageTypes, contentType) {
		return "", &ValidationError{Step: StepProfilePicture, Msg: "Please select a valid image file (JPEG, PNG, GIF, or WebP)"}
	}
	if size > MaxImageSize {
		return "", &ValidationError{Step: StepProfilePicture, Msg: "Image size should be less than 5MB"}
	}
	return contentType, nil
}

// ExtensionFor returns the file extension stored uploads use for contentType.
func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}

// ContentTypeFor is the inverse of ExtensionFor. Unknown extensions yield "".
func ContentTypeFor(ext string) string {
	for _, ct := range AllowedImageTypes {
		if ExtensionFor(ct) == ext {
			return ct
		}
	}
	return ""
}
