package upload

import (
	"net/http"
	"strings"
)

// File is a pending attachment moving through the intake chain. Created
// at selection, drop, or paste time and discarded once the chain
// finishes; never persisted by the orchestrator.
type File struct {
	Name string
	MIME string
	Data []byte
}

// IsImage reports whether the file declares an image MIME type.
func (f File) IsImage() bool {
	return strings.HasPrefix(f.MIME, "image/")
}

// Sniffed returns the file with its MIME type detected from the payload
// when the intake left it empty.
func (f File) Sniffed() File {
	if f.MIME == "" && len(f.Data) > 0 {
		f.MIME = http.DetectContentType(f.Data)
	}
	return f
}
