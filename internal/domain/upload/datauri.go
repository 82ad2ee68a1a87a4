package upload

import "encoding/base64"

// DataURI encodes the file as an RFC 2397 data URI. This is the whole
// local delivery path; no network involved.
func DataURI(f File) string {
	return "data:" + f.MIME + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}
