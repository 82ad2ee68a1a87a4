package image

import (
	"bytes"
	"context"
	"strings"

	"inkwell-server-go/internal/domain/upload"
	"inkwell-server-go/internal/platform/logging"
)

// FormatFromMIME maps an image MIME type to the validator's format
// name: "image/png" becomes "png".
func FormatFromMIME(mime string) string {
	return strings.ToLower(strings.TrimPrefix(mime, "image/"))
}

// NewUploadCheck adapts the pipeline into a pre-send check: files that
// fail validation never call next, which ends their chain without a
// send. Files that pass continue with the sanitised bytes.
func NewUploadCheck(pipeline *Pipeline, logger *logging.Logger) upload.CheckFunc {
	return func(file upload.File, next func(upload.File)) {
		output, err := pipeline.Process(context.Background(), Input{
			Reader:         bytes.NewReader(file.Data),
			DeclaredFormat: FormatFromMIME(file.MIME),
			Source:         file.Name,
		})
		if err != nil {
			logger.WarnTag("Image", "rejecting %q: %v", file.Name, err)
			return
		}
		file.Data = output.Bytes
		next(file)
	}
}
