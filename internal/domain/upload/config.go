package upload

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"inkwell-server-go/internal/platform/errors"
	"inkwell-server-go/internal/platform/logging"
)

// PastePolicy selects how pasted images are delivered.
type PastePolicy string

const (
	// PasteUpload routes pasted images through the same check and send
	// chain as selection and drop.
	PasteUpload PastePolicy = "upload"
	// PasteInline bypasses the send strategy and inserts pasted images
	// as data URIs directly.
	PasteInline PastePolicy = "inline"
)

// CSRF adds one extra field to the multipart form: Token is the field
// name, Hash the value.
type CSRF struct {
	Token string
	Hash  string
}

// InsertFunc is the continuation that embeds a payload into the document.
type InsertFunc func(payload any)

// CheckFunc runs before a file is sent. next must be called exactly once
// with the possibly replaced file for the chain to proceed; a check that
// never calls it stalls that file's chain silently.
type CheckFunc func(file File, next func(File))

// UploaderFunc fully replaces the built-in send path.
type UploaderFunc func(file File, insert InsertFunc)

// SuccessFunc receives the success payload and the insert continuation.
type SuccessFunc func(payload any, insert InsertFunc)

// FailureFunc receives a normalized upload failure.
type FailureFunc func(uploadErr Error)

// Error is the normalized upload failure: HTTP status code (0 for
// transport-level failures), status text, raw response body.
type Error struct {
	Code int    `json:"code"`
	Type string `json:"type"`
	Body string `json:"body"`
}

func (e Error) Error() string {
	return fmt.Sprintf("image upload failed: [%d] %s", e.Code, e.Type)
}

// Config is the orchestrator configuration. Every optional field is
// resolved to its default exactly once, at construction; the resolved
// copy is immutable afterwards and later edits to the original are
// never observed.
type Config struct {
	// URL is the upload endpoint. Empty means no server: files are
	// delivered as base64 data URIs instead.
	URL string
	// Method defaults to POST.
	Method string
	// FieldName keys the file part of the multipart form. Defaults to
	// "image".
	FieldName string
	// WithCredentials equips the default HTTP client with a cookie jar.
	// A caller-supplied HTTPClient is used as-is.
	WithCredentials bool
	// Headers are applied to the request verbatim, after the multipart
	// content type, so callers can override it.
	Headers map[string]string
	CSRF    *CSRF

	// CustomUploader, when set, wins over the network path even with a
	// URL configured.
	CustomUploader  UploaderFunc
	CallbackOK      SuccessFunc
	CallbackKO      FailureFunc
	CheckBeforeSend CheckFunc

	HTTPClient  *http.Client
	PastePolicy PastePolicy
	// Notifier receives the default failure alert. Without one the
	// default CallbackKO logs at error level instead.
	Notifier Notifier
}

// resolveConfig bakes defaults into a private copy of cfg. Shared
// reference fields are copied so the resolved config cannot be mutated
// through the original.
func resolveConfig(cfg Config, logger *logging.Logger) (Config, error) {
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if cfg.FieldName == "" {
		cfg.FieldName = "image"
	}

	switch cfg.PastePolicy {
	case "":
		cfg.PastePolicy = PasteUpload
	case PasteUpload, PasteInline:
	default:
		return cfg, errors.New(errors.KindConfig, "upload.resolve",
			fmt.Sprintf("unknown paste policy %q", cfg.PastePolicy))
	}

	if len(cfg.Headers) > 0 {
		headers := make(map[string]string, len(cfg.Headers))
		for name, value := range cfg.Headers {
			headers[name] = value
		}
		cfg.Headers = headers
	}
	if cfg.CSRF != nil {
		csrf := *cfg.CSRF
		cfg.CSRF = &csrf
	}

	if cfg.HTTPClient == nil {
		client := &http.Client{}
		if cfg.WithCredentials {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return cfg, errors.Wrap(errors.KindConfig, "upload.resolve", "failed to create cookie jar", err)
			}
			client.Jar = jar
		}
		cfg.HTTPClient = client
	}

	if cfg.CheckBeforeSend == nil {
		cfg.CheckBeforeSend = func(file File, next func(File)) {
			next(file)
		}
	}
	if cfg.CallbackOK == nil {
		cfg.CallbackOK = func(payload any, insert InsertFunc) {
			insert(payload)
		}
	}
	if cfg.CallbackKO == nil {
		notifier := cfg.Notifier
		cfg.CallbackKO = func(uploadErr Error) {
			if notifier != nil {
				notifier.Alert(uploadErr.Error())
				return
			}
			logger.ErrorTag("Upload", "%s: %s", uploadErr.Error(), uploadErr.Body)
		}
	}

	return cfg, nil
}
