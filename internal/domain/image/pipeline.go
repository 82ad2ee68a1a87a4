// Package image validates incoming image payloads: declared-format
// allow list, magic byte checks, decode-based dimension and pixel caps,
// and an optional deep scan for embedded executables and archives.
package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync/atomic"

	"inkwell-server-go/internal/platform/config"
	"inkwell-server-go/internal/platform/logging"
)

// Pipeline orchestrates streaming ingestion, validation, and encoding
// of image payloads.
type Pipeline struct {
	validator *SecurityValidator
	logger    *logging.Logger
	security  *config.SecurityConfig

	processed         atomic.Int64
	failedValidations atomic.Int64
	securityIncidents atomic.Int64
}

// Options configures the pipeline behaviour.
type Options struct {
	Security *config.SecurityConfig
	Logger   *logging.Logger
}

// Input describes a streaming image payload.
type Input struct {
	Reader         io.Reader
	DeclaredFormat string
	Source         string
}

// Output contains the sanitised artefacts produced by the pipeline.
type Output struct {
	Base64       string
	Base64Reader io.ReadSeeker
	Bytes        []byte
	Format       string
	Validation   ValidationResult
}

// NewPipeline constructs a streaming image pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Security == nil {
		return nil, fmt.Errorf("security config is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger
	}

	return &Pipeline{
		validator: NewSecurityValidator(opts.Security, opts.Logger),
		logger:    opts.Logger,
		security:  opts.Security,
	}, nil
}

// Process streams the input through validation and base64 encoding in
// one pass.
func (p *Pipeline) Process(ctx context.Context, input Input) (*Output, error) {
	if input.Reader == nil {
		return nil, fmt.Errorf("image reader is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.processed.Add(1)

	maxSize := p.security.MaxFileSize
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}

	limited := &io.LimitedReader{
		R: input.Reader,
		N: maxSize + 1,
	}

	rawBuf := bytes.NewBuffer(make([]byte, 0, 32*1024))
	base64Buf := bytes.NewBuffer(make([]byte, 0, 64*1024))

	encoder := base64.NewEncoder(base64.StdEncoding, base64Buf)
	writer := io.MultiWriter(rawBuf, encoder)

	if _, err := io.Copy(writer, limited); err != nil {
		p.failedValidations.Add(1)
		return nil, fmt.Errorf("stream image bytes: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("finalise base64 encoding: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("image processing cancelled: %w", err)
	}

	if limited.N <= 0 {
		p.failedValidations.Add(1)
		return nil, fmt.Errorf("image exceeds maximum size of %d bytes", maxSize)
	}

	rawBytes := rawBuf.Bytes()
	validation := p.validator.ValidateBytes(rawBytes, input.DeclaredFormat)
	if !validation.IsValid {
		p.failedValidations.Add(1)
		if validation.SecurityRisk != "" {
			p.securityIncidents.Add(1)
		}
		if validation.Error != nil {
			return nil, validation.Error
		}
		return nil, fmt.Errorf("image validation failed")
	}

	sanitised := make([]byte, len(rawBytes))
	copy(sanitised, rawBytes)

	base64Data := base64Buf.String()

	return &Output{
		Base64:       base64Data,
		Base64Reader: bytes.NewReader([]byte(base64Data)),
		Bytes:        sanitised,
		Format:       validation.Format,
		Validation:   validation,
	}, nil
}

// Metrics returns a snapshot of the pipeline counters.
func (p *Pipeline) Metrics() Metrics {
	return Metrics{
		TotalProcessed:    p.processed.Load(),
		FailedValidations: p.failedValidations.Load(),
		SecurityIncidents: p.securityIncidents.Load(),
	}
}
