package image

import (
	"bytes"
	"encoding/base64"
	stdimage "image"
	"image/png"
	"strings"
	"testing"

	"inkwell-server-go/internal/domain/upload"
	"inkwell-server-go/internal/platform/config"
	platformtesting "inkwell-server-go/internal/platform/testing"
)

func testSecurity() *config.SecurityConfig {
	return &config.SecurityConfig{
		MaxFileSize:    5 * 1024 * 1024,
		MaxPixels:      16 * 1024 * 1024,
		MaxWidth:       4096,
		MaxHeight:      4096,
		AllowedFormats: []string{"jpeg", "jpg", "png", "webp", "gif"},
		EnableDeepScan: true,
	}
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestValidator_AcceptsRealPNG(t *testing.T) {
	validator := NewSecurityValidator(testSecurity(), platformtesting.SetupTestLogger(t))

	result := validator.ValidateBytes(pngBytes(t, 2, 2), "png")
	if !result.IsValid {
		t.Fatalf("ValidateBytes() rejected a valid png: %v", result.Error)
	}
	if result.Format != "png" {
		t.Errorf("Format = %q, want png", result.Format)
	}
	if result.Width != 2 || result.Height != 2 {
		t.Errorf("dimensions = %dx%d, want 2x2", result.Width, result.Height)
	}
}

func TestValidator_RejectsOversizedFile(t *testing.T) {
	security := testSecurity()
	security.MaxFileSize = 10
	validator := NewSecurityValidator(security, platformtesting.SetupTestLogger(t))

	result := validator.ValidateBytes(pngBytes(t, 2, 2), "png")
	if result.IsValid {
		t.Fatal("ValidateBytes() accepted an oversized payload")
	}
	if result.SecurityRisk != "file too large" {
		t.Errorf("SecurityRisk = %q", result.SecurityRisk)
	}
}

func TestValidator_RejectsDisallowedFormat(t *testing.T) {
	validator := NewSecurityValidator(testSecurity(), platformtesting.SetupTestLogger(t))

	result := validator.ValidateBytes(pngBytes(t, 2, 2), "tiff")
	if result.IsValid {
		t.Fatal("ValidateBytes() accepted a disallowed format")
	}
	if result.SecurityRisk != "unapproved format" {
		t.Errorf("SecurityRisk = %q", result.SecurityRisk)
	}
}

func TestValidator_RejectsCorruptedData(t *testing.T) {
	validator := NewSecurityValidator(testSecurity(), platformtesting.SetupTestLogger(t))

	result := validator.ValidateBytes([]byte("definitely not an image"), "png")
	if result.IsValid {
		t.Fatal("ValidateBytes() accepted corrupted data")
	}
	if result.SecurityRisk != "corrupted image data" {
		t.Errorf("SecurityRisk = %q", result.SecurityRisk)
	}
}

func TestValidator_RejectsOversizedDimensions(t *testing.T) {
	validator := NewSecurityValidator(testSecurity(), platformtesting.SetupTestLogger(t))

	result := validator.ValidateBytes(pngBytes(t, 5000, 1), "png")
	if result.IsValid {
		t.Fatal("ValidateBytes() accepted oversized dimensions")
	}
	if result.SecurityRisk != "dimensions too large" {
		t.Errorf("SecurityRisk = %q", result.SecurityRisk)
	}
}

func TestValidator_RejectsPixelBomb(t *testing.T) {
	security := testSecurity()
	security.MaxPixels = 2
	validator := NewSecurityValidator(security, platformtesting.SetupTestLogger(t))

	result := validator.ValidateBytes(pngBytes(t, 2, 2), "png")
	if result.IsValid {
		t.Fatal("ValidateBytes() accepted an image over the pixel cap")
	}
	if result.SecurityRisk != "pixel count too high" {
		t.Errorf("SecurityRisk = %q", result.SecurityRisk)
	}
}

func TestValidator_ValidateBase64(t *testing.T) {
	validator := NewSecurityValidator(testSecurity(), platformtesting.SetupTestLogger(t))

	encoded := base64.StdEncoding.EncodeToString(pngBytes(t, 2, 2))
	result := validator.ValidateBase64(ImageData{Data: encoded, Format: "png"})
	if !result.IsValid {
		t.Fatalf("ValidateBase64() rejected a valid payload: %v", result.Error)
	}

	bad := validator.ValidateBase64(ImageData{Data: "!!not-base64!!", Format: "png"})
	if bad.IsValid {
		t.Fatal("ValidateBase64() accepted malformed base64")
	}
	if bad.SecurityRisk != "invalid base64 encoding" {
		t.Errorf("SecurityRisk = %q", bad.SecurityRisk)
	}

	empty := validator.ValidateBase64(ImageData{Format: "png"})
	if empty.IsValid || empty.Error == nil {
		t.Fatal("ValidateBase64() accepted an empty payload")
	}
}

func TestFormatFromMIME(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", "png"},
		{"image/JPEG", "jpeg"},
		{"image/webp", "webp"},
		{"text/plain", "text/plain"},
	}

	for _, tt := range tests {
		if got := FormatFromMIME(tt.mime); got != tt.want {
			t.Errorf("FormatFromMIME(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestPipeline_Process(t *testing.T) {
	pipeline, err := NewPipeline(Options{
		Security: testSecurity(),
		Logger:   platformtesting.SetupTestLogger(t),
	})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	raw := pngBytes(t, 4, 4)
	output, err := pipeline.Process(nil, Input{
		Reader:         bytes.NewReader(raw),
		DeclaredFormat: "png",
		Source:         "test.png",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if !bytes.Equal(output.Bytes, raw) {
		t.Error("Process() altered the payload bytes")
	}
	decoded, err := base64.StdEncoding.DecodeString(output.Base64)
	if err != nil {
		t.Fatalf("Base64 output does not decode: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Error("Base64 output does not round-trip to the payload")
	}
	if output.Format != "png" {
		t.Errorf("Format = %q, want png", output.Format)
	}

	metrics := pipeline.Metrics()
	if metrics.TotalProcessed != 1 || metrics.FailedValidations != 0 {
		t.Errorf("Metrics() = %+v", metrics)
	}
}

func TestPipeline_EnforcesSizeLimit(t *testing.T) {
	security := testSecurity()
	security.MaxFileSize = 64
	pipeline, err := NewPipeline(Options{
		Security: security,
		Logger:   platformtesting.SetupTestLogger(t),
	})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	_, err = pipeline.Process(nil, Input{
		Reader:         bytes.NewReader(bytes.Repeat([]byte{0xAB}, 256)),
		DeclaredFormat: "png",
	})
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum size") {
		t.Fatalf("Process() error = %v, want size limit error", err)
	}

	if metrics := pipeline.Metrics(); metrics.FailedValidations != 1 {
		t.Errorf("FailedValidations = %d, want 1", metrics.FailedValidations)
	}
}

func TestUploadCheck_PassesValidAndBlocksInvalid(t *testing.T) {
	pipeline, err := NewPipeline(Options{
		Security: testSecurity(),
		Logger:   platformtesting.SetupTestLogger(t),
	})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	check := NewUploadCheck(pipeline, platformtesting.SetupTestLogger(t))

	raw := pngBytes(t, 2, 2)
	var forwarded *upload.File
	check(upload.File{Name: "ok.png", MIME: "image/png", Data: raw}, func(f upload.File) {
		forwarded = &f
	})
	if forwarded == nil {
		t.Fatal("check blocked a valid image")
	}
	if !bytes.Equal(forwarded.Data, raw) {
		t.Error("check did not forward the sanitised bytes")
	}

	nextCalled := false
	check(upload.File{Name: "bad.png", MIME: "image/png", Data: []byte("junk")}, func(upload.File) {
		nextCalled = true
	})
	if nextCalled {
		t.Fatal("check forwarded an invalid image")
	}
}
