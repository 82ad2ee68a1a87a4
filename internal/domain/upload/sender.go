package upload

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/bytedance/sonic"
)

// sendRequest issues the built-in multipart upload and normalizes the
// outcome. Success is strictly HTTP 200 with a JSON body; every other
// status, other 2xx codes included, is a failure. Transport-level
// failures come back with code 0.
func (o *Orchestrator) sendRequest(file File) (any, *Error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	part, err := form.CreateFormFile(o.cfg.FieldName, file.Name)
	if err != nil {
		return nil, &Error{Code: 0, Type: "form error", Body: err.Error()}
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, &Error{Code: 0, Type: "form error", Body: err.Error()}
	}
	if o.cfg.CSRF != nil {
		if err := form.WriteField(o.cfg.CSRF.Token, o.cfg.CSRF.Hash); err != nil {
			return nil, &Error{Code: 0, Type: "form error", Body: err.Error()}
		}
	}
	if err := form.Close(); err != nil {
		return nil, &Error{Code: 0, Type: "form error", Body: err.Error()}
	}

	req, err := http.NewRequest(o.cfg.Method, o.cfg.URL, body)
	if err != nil {
		return nil, &Error{Code: 0, Type: "request error", Body: err.Error()}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	for name, value := range o.cfg.Headers {
		req.Header.Set(name, value)
	}

	resp, err := o.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, &Error{Code: 0, Type: "transport error", Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: 0, Type: "transport error", Body: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Code: resp.StatusCode,
			Type: http.StatusText(resp.StatusCode),
			Body: string(raw),
		}
	}

	var payload any
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Code: resp.StatusCode, Type: "invalid response", Body: string(raw)}
	}
	return payload, nil
}
