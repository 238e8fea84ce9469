package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"fieldreport/internal/model"
)

// HTTPUploader posts the file as multipart form data to a fixed third-party
// media endpoint: <base>/<cloud-id>/{image|video}/upload with an unsigned
// upload preset identifying the destination bucket.
type HTTPUploader struct {
	Client  *http.Client
	BaseURL string
	CloudID string
	Preset  string
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
}

func (u *HTTPUploader) Upload(ctx context.Context, file File, kind model.MediaKind) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeForm(mw, file, u.Preset)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	endpoint := fmt.Sprintf("%s/%s/%s/upload", strings.TrimSuffix(u.BaseURL, "/"), u.CloudID, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return "", &Error{Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", &Error{StatusCode: resp.StatusCode}
	}

	var body uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &Error{Err: fmt.Errorf("parse response: %w", err)}
	}
	if body.SecureURL == "" {
		return "", &Error{Err: errors.New("parse response: missing secure_url")}
	}
	return body.SecureURL, nil
}

func writeForm(mw *multipart.Writer, file File, preset string) error {
	if err := mw.WriteField("upload_preset", preset); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", path.Base(file.Name()))
	if err != nil {
		return err
	}
	r, err := file.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(part, r)
	return err
}
