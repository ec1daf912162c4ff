// Package api talks to the trajectory viewer's HTTP surface: the
// healthcheck probe and the session upload endpoint.
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rangelab/trajector/internal/storage"
)

const requestTimeout = 30 * time.Second

// Client handles communication with the trajectory viewer.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New builds a client for the viewer at baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// Healthcheck checks if the trajectory viewer is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.client.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("viewer healthcheck: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("viewer healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// Upload streams a gzipped JSON session file to the viewer as a multipart
// form carrying the shared secret and the session metadata.
func (c *Client) Upload(filePath string, meta storage.UploadMetadata) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open upload file: %w", err)
	}
	defer f.Close()

	body, contentType, formErr := c.streamForm(f, filepath.Base(filePath), meta)

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/sessions/add", body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post upload: %w", err)
	}
	defer resp.Body.Close()

	if err := <-formErr; err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("viewer rejected upload: status %d", resp.StatusCode)
	}
	return nil
}

// streamForm writes the metadata fields and the file into a multipart body
// over a pipe. The returned channel yields the writer goroutine's result.
func (c *Client) streamForm(f io.Reader, filename string, meta storage.UploadMetadata) (io.Reader, string, <-chan error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	errc := make(chan error, 1)

	go func() {
		defer pw.Close()
		defer form.Close()

		fields := [...][2]string{
			{"secret", c.apiKey},
			{"filename", filename},
			{"siteName", meta.SiteName},
			{"sessionName", meta.SessionName},
			{"sessionDuration", fmt.Sprintf("%f", meta.SessionDuration)},
			{"tag", meta.Tag},
		}
		for _, field := range fields {
			if err := form.WriteField(field[0], field[1]); err != nil {
				errc <- fmt.Errorf("write form field %s: %w", field[0], err)
				return
			}
		}

		part, err := form.CreateFormFile("file", filename)
		if err != nil {
			errc <- fmt.Errorf("create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			errc <- fmt.Errorf("copy session file: %w", err)
			return
		}
		errc <- nil
	}()

	return pr, form.FormDataContentType(), errc
}
