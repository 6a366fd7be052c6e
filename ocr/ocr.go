//go:build ocr

package ocr

import (
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Client wraps Tesseract. It is safe for concurrent use; calls are
// serialized because the engine holds per-image state.
type Client struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates a new OCR client.
// The client should be closed when no longer needed to release resources.
func New() (*Client, error) {
	return &Client{client: gosseract.NewClient()}, nil
}

// Close releases OCR resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.client.Close()
	c.client = nil
	return err
}

// RecognizeFile performs OCR on the image at path and returns it as alt
// text.
func (c *Client) RecognizeFile(path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.client.SetImage(path); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := c.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return AltText(text), nil
}

// RecognizeImage performs OCR on encoded image data (PNG, TIFF, JPEG, etc.).
func (c *Client) RecognizeImage(imageData []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := c.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return AltText(text), nil
}

// SetLanguage sets the language(s) for recognition, "+" separated
// (e.g. "eng+fra"). Default is "eng".
func (c *Client) SetLanguage(lang string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client.SetLanguage(lang)
}
