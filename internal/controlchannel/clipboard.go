package controlchannel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"sync"

	atotto "github.com/atotto/clipboard"
	xclipboard "golang.design/x/clipboard"
	_ "golang.org/x/image/webp"
)

const maxImageSize = 20 << 20

// Clipboard writes to the host clipboard.
type Clipboard interface {
	WriteText(text string) error
	WriteImage(pngData []byte) error
}

// SystemClipboard uses the OS clipboard. Image support needs a display
// and is initialised on first use.
type SystemClipboard struct {
	once    sync.Once
	initErr error
}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{}
}

func (c *SystemClipboard) WriteText(text string) error {
	return atotto.WriteAll(text)
}

func (c *SystemClipboard) WriteImage(pngData []byte) error {
	c.once.Do(func() { c.initErr = xclipboard.Init() })
	if c.initErr != nil {
		return fmt.Errorf("image clipboard unavailable: %w", c.initErr)
	}
	xclipboard.Write(xclipboard.FmtImage, pngData)
	return nil
}

func (s *Server) copyToClipboard(ctx context.Context, r ClipboardRequest) (string, error) {
	switch strings.ToLower(r.Type) {
	case "text", "":
		text := r.Text
		if text == "" {
			text = r.URL
		}
		if text == "" {
			return "", errors.New("Nothing to copy")
		}
		if err := s.clipboard.WriteText(text); err != nil {
			return "", fmt.Errorf("copying text: %w", err)
		}
		return "Text copied to clipboard", nil

	case "gif", "image":
		if r.URL == "" {
			return "", errors.New("Image URL is required")
		}
		pngData, err := s.fetchImage(ctx, r.URL)
		if err != nil {
			return "", err
		}
		if err := s.clipboard.WriteImage(pngData); err != nil {
			s.log.Warn("image clipboard failed, copying link instead", "err", err)
			if textErr := s.clipboard.WriteText(r.URL); textErr != nil {
				return "", fmt.Errorf("copying image: %w", err)
			}
			return "Link copied to clipboard", nil
		}
		return "Image copied to clipboard", nil
	}
	return "", fmt.Errorf("Unsupported clipboard type: %s", r.Type)
}

// fetchImage downloads url and re-encodes its first frame as PNG.
func (s *Server) fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid image url: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading image: HTTP %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	return buf.Bytes(), nil
}
