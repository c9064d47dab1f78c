package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

const (
	extMP3  = ".mp3"
	extWAV  = ".wav"
	extFLAC = ".flac"
	extOGG  = ".ogg"
	extOGA  = ".oga"
)

// maxRemoteSize bounds how much of a remote source is buffered in memory
const maxRemoteSize = 256 << 20

// Open resolves a source locator and decodes it
func Open(ctx context.Context, locator string) (beep.StreamSeekCloser, beep.Format, error) {
	rc, ext, err := openLocator(ctx, locator)
	if err != nil {
		return nil, beep.Format{}, err
	}

	streamer, format, err := decode(rc, ext)
	if err != nil {
		_ = rc.Close()
		return nil, beep.Format{}, fmt.Errorf("failed to decode %s: %w", locator, err)
	}
	return streamer, format, nil
}

// openLocator returns a seekable reader for a file path, file:// URI or
// http(s) URL, along with the lower-cased file extension
func openLocator(ctx context.Context, locator string) (io.ReadCloser, string, error) {
	if locator == "" {
		return nil, "", fmt.Errorf("empty source locator")
	}

	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // "C:\..." parses as scheme "c"
		f, err := os.Open(locator)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", locator, err)
		}
		return f, strings.ToLower(filepath.Ext(locator)), nil
	}

	switch u.Scheme {
	case "file":
		path := u.Path
		f, err := os.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", path, err)
		}
		return f, strings.ToLower(filepath.Ext(path)), nil
	case "http", "https":
		data, err := fetch(ctx, u.String())
		if err != nil {
			return nil, "", err
		}
		return nopCloser{bytes.NewReader(data)}, strings.ToLower(filepath.Ext(u.Path)), nil
	default:
		return nil, "", fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}
}

// fetch downloads a remote source into memory so the decoder can seek
func fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	if len(data) > maxRemoteSize {
		return nil, fmt.Errorf("source %s exceeds %d bytes", rawURL, maxRemoteSize)
	}
	return data, nil
}

func decode(rc io.ReadCloser, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	switch ext {
	case extMP3:
		return mp3.Decode(rc)
	case extWAV:
		return wav.Decode(rc)
	case extFLAC:
		return flac.Decode(rc)
	case extOGG, extOGA:
		return vorbis.Decode(rc)
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported audio format %q", ext)
	}
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
