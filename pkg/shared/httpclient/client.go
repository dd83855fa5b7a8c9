// Zaparoo Runners
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Runners.
//
// Zaparoo Runners is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Runners is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Runners.  If not, see <http://www.gnu.org/licenses/>.

package httpclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ZaparooProject/zaparoo-runners/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	// DownloadHeaderTimeout bounds the wait for an archive server to respond.
	DownloadHeaderTimeout = 20 * time.Second
	// copyBufferSize matches the chunk size progress is reported at.
	copyBufferSize = 1024 * 1024
)

// ErrStatus is returned for any non-2xx response.
var ErrStatus = errors.New("invalid status code")

// AuthTransport provides automatic authentication for HTTP requests based on auth.toml
type AuthTransport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper interface with automatic authentication
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Base == nil {
		t.Base = http.DefaultTransport
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", config.UserAgent())
	}

	creds := config.LookupAuth(config.GetAuthCreds(), req.URL.String())
	if creds != nil {
		if creds.Bearer != "" {
			req.Header.Set("Authorization", "Bearer "+creds.Bearer)
		} else if creds.Username != "" {
			auth := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
			req.Header.Set("Authorization", "Basic "+auth)
		}
	}

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform HTTP round trip: %w", err)
	}
	return resp, nil
}

// DefaultTransport provides a configured transport with connection pooling and reasonable timeouts
var DefaultTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ResponseHeaderTimeout: 30 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
}

// Client provides an HTTP client with authentication and sensible defaults
type Client struct {
	*http.Client
}

// NewClient creates a new HTTP client with authentication support
func NewClient() *Client {
	return NewClientWithTimeout(0)
}

// NewClientWithTimeout creates a new HTTP client with an overall request timeout.
func NewClientWithTimeout(timeout time.Duration) *Client {
	return &Client{
		Client: &http.Client{
			Transport: &AuthTransport{
				Base: DefaultTransport,
			},
			Timeout: timeout,
		},
	}
}

// NewDownloadClient creates a client for large streamed downloads. There is
// no overall deadline, only a limit on waiting for response headers.
func NewDownloadClient() *Client {
	tr := DefaultTransport.Clone()
	tr.ResponseHeaderTimeout = DownloadHeaderTimeout
	return &Client{
		Client: &http.Client{
			Transport: &AuthTransport{Base: tr},
		},
	}
}

// Progress is called after each chunk is written. total is -1 when the
// server did not send a content length.
type Progress func(written, total int64)

// DownloadFileArgs contains arguments for file download operations
type DownloadFileArgs struct {
	// Fs is where the file is written, the OS filesystem when nil.
	Fs         afero.Fs
	Progress   Progress
	URL        string
	OutputPath string
	TempPath   string
}

type progressWriter struct {
	w        io.Writer
	progress Progress
	written  int64
	total    int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.progress != nil && n > 0 {
		p.progress(p.written, p.total)
	}
	//nolint:wrapcheck // io.Writer contract
	return n, err
}

// DownloadFile streams the given URL to the output path. Incomplete or
// failed downloads are removed.
func (c *Client) DownloadFile(ctx context.Context, args DownloadFileArgs) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("error getting url: %w", err)
	}
	if resp == nil {
		return errors.New("received nil response")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("error closing response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	fsys := args.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	outputPath := args.OutputPath
	if args.TempPath != "" {
		outputPath = args.TempPath
	}

	file, err := fsys.Create(outputPath) // #nosec G304 - outputPath is validated by caller
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}

	removePartial := func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msgf("error closing file: %s", outputPath)
		}
		if removeErr := fsys.Remove(outputPath); removeErr != nil {
			log.Warn().Err(removeErr).Msgf("error removing partial download: %s", outputPath)
		}
	}

	pw := &progressWriter{
		w:        file,
		progress: args.Progress,
		total:    resp.ContentLength,
	}
	written, err := io.CopyBuffer(pw, resp.Body, make([]byte, copyBufferSize))
	if err != nil {
		removePartial()
		return fmt.Errorf("error downloading file: %w", err)
	}

	expected := resp.ContentLength
	if expected > 0 && written != expected {
		removePartial()
		return fmt.Errorf("download incomplete: expected %d bytes, got %d", expected, written)
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("error closing file: %w", err)
	}

	if args.TempPath != "" && args.TempPath != args.OutputPath {
		if err := fsys.Rename(args.TempPath, args.OutputPath); err != nil {
			if removeErr := fsys.Remove(args.TempPath); removeErr != nil {
				log.Warn().Err(removeErr).Msgf("error removing temp file: %s", args.TempPath)
			}
			return fmt.Errorf("error renaming temp file: %w", err)
		}
	}

	return nil
}

// Get performs a GET request and returns the response
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.GetWithHeaders(ctx, url, nil)
}

// GetWithHeaders performs a GET request with extra request headers.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing GET request: %w", err)
	}

	return resp, nil
}

// DefaultClient provides a shared HTTP client instance
var DefaultClient = NewClient()
