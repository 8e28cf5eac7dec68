package dav

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/davsync/davsync/internal/daverr"
	"github.com/davsync/davsync/internal/retry"
)

// TestConnection runs a depth 0 PROPFIND against the server root.
func (c *Client) TestConnection(ctx context.Context) error {
	return c.TestConnectionWithProgress(ctx, nil)
}

// TestConnectionWithProgress is TestConnection reporting retry progress to report.
func (c *Client) TestConnectionWithProgress(ctx context.Context, report func(retry.Progress)) error {
	_, err := runWithProgress(ctx, c, true, func(ctx context.Context) (struct{}, error) {
		resp, err := c.send(ctx, request{
			method:  methodPropfind,
			url:     c.baseURL,
			body:    propfindBody,
			headers: map[string]string{HeaderDepth: "0", HeaderContentType: "application/xml; charset=utf-8"},
		})
		if err != nil {
			return struct{}{}, err
		}
		switch resp.GetStatusCode() {
		case http.StatusOK, http.StatusMultiStatus:
			return struct{}{}, nil
		default:
			return struct{}{}, c.statusError(resp, "test connection")
		}
	}, report)
	if err != nil {
		slog.Warn("dav", "op", "test", "server", c.baseURL, "error", err)
		return err
	}
	slog.Debug("dav", "op", "test", "server", c.baseURL, "status", "ok")
	return nil
}

// FileExists issues a HEAD request for remotePath.
func (c *Client) FileExists(ctx context.Context, remotePath string) (bool, error) {
	target := c.url(remotePath)
	return run(ctx, c, true, func(ctx context.Context) (bool, error) {
		resp, err := c.send(ctx, request{method: http.MethodHead, url: target})
		if err != nil {
			return false, err
		}
		switch resp.GetStatusCode() {
		case http.StatusOK:
			return true, nil
		case http.StatusNotFound:
			return false, nil
		default:
			return false, c.statusError(resp, "exists")
		}
	})
}

// GetFileInfo fetches the metadata of remotePath. A missing resource yields (nil, nil).
func (c *Client) GetFileInfo(ctx context.Context, remotePath string) (*RemoteFileInfo, error) {
	target := c.url(remotePath)
	return run(ctx, c, true, func(ctx context.Context) (*RemoteFileInfo, error) {
		resp, err := c.send(ctx, request{
			method:  methodPropfind,
			url:     target,
			body:    propfindBody,
			headers: map[string]string{HeaderDepth: "0", HeaderContentType: "application/xml; charset=utf-8"},
		})
		if err != nil {
			return nil, err
		}
		switch resp.GetStatusCode() {
		case http.StatusMultiStatus, http.StatusOK:
			return parseFileInfo(resp.Bytes(), remotePath)
		case http.StatusNotFound:
			return nil, nil
		case http.StatusUnauthorized:
			return nil, daverr.New(daverr.KindAuthentication, "file info "+resp.Status)
		default:
			return nil, c.statusError(resp, "file info")
		}
	})
}

// DownloadFile fetches the content of remotePath.
func (c *Client) DownloadFile(ctx context.Context, remotePath string) ([]byte, error) {
	return c.DownloadFileWithProgress(ctx, remotePath, nil)
}

// DownloadFileWithProgress is DownloadFile reporting retry progress to report.
func (c *Client) DownloadFileWithProgress(ctx context.Context, remotePath string, report func(retry.Progress)) ([]byte, error) {
	target := c.url(remotePath)
	data, err := runWithProgress(ctx, c, true, func(ctx context.Context) ([]byte, error) {
		resp, err := c.send(ctx, request{method: http.MethodGet, url: target})
		if err != nil {
			return nil, err
		}
		if resp.GetStatusCode() != http.StatusOK {
			return nil, c.statusError(resp, "download")
		}
		return resp.Bytes(), nil
	}, report)
	if err != nil {
		return nil, err
	}
	slog.Debug("dav", "op", "download", "path", remotePath, "size", len(data))
	return data, nil
}

type uploadOptions struct {
	ifMatch string
}

type UploadOption func(*uploadOptions)

// WithIfMatch makes the upload conditional on the remote still carrying etag.
// A concurrent change fails the upload with a precondition error.
func WithIfMatch(etag string) UploadOption {
	return func(o *uploadOptions) {
		o.ifMatch = etag
	}
}

// UploadFile writes content to remotePath, creating the parent collection when needed.
func (c *Client) UploadFile(ctx context.Context, remotePath string, content []byte, opts ...UploadOption) error {
	return c.UploadFileWithProgress(ctx, remotePath, content, nil, opts...)
}

// UploadFileWithProgress is UploadFile reporting retry progress of the PUT to report.
func (c *Client) UploadFileWithProgress(ctx context.Context, remotePath string, content []byte, report func(retry.Progress), opts ...UploadOption) error {
	var o uploadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if parent := parentPath(remotePath); parent != "" {
		if err := c.ensureCollection(ctx, parent); err != nil {
			return err
		}
	}

	if content == nil {
		content = []byte{}
	}
	headers := map[string]string{HeaderContentType: "application/json"}
	if o.ifMatch != "" {
		headers[HeaderIfMatch] = o.ifMatch
	}

	target := c.url(remotePath)
	_, err := runWithProgress(ctx, c, true, func(ctx context.Context) (struct{}, error) {
		resp, err := c.send(ctx, request{method: http.MethodPut, url: target, body: content, headers: headers})
		if err != nil {
			return struct{}{}, err
		}
		switch resp.GetStatusCode() {
		case http.StatusOK, http.StatusCreated, http.StatusNoContent:
			return struct{}{}, nil
		default:
			return struct{}{}, c.statusError(resp, "upload")
		}
	}, report)
	if err != nil {
		return err
	}
	slog.Debug("dav", "op", "upload", "path", remotePath, "size", len(content))
	return nil
}

// DeleteFile removes remotePath. It is never retried so a delete that
// succeeded server side is not repeated.
func (c *Client) DeleteFile(ctx context.Context, remotePath string) error {
	target := c.url(remotePath)
	_, err := run(ctx, c, false, func(ctx context.Context) (struct{}, error) {
		resp, err := c.send(ctx, request{method: http.MethodDelete, url: target})
		if err != nil {
			return struct{}{}, err
		}
		switch resp.GetStatusCode() {
		case http.StatusOK, http.StatusNoContent, http.StatusAccepted:
			return struct{}{}, nil
		default:
			return struct{}{}, c.statusError(resp, "delete")
		}
	})
	if err == nil {
		slog.Debug("dav", "op", "delete", "path", remotePath)
	}
	return err
}

// CreateDirectory creates the collection at remotePath. An existing collection is not an error.
func (c *Client) CreateDirectory(ctx context.Context, remotePath string) error {
	_, err := c.mkcol(ctx, remotePath)
	return err
}

var errParentMissing = errors.New("parent collection missing")

// mkcol creates a single collection. A 409 means an intermediate collection
// is missing and is reported as errParentMissing.
func (c *Client) mkcol(ctx context.Context, remotePath string) (struct{}, error) {
	target := c.url(remotePath) + pathSeparator
	return run(ctx, c, true, func(ctx context.Context) (struct{}, error) {
		resp, err := c.send(ctx, request{method: methodMkcol, url: target})
		if err != nil {
			return struct{}{}, err
		}
		switch resp.GetStatusCode() {
		case http.StatusCreated, http.StatusOK, http.StatusMethodNotAllowed:
			// 405 means the collection already exists
			return struct{}{}, nil
		case http.StatusConflict:
			return struct{}{}, daverr.Wrap(daverr.KindNotFound, "mkcol "+remotePath, errParentMissing)
		default:
			return struct{}{}, c.statusError(resp, "mkcol")
		}
	})
}

// ensureCollection creates remotePath, walking up when intermediate collections are missing.
func (c *Client) ensureCollection(ctx context.Context, remotePath string) error {
	_, err := c.mkcol(ctx, remotePath)
	if err == nil || !errors.Is(err, errParentMissing) {
		return err
	}

	parent := parentPath(remotePath)
	if parent == "" {
		return err
	}
	if err := c.ensureCollection(ctx, parent); err != nil {
		return err
	}
	_, err = c.mkcol(ctx, remotePath)
	return err
}
