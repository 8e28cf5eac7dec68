package dav

import (
	"bytes"
	"encoding/xml"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/davsync/davsync/internal/daverr"
)

// RemoteFileInfo is the observable state of a remote resource.
type RemoteFileInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	IsDirectory  bool      `json:"is_directory"`
	// ETag is empty when the server does not report one.
	ETag string `json:"etag,omitempty"`
}

// NormalizedETag strips the weak prefix and quotes so tags from different
// responses compare equal.
func NormalizedETag(etag string) string {
	etag = strings.TrimSpace(etag)
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Trim(etag, `"`)
}

var propfindBody = []byte(`<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:">
  <D:prop>
    <D:displayname/>
    <D:getlastmodified/>
    <D:getcontentlength/>
    <D:getetag/>
    <D:resourcetype/>
  </D:prop>
</D:propfind>`)

// Elements are matched on the DAV: namespace, whatever prefix the server binds to it.
type multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []response `xml:"DAV: response"`
}

type response struct {
	Href      string     `xml:"DAV: href"`
	Propstats []propstat `xml:"DAV: propstat"`
	Status    string     `xml:"DAV: status"`
}

type propstat struct {
	Prop   prop   `xml:"DAV: prop"`
	Status string `xml:"DAV: status"`
}

type prop struct {
	DisplayName   *string       `xml:"DAV: displayname"`
	LastModified  *string       `xml:"DAV: getlastmodified"`
	ContentLength *string       `xml:"DAV: getcontentlength"`
	ETag          *string       `xml:"DAV: getetag"`
	ResourceType  *resourceType `xml:"DAV: resourcetype"`
}

type resourceType struct {
	Collection *struct{} `xml:"DAV: collection"`
}

// parseStatusLine extracts the code from "HTTP/1.1 200 OK".
func parseStatusLine(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}

// merge copies the properties set in other into p.
func (p *prop) merge(other prop) {
	if other.DisplayName != nil {
		p.DisplayName = other.DisplayName
	}
	if other.LastModified != nil {
		p.LastModified = other.LastModified
	}
	if other.ContentLength != nil {
		p.ContentLength = other.ContentLength
	}
	if other.ETag != nil {
		p.ETag = other.ETag
	}
	if other.ResourceType != nil {
		p.ResourceType = other.ResourceType
	}
}

// parseFileInfo decodes a depth 0 multistatus body describing remotePath.
func parseFileInfo(body []byte, remotePath string) (*RemoteFileInfo, error) {
	var ms multistatus
	dec := xml.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&ms); err != nil {
		return nil, daverr.Wrap(daverr.KindParse, "decode multistatus", err)
	}
	if len(ms.Responses) == 0 {
		return nil, daverr.New(daverr.KindParse, "multistatus without response")
	}

	// depth 0 yields the target itself first
	resp := ms.Responses[0]
	if code := parseStatusLine(resp.Status); code == http.StatusNotFound {
		return nil, nil
	}

	var props prop
	found := false
	for _, ps := range resp.Propstats {
		code := parseStatusLine(ps.Status)
		if code < 200 || code > 299 {
			continue
		}
		props.merge(ps.Prop)
		found = true
	}
	if !found {
		return nil, daverr.New(daverr.KindParse, "no successful propstat")
	}

	info := &RemoteFileInfo{
		Path:        normalizePath(remotePath),
		IsDirectory: props.ResourceType != nil && props.ResourceType.Collection != nil,
	}

	info.Name = nameFromHref(resp.Href)
	if props.DisplayName != nil && strings.TrimSpace(*props.DisplayName) != "" {
		info.Name = strings.TrimSpace(*props.DisplayName)
	}
	if info.Name == "" {
		info.Name = path.Base(info.Path)
	}

	if props.ETag != nil {
		info.ETag = strings.TrimSpace(*props.ETag)
	}

	if props.ContentLength != nil {
		size, err := strconv.ParseInt(strings.TrimSpace(*props.ContentLength), 10, 64)
		if err != nil {
			return nil, daverr.Wrap(daverr.KindParse, "getcontentlength", err)
		}
		info.Size = size
	} else if !info.IsDirectory {
		return nil, daverr.New(daverr.KindParse, "getcontentlength missing")
	}

	if props.LastModified != nil {
		t, err := parseHTTPTime(*props.LastModified)
		if err != nil {
			return nil, daverr.Wrap(daverr.KindParse, "getlastmodified", err)
		}
		info.LastModified = t
	} else if !info.IsDirectory {
		return nil, daverr.New(daverr.KindParse, "getlastmodified missing")
	}

	return info, nil
}

func parseHTTPTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := http.ParseTime(s); err == nil {
		return t.UTC(), nil
	}
	var lastErr error
	for _, layout := range []string{time.RFC1123Z, time.RFC3339} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func nameFromHref(href string) string {
	href = strings.TrimSpace(href)
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	href = strings.TrimRight(href, pathSeparator)
	if href == "" {
		return ""
	}
	return path.Base(href)
}
