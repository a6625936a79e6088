package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ImageBucket is the public bucket that holds listing photos.
const ImageBucket = "book-images"

func objectPath(bucket, path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(segs, "/")
}

// UploadObject stores data at bucket/path.
func (c *Client) UploadObject(ctx context.Context, bucket, path, contentType string, data io.Reader) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := c.send(ctx, http.MethodPost, storagePrefix+"object/"+objectPath(bucket, path), data, contentType, nil); err != nil {
		return fmt.Errorf("client.UploadObject: %w", err)
	}
	return nil
}

// PublicURL returns the publicly resolvable reference of an object.
func (c *Client) PublicURL(bucket, path string) string {
	return c.baseURL + storagePrefix + "object/public/" + objectPath(bucket, path)
}

// RemoveObjects deletes objects from a bucket.
func (c *Client) RemoveObjects(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	body := map[string][]string{"prefixes": paths}
	if err := c.doRequest(ctx, http.MethodDelete, storagePrefix+"object/"+url.PathEscape(bucket), body, nil); err != nil {
		return fmt.Errorf("client.RemoveObjects: %w", err)
	}
	return nil
}
