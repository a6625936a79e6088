package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/bookbazaar/bazaar/pkg/client"
	"github.com/bookbazaar/bazaar/pkg/domain"
)

// ErrUnsupportedImage is returned for photo files that are not images.
var ErrUnsupportedImage = errors.New("photo must be a jpg, png, gif or webp image")

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// maxImageBytes caps photo uploads.
const maxImageBytes = 10 << 20

// Image is a photo to upload with a listing.
type Image struct {
	Ext         string // with leading dot, lower case
	ContentType string
	Data        io.Reader
}

// OpenImage reads a photo from disk. The caller closes the returned file.
func OpenImage(path string) (*Image, io.Closer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !imageExts[ext] {
		return nil, nil, ErrUnsupportedImage
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("market.OpenImage: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, nil, fmt.Errorf("market.OpenImage: %w", err)
	}
	if info.Size() > maxImageBytes {
		f.Close() //nolint:errcheck
		return nil, nil, fmt.Errorf("market.OpenImage: photo is %d bytes, limit is %d", info.Size(), maxImageBytes)
	}
	ct := mime.TypeByExtension(ext)
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Image{Ext: ext, ContentType: ct, Data: f}, f, nil
}

// imagePath names an upload <uid>/<unix-millis><ext>.
func (s *Service) imagePath(sess *domain.Session, ext string) string {
	return sess.User.ID.String() + "/" + strconv.FormatInt(s.now().UnixMilli(), 10) + ext
}

// CreateListing validates draft, uploads img when given, and inserts the
// listing. If the insert fails after an upload, the uploaded object is removed.
func (s *Service) CreateListing(ctx context.Context, sess *domain.Session, draft domain.ListingDraft, img *Image) (*domain.Listing, error) {
	c, err := s.as(sess)
	if err != nil {
		return nil, err
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Author = strings.TrimSpace(draft.Author)
	draft.Description = strings.TrimSpace(draft.Description)

	var (
		imageURL   *string
		objectPath string
	)
	if img != nil {
		objectPath = s.imagePath(sess, img.Ext)
		if err := c.UploadObject(ctx, client.ImageBucket, objectPath, img.ContentType, img.Data); err != nil {
			return nil, fmt.Errorf("market.CreateListing: upload photo: %w", err)
		}
		u := c.PublicURL(client.ImageBucket, objectPath)
		imageURL = &u
	}

	listing, err := c.CreateListing(ctx, sess.User.ID, draft, imageURL)
	if err != nil {
		err = fmt.Errorf("market.CreateListing: %w", err)
		if objectPath != "" {
			// Cleanup runs even when ctx is already cancelled.
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
			defer cancel()
			if rmErr := c.RemoveObjects(cleanupCtx, client.ImageBucket, objectPath); rmErr != nil {
				s.log.Warn("orphaned listing photo", zap.String("path", objectPath), zap.Error(rmErr))
				return nil, errors.Join(err, fmt.Errorf("remove uploaded photo %s: %w", objectPath, rmErr))
			}
			s.log.Info("removed photo of failed listing", zap.String("path", objectPath))
		}
		return nil, err
	}
	s.log.Info("listing created", zap.String("listing_id", listing.ID.String()), zap.Bool("swap", listing.IsSwap))
	return listing, nil
}

// DeleteListing deletes one of the session user's listings. Orders that
// reference it stay and fall back to their snapshot title.
func (s *Service) DeleteListing(ctx context.Context, sess *domain.Session, l domain.Listing) error {
	c, err := s.as(sess)
	if err != nil {
		return err
	}
	if l.UserID != sess.User.ID {
		return ErrNotOwner
	}
	if err := c.DeleteListing(ctx, l.ID); err != nil {
		return fmt.Errorf("market.DeleteListing: %w", err)
	}
	s.log.Info("listing deleted", zap.String("listing_id", l.ID.String()))
	return nil
}
