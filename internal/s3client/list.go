package s3client

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"b2downloader/internal/models"
)

// ListLatest lazily enumerates the latest version of every object in the
// bucket, one page at a time. The first error is yielded once and ends the
// sequence; it wraps models.ErrConnection.
func (c *Client) ListLatest(ctx context.Context) iter.Seq2[models.RemoteObject, error] {
	return func(yield func(models.RemoteObject, error) bool) {
		input := &s3.ListObjectVersionsInput{
			Bucket:  aws.String(c.bucket),
			MaxKeys: aws.Int32(c.pageSize),
		}

		for page := 1; ; page++ {
			out, err := c.listPage(ctx, input)
			if err != nil {
				yield(models.RemoteObject{}, fmt.Errorf("%w: page %d: %w", models.ErrConnection, page, err))
				return
			}
			c.log.Debug("Listed page", zap.Int("page", page), zap.Int("versions", len(out.Versions)))

			for _, v := range out.Versions {
				if !aws.ToBool(v.IsLatest) {
					continue
				}
				obj, err := toRemoteObject(v)
				if err != nil {
					yield(models.RemoteObject{}, fmt.Errorf("%w: page %d: %w", models.ErrConnection, page, err))
					return
				}
				if !c.included(obj.Name) {
					continue
				}
				if !yield(obj, nil) {
					return
				}
			}

			if !aws.ToBool(out.IsTruncated) {
				return
			}
			if out.NextKeyMarker == nil && out.NextVersionIdMarker == nil {
				yield(models.RemoteObject{}, fmt.Errorf("%w: page %d: truncated listing without continuation marker", models.ErrConnection, page))
				return
			}
			input.KeyMarker = out.NextKeyMarker
			input.VersionIdMarker = out.NextVersionIdMarker
		}
	}
}

func (c *Client) listPage(ctx context.Context, input *s3.ListObjectVersionsInput) (*s3.ListObjectVersionsOutput, error) {
	ctx, cancel := withTimeout(ctx, c.listTimeout)
	defer cancel()
	return c.api.ListObjectVersions(ctx, input)
}

func (c *Client) included(name string) bool {
	if len(c.include) == 0 {
		return true
	}
	for _, pattern := range c.include {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func toRemoteObject(v types.ObjectVersion) (models.RemoteObject, error) {
	if v.Key == nil || *v.Key == "" {
		return models.RemoteObject{}, errors.New("object version without key")
	}
	return models.RemoteObject{
		Name:         aws.ToString(v.Key),
		Size:         aws.ToInt64(v.Size),
		VersionID:    aws.ToString(v.VersionId),
		ETag:         cleanETag(aws.ToString(v.ETag)),
		LastModified: aws.ToTime(v.LastModified),
	}, nil
}

// cleanETag removes the quotes S3 puts around ETag values.
func cleanETag(etag string) string {
	if len(etag) >= 2 && etag[0] == '"' && etag[len(etag)-1] == '"' {
		return etag[1 : len(etag)-1]
	}
	return etag
}
