package mirror

import (
	"context"
	"fmt"
	"io"
	"iter"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"b2downloader/config"
	"b2downloader/internal/models"
	"b2downloader/internal/s3client"
)

// Session is a storage connection bound to one bucket.
type Session interface {
	BucketName() string
	Authorize(ctx context.Context) error
	Connect(ctx context.Context) error
	ListLatest(ctx context.Context) iter.Seq2[models.RemoteObject, error]
	Fetch(ctx context.Context, name string, w io.WriterAt) (int64, error)
}

// SessionFactory opens a Session. It is only called after the
// configuration has been validated.
type SessionFactory func(cfg *config.Config, log *zap.Logger) (Session, error)

func OpenS3(cfg *config.Config, log *zap.Logger) (Session, error) {
	client, err := s3client.New(cfg, log)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type rateLimited struct {
	Session
	limiter *rate.Limiter
}

// WithRateLimit limits how many transfers start per second. perSecond <= 0
// returns s unchanged.
func WithRateLimit(s Session, perSecond float64) Session {
	if perSecond <= 0 {
		return s
	}
	return &rateLimited{Session: s, limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

func (r *rateLimited) Fetch(ctx context.Context, name string, w io.WriterAt) (int64, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", models.ErrTransfer, name, err)
	}
	return r.Session.Fetch(ctx, name, w)
}
