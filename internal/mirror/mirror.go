package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"b2downloader/config"
	"b2downloader/internal/localpath"
	"b2downloader/internal/models"
	"b2downloader/internal/notify"
	"b2downloader/pkg/utils"
)

type Notifier interface {
	Notify(ctx context.Context, r notify.Report) (bool, error)
}

// Mirror copies the latest version of every object in a bucket into a
// local directory tree and reports the result once per run.
type Mirror struct {
	cfg      *config.Config
	open     SessionFactory
	notifier Notifier
	log      *zap.Logger

	out   io.Writer
	outMu sync.Mutex

	now   func() time.Time
	runID func() string
}

type Option func(*Mirror)

// WithOutput sets where progress lines are written. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(m *Mirror) { m.out = w }
}

func WithClock(now func() time.Time) Option {
	return func(m *Mirror) { m.now = now }
}

func WithRunID(runID func() string) Option {
	return func(m *Mirror) { m.runID = runID }
}

func New(cfg *config.Config, open SessionFactory, notifier Notifier, log *zap.Logger, opts ...Option) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Mirror{
		cfg:      cfg,
		open:     open,
		notifier: notifier,
		log:      log,
		out:      io.Discard,
		now:      time.Now,
		runID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run performs one complete run and returns its frozen summary. Stage
// failures end up in the summary; Run itself never fails.
func (m *Mirror) Run(ctx context.Context) *models.RunSummary {
	summary := models.NewRunSummary(m.runID(), m.cfg.BucketName, m.now())
	log := m.log.With(zap.String("run_id", summary.RunID), zap.String("bucket", summary.BucketName))
	log.Info("Starting download run", zap.String("download_dir", m.cfg.DownloadDir), zap.Int("concurrency", m.cfg.Concurrency))

	if err := m.execute(ctx, summary, log); err != nil {
		summary.Abort(err)
		log.Error("Run aborted", zap.Error(err))
	}

	outcome := summary.Finalize(m.now())
	log.Info("Run finished",
		zap.String("outcome", string(outcome)),
		zap.Int("total", summary.TotalObjects),
		zap.Int("succeeded", len(summary.Succeeded)),
		zap.Int("failed", len(summary.Failed)),
		zap.Int64("bytes", summary.TotalBytes),
		zap.Duration("duration", summary.Duration()))

	m.notify(ctx, summary, log)
	return summary
}

func (m *Mirror) execute(ctx context.Context, summary *models.RunSummary, log *zap.Logger) error {
	session, err := m.connect(ctx, log)
	if err != nil {
		return err
	}

	root := m.cfg.DownloadDir
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %w", models.ErrPrepare, root, err)
	}

	return m.transfer(ctx, session, root, summary, log)
}

// Check validates the configuration and verifies that the credentials and
// the bucket are usable, without listing or downloading anything.
func (m *Mirror) Check(ctx context.Context) models.CheckResult {
	res := models.CheckResult{
		BucketName:     m.cfg.BucketName,
		Endpoint:       m.cfg.Endpoint,
		Region:         m.cfg.Region,
		DownloadDir:    m.cfg.DownloadDir,
		MailConfigured: m.cfg.MailConfigured(),
	}
	log := m.log.With(zap.String("bucket", m.cfg.BucketName))

	_, err := m.connect(ctx, log)
	switch {
	case err == nil:
		res.Authorized, res.BucketReachable = true, true
	case errors.Is(err, models.ErrBucketNotFound), errors.Is(err, models.ErrConnection):
		res.Authorized = true
	}
	if err != nil {
		res.Error = err.Error()
	}
	res.CheckedAt = m.now()
	return res
}

// connect runs the stages that must pass before any local change is made.
func (m *Mirror) connect(ctx context.Context, log *zap.Logger) (Session, error) {
	if err := m.cfg.Validate(); err != nil {
		return nil, err
	}

	session, err := m.open(m.cfg, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrAuth, err)
	}
	session = WithRateLimit(session, m.cfg.RateLimit)

	if err := session.Authorize(ctx); err != nil {
		return nil, err
	}
	log.Debug("Credentials accepted")

	if err := session.Connect(ctx); err != nil {
		return nil, err
	}
	log.Debug("Bucket reachable")
	return session, nil
}

// transfer walks the listing on the calling goroutine and hands each file
// to a bounded pool. A listing error stops enumeration but in-flight
// transfers still finish and are recorded.
func (m *Mirror) transfer(ctx context.Context, session Session, root string, summary *models.RunSummary, log *zap.Logger) error {
	var g errgroup.Group
	g.SetLimit(max(m.cfg.Concurrency, 1))

	var listErr error
	for obj, err := range session.ListLatest(ctx) {
		if err != nil {
			listErr = err
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			listErr = fmt.Errorf("%w: listing interrupted: %w", models.ErrConnection, ctxErr)
			m.record(summary, models.NewFailed(obj.Name, fmt.Errorf("%w: %s: %w", models.ErrTransfer, obj.Name, ctxErr)), log)
			break
		}

		if obj.IsDirMarker() {
			m.record(summary, m.makeDir(root, obj), log)
			continue
		}

		target, err := localpath.Resolve(root, obj.Name)
		if err != nil {
			m.record(summary, models.NewFailed(obj.Name, err), log)
			continue
		}

		g.Go(func() error {
			m.printf("Downloading: %s to %s\n", obj.Name, target)
			m.record(summary, m.download(ctx, session, obj, target), log)
			return nil
		})
	}

	_ = g.Wait()
	return listErr
}

func (m *Mirror) makeDir(root string, obj models.RemoteObject) models.DownloadResult {
	dir, err := localpath.ResolveDir(root, obj.Name)
	if err != nil {
		return models.NewFailed(obj.Name, err)
	}
	m.printf("Creating directory: %s\n", dir)
	return models.Downloaded{Name: obj.Name, LocalPath: dir}
}

// download streams obj into a temporary file next to target and renames it
// into place, so an interrupted transfer never leaves a partial file.
func (m *Mirror) download(ctx context.Context, session Session, obj models.RemoteObject, target string) models.DownloadResult {
	if m.cfg.TransferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.TransferTimeout)
		defer cancel()
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".part-*")
	if err != nil {
		return models.NewFailed(obj.Name, fmt.Errorf("%w: %w", models.ErrTransfer, err))
	}
	tmpName := tmp.Name()

	n, err := session.Fetch(ctx, obj.Name, tmp)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, target)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		if !errors.Is(err, models.ErrTransfer) {
			err = fmt.Errorf("%w: %s: %w", models.ErrTransfer, obj.Name, err)
		}
		return models.NewFailed(obj.Name, err)
	}

	return models.Downloaded{Name: obj.Name, LocalPath: target, Bytes: n}
}

func (m *Mirror) record(summary *models.RunSummary, r models.DownloadResult, log *zap.Logger) {
	summary.Record(r)
	switch v := r.(type) {
	case models.Downloaded:
		m.printf("    -> Successfully downloaded %s (%s)\n", v.Name, utils.FormatBytes(v.Bytes))
		log.Debug("Object downloaded", zap.String("key", v.Name), zap.String("path", v.LocalPath), zap.Int64("bytes", v.Bytes))
	case models.Failed:
		m.printf("    -> Failed to download %s: %s\n", v.Name, v.Error)
		log.Warn("Object download failed", zap.String("key", v.Name), zap.Error(v.Err))
	}
}

// notify runs even after cancellation; the notifier bounds its own send.
func (m *Mirror) notify(ctx context.Context, summary *models.RunSummary, log *zap.Logger) {
	if m.notifier == nil {
		return
	}
	sent, err := m.notifier.Notify(context.WithoutCancel(ctx), notify.ReportFromSummary(summary))
	if err != nil {
		log.Error("Failed to send notification", zap.Error(err))
		return
	}
	if sent {
		log.Debug("Notification delivered", zap.String("outcome", string(summary.Outcome)))
	}
}

func (m *Mirror) printf(format string, args ...any) {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	fmt.Fprintf(m.out, format, args...)
}
