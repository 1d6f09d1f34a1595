package service

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"doccloud/internal/blob"
	"doccloud/internal/document/model"
	"doccloud/internal/document/repository"
	"doccloud/internal/metrics"
	"doccloud/pkg/logger"
)

// DefaultUploadTimeout bounds a single blob store upload.
const DefaultUploadTimeout = 30 * time.Second

// Notifier is told about every appended version once its snapshot write has
// been attempted.
type Notifier interface {
	VersionAppended(name string, version model.VersionRecord)
}

// Recorder receives commit metrics.
type Recorder interface {
	Commit(result string)
	BlobUpload(d time.Duration)
	Documents(n int)
}

type nopRecorder struct{}

func (nopRecorder) Commit(string)            {}
func (nopRecorder) BlobUpload(time.Duration) {}
func (nopRecorder) Documents(int)            {}

// document is the mutable state behind one name. commitMu is held for the
// whole of a commit; versions is only written while holding both commitMu
// and DocumentService.mu.
type document struct {
	commitMu sync.Mutex
	versions []model.VersionRecord
}

// DocumentService is the document version store. It keeps every history in
// memory, serializes commits per document name and writes the whole store
// through its repository after every append.
type DocumentService struct {
	Blobs blob.Store
	Repo  repository.SnapshotRepository

	logger        *zap.Logger
	now           func() time.Time
	uploadTimeout time.Duration
	notifier      Notifier
	metrics       Recorder

	mu   sync.RWMutex
	docs map[string]*document

	// saveMu serializes snapshot writes; the snapshot is taken while holding
	// it so a later write never carries less than an earlier one.
	saveMu sync.Mutex
}

type Option func(*DocumentService)

func WithClock(now func() time.Time) Option {
	return func(s *DocumentService) { s.now = now }
}

func WithUploadTimeout(d time.Duration) Option {
	return func(s *DocumentService) {
		if d > 0 {
			s.uploadTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *DocumentService) { s.logger = l }
}

func WithNotifier(n Notifier) Option {
	return func(s *DocumentService) { s.notifier = n }
}

func WithMetrics(r Recorder) Option {
	return func(s *DocumentService) { s.metrics = r }
}

// NewDocumentService loads the store from repo.
func NewDocumentService(ctx context.Context, blobs blob.Store, repo repository.SnapshotRepository, opts ...Option) (*DocumentService, error) {
	s := &DocumentService{
		Blobs:         blobs,
		Repo:          repo,
		logger:        logger.Log,
		now:           time.Now,
		uploadTimeout: DefaultUploadTimeout,
		metrics:       nopRecorder{},
		docs:          make(map[string]*document),
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	for name, versions := range snap {
		if len(versions) == 0 {
			continue
		}
		vs := make([]model.VersionRecord, len(versions))
		copy(vs, versions)
		for i := range vs {
			vs[i].VersionNumber = i + 1
		}
		s.docs[name] = &document{versions: vs}
	}
	s.metrics.Documents(len(s.docs))
	s.logger.Info("document store loaded", zap.Int("documents", len(s.docs)))
	return s, nil
}

// lookup returns the state for name, creating it if needed. A freshly
// created document has no versions and stays invisible to readers until its
// first append.
func (s *DocumentService) lookup(name string) *document {
	s.mu.RLock()
	d, ok := s.docs[name]
	s.mu.RUnlock()
	if ok {
		return d
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok = s.docs[name]; !ok {
		d = &document{}
		s.docs[name] = d
	}
	return d
}

// Commit saves text as the next version of name. A duplicate reported by
// the blob store returns its address without appending. When the append
// succeeds but the snapshot cannot be written, the result is returned
// together with an error wrapping model.ErrPersistenceFailed; the version is
// already visible, so recovery is Flush rather than another Commit.
func (s *DocumentService) Commit(ctx context.Context, name, text string) (model.CommitResult, error) {
	if name == "" {
		return model.CommitResult{}, fmt.Errorf("%w: document name is required", model.ErrValidation)
	}
	// Snapshots are JSON, which cannot carry invalid UTF-8 unchanged.
	if !utf8.ValidString(name) || !utf8.ValidString(text) {
		return model.CommitResult{}, fmt.Errorf("%w: name and text must be valid UTF-8", model.ErrValidation)
	}

	d := s.lookup(name)
	d.commitMu.Lock()
	defer d.commitMu.Unlock()

	// Only commitMu holders write versions, so reading without mu is safe.
	next := len(d.versions) + 1
	prevExternalID := model.NoExternalID
	var prevTimestamp time.Time
	if n := len(d.versions); n > 0 {
		last := d.versions[n-1]
		prevTimestamp = last.Timestamp
		if last.ExternalID != "" {
			prevExternalID = last.ExternalID
		}
	}

	uctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	start := time.Now()
	res, err := s.Blobs.Upload(uctx, []byte(text), blob.Metadata{
		Name:               name,
		VersionNumber:      next,
		PreviousExternalID: prevExternalID,
	})
	cancel()
	s.metrics.BlobUpload(time.Since(start))
	if err != nil {
		s.metrics.Commit(metrics.ResultUploadFailed)
		s.logger.Warn("commit upload failed", zap.String("name", name), zap.Int("versionNumber", next), zap.Error(err))
		return model.CommitResult{}, fmt.Errorf("%w: %w", model.ErrUploadFailed, err)
	}

	// A duplicate can still be the first version of this name when the same
	// bytes were saved under another document; such a history gets created.
	if res.IsDuplicate && next > 1 {
		s.metrics.Commit(metrics.ResultDuplicate)
		s.logger.Debug("commit duplicate", zap.String("name", name), zap.String("cid", res.ContentAddress))
		return model.CommitResult{
			ContentAddress: res.ContentAddress,
			Appended:       false,
			VersionNumber:  next - 1,
			GatewayURL:     res.URL,
		}, nil
	}

	ts := s.now().UTC().Truncate(time.Millisecond)
	if ts.Before(prevTimestamp) {
		ts = prevTimestamp
	}
	record := model.VersionRecord{
		Text:           text,
		Timestamp:      ts,
		ContentAddress: res.ContentAddress,
		ExternalID:     res.ExternalID,
		VersionNumber:  next,
	}

	s.mu.Lock()
	d.versions = append(d.versions, record)
	count := s.countLocked()
	s.mu.Unlock()
	s.metrics.Documents(count)

	result := model.CommitResult{
		ContentAddress: record.ContentAddress,
		Appended:       true,
		VersionNumber:  next,
		GatewayURL:     res.URL,
	}

	if err := s.persist(ctx); err != nil {
		s.metrics.Commit(metrics.ResultPersistenceFailed)
		s.logger.Error("commit persistence failed", zap.String("name", name), zap.Int("versionNumber", next), zap.Error(err))
		s.notify(name, record)
		return result, err
	}

	s.metrics.Commit(metrics.ResultAppended)
	s.logger.Info("version appended",
		zap.String("name", name),
		zap.Int("versionNumber", next),
		zap.String("cid", record.ContentAddress),
	)
	s.notify(name, record)
	return result, nil
}

func (s *DocumentService) notify(name string, v model.VersionRecord) {
	if s.notifier != nil {
		s.notifier.VersionAppended(name, v)
	}
}

func (s *DocumentService) countLocked() int {
	n := 0
	for _, d := range s.docs {
		if len(d.versions) > 0 {
			n++
		}
	}
	return n
}

// persist writes the whole store. The write outlives a cancelled caller: by
// now the version is already visible.
func (s *DocumentService) persist(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := s.Repo.Save(context.WithoutCancel(ctx), s.snapshot()); err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistenceFailed, err)
	}
	return nil
}

func (s *DocumentService) snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(model.Snapshot, len(s.docs))
	for name, d := range s.docs {
		if len(d.versions) == 0 {
			continue
		}
		snap[name] = model.DocumentHistory{Versions: d.versions}.Clone().Versions
	}
	return snap
}

// GetHistory returns a copy of the history for name.
func (s *DocumentService) GetHistory(name string) (model.DocumentHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[name]
	if !ok || len(d.versions) == 0 {
		return model.DocumentHistory{}, fmt.Errorf("%w: %q", model.ErrNotFound, name)
	}
	return model.DocumentHistory{Name: name, Versions: d.versions}.Clone(), nil
}

// ListAll returns a copy of every history.
func (s *DocumentService) ListAll() map[string]model.DocumentHistory {
	snap := s.snapshot()
	out := make(map[string]model.DocumentHistory, len(snap))
	for name, vs := range snap {
		out[name] = model.DocumentHistory{Name: name, Versions: vs}
	}
	return out
}

// Flush writes the current store, retrying only the persistence step of an
// earlier commit.
func (s *DocumentService) Flush(ctx context.Context) error {
	return s.persist(ctx)
}

// Close flushes the store one last time.
func (s *DocumentService) Close(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		s.logger.Error("final flush failed", zap.Error(err))
		return err
	}
	s.logger.Info("document store flushed")
	return nil
}
