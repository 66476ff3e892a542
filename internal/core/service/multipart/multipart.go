package multipart

import (
	"context"
	"errors"
	"ion-upload/internal/config"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/port"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ion-upload/internal/core/service/multipart"

type multipartService struct {
	store     port.UploadSessionStore
	storage   port.MultipartStorage
	signer    port.RequestSigner
	cfg       config.UploadConfig
	logger    *slog.Logger
	publisher port.EventPublisher
	observer  port.UploadObserver
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures the multipart service
type Option func(*multipartService)

// WithEventPublisher announces lifecycle events through p
func WithEventPublisher(p port.EventPublisher) Option {
	return func(s *multipartService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithObserver reports operation outcomes and transitions to o
func WithObserver(o port.UploadObserver) Option {
	return func(s *multipartService) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock replaces the service clock
func WithClock(now func() time.Time) Option {
	return func(s *multipartService) {
		s.now = now
	}
}

// NewMultipartService creates a new multipart service
func NewMultipartService(store port.UploadSessionStore, storage port.MultipartStorage, signer port.RequestSigner, cfg config.UploadConfig, logger *slog.Logger, opts ...Option) port.MultipartService {
	s := &multipartService{
		store:     store,
		storage:   storage,
		signer:    signer,
		cfg:       cfg,
		logger:    logger,
		publisher: noopPublisher{},
		observer:  noopObserver{},
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// begin opens a span for op. The returned func ends it and records the outcome.
func (s *multipartService) begin(ctx context.Context, op string, sessionID uuid.UUID) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "multipart."+op)
	if sessionID != uuid.Nil {
		span.SetAttributes(attribute.String("upload.session_id", sessionID.String()))
	}
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(domain.KindOf(err)))
		}
		span.End()
		s.observer.ObserveOperation(op, err, time.Since(start))
	}
}

// load returns the session, marking it failed first when it has expired.
// The caller that expires the session also aborts its provider upload, since
// the sweep only lists open sessions.
func (s *multipartService) load(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsExpired(s.now()) {
		return session, nil
	}

	failed, changed, err := s.store.MarkFailed(ctx, id)
	if errors.Is(err, domain.ErrSessionAlreadyTerminal) {
		// closed by another caller between the read and the transition
		return s.store.Get(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if !changed {
		return failed, nil
	}

	s.logger.Info("upload session expired",
		slog.String("sessionID", id.String()),
		slog.Time("expiresAt", failed.ExpiresAt))
	s.abortProvider(context.WithoutCancel(ctx), failed)
	s.transitioned(ctx, failed)
	return failed, nil
}

// abortProvider releases the provider upload of session. Failures are logged only.
func (s *multipartService) abortProvider(ctx context.Context, session *domain.UploadSession) {
	if err := s.storage.AbortMultipartUpload(ctx, session.StorageKey, session.UploadID); err != nil {
		s.logger.Warn("failed to abort provider upload",
			slog.String("sessionID", session.ID.String()),
			slog.String("uploadID", session.UploadID),
			slog.Any("err", err))
	}
}

// transitioned reports a status change and publishes the matching event
func (s *multipartService) transitioned(ctx context.Context, session *domain.UploadSession) {
	s.observer.ObserveTransition(session.Status)
	if session.Status == domain.UploadSessionStatusInProgress {
		return
	}

	event := domain.NewSessionEvent(domain.EventTypeForStatus(session.Status), session, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish session event",
			slog.String("sessionID", session.ID.String()),
			slog.String("type", string(event.Type)),
			slog.Any("err", err))
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.SessionEvent) error { return nil }

type noopObserver struct{}

func (noopObserver) ObserveOperation(string, error, time.Duration) {}

func (noopObserver) ObserveTransition(domain.UploadSessionStatus) {}
