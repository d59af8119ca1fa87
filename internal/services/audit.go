package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vetrai/auth-service/internal/models"
	"github.com/vetrai/auth-service/pkg/logger"
	"gorm.io/gorm"
)

// Audit actions recorded by the authentication flow.
const (
	AuditLogin             = "login"
	AuditLoginFailed       = "login_failed"
	AuditTokenRefreshed    = "token_refreshed"
	AuditTokenReuse        = "token_reuse_detected"
	AuditLogout            = "logout"
	AuditPasswordChanged   = "password_changed"
	AuditUserRegistered    = "user_registered"
	AuditRoleChanged       = "role_changed"
	AuditUserDeactivated   = "user_deactivated"
	AuditRevokedAllForUser = "revoked_all_tokens"
)

// AuditEvent is one security-relevant occurrence. Token values never appear
// here; identifying detail is limited to record ids and request metadata.
type AuditEvent struct {
	UserID         *uint
	OrganizationID *uint
	Action         string
	ResourceType   string
	ResourceID     *uint
	Details        string
	IP             string
	UserAgent      string
}

// AuditSink receives security events. The authentication flow treats it as an
// external collaborator and never blocks a request on it.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards events. Used in tests and when auditing is disabled.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// DBSink writes events to the audit_logs table.
type DBSink struct {
	db *gorm.DB
}

func NewDBSink(db *gorm.DB) *DBSink {
	return &DBSink{db: db}
}

func (s *DBSink) Emit(ctx context.Context, event AuditEvent) {
	rec := models.AuditLog{
		EventID:        uuid.NewString(),
		UserID:         event.UserID,
		OrganizationID: event.OrganizationID,
		Action:         event.Action,
		ResourceType:   event.ResourceType,
		ResourceID:     event.ResourceID,
		Details:        event.Details,
		IPAddress:      event.IP,
		UserAgent:      event.UserAgent,
		CreatedAt:      time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		logger.Error().Err(err).Str("action", event.Action).Msg("audit write failed")
	}
}

// AuditDispatcher decouples request handling from sink latency with a
// buffered channel and a single drain goroutine. Events are dropped (and
// counted) when the buffer is full rather than stalling logins.
type AuditDispatcher struct {
	sink      AuditSink
	ch        chan AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	dropped   uint64
	closed    bool
	closeOnce sync.Once
}

func NewAuditDispatcher(sink AuditSink, buffer int) *AuditDispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &AuditDispatcher{
		sink: sink,
		ch:   make(chan AuditEvent, buffer),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *AuditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Drain what is already buffered, then stop.
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (d *AuditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	// The mutex orders the send against Close marking the dispatcher closed:
	// an event either lands in the buffer before the drain loop's final pass
	// or is refused here. It can never sit stranded in the channel after
	// Close returns.
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- event:
	default:
		d.dropped++
		logger.Warn().Str("action", event.Action).Msg("audit buffer full, event dropped")
	}
}

// Dropped returns the number of events discarded due to a full buffer.
func (d *AuditDispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Close refuses further events, then stops the dispatcher after draining
// what is already buffered.
func (d *AuditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.done)
		d.wg.Wait()
	})
}
