package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/webhooks"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ErrWebhookEventNotFound = errors.New("sqlstore: webhook event not found")

type WebhookEvent struct {
	ID         string
	ClaimKey   string
	EventID    string
	Event      webhooks.EventType
	APIVersion string
	RiskLevel  core.RiskLevel
	Payload    []byte
	ReceivedAt time.Time
	ExpiresAt  time.Time
}

type WebhookEventFilter struct {
	Event   webhooks.EventType
	Since   *time.Time
	Page    int
	PerPage int
}

type WebhookEventPage struct {
	Items      []WebhookEvent
	Page       int
	PerPage    int
	Total      int
	HasNext    bool
	NextCursor string
}

// WebhookEventStore is a durable replay ledger. A claim is a row keyed by
// claim_key; the row also archives the verified payload once Record runs.
// Rows past expires_at no longer block a claim and are removed by
// PurgeExpired.
type WebhookEventStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookEventRecord]
	Now  func() time.Time
}

func NewWebhookEventStore(db *bun.DB) (*WebhookEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookEventRecord](db, webhookEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook event repository wiring: %w", err)
		}
	}
	return &WebhookEventStore{
		db:   db,
		repo: repo,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *WebhookEventStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("sqlstore: claim key is required")
	}
	if ttl <= 0 {
		ttl = webhooks.DefaultReplayTTL
	}
	now := s.now()

	if _, err := s.db.NewDelete().
		Model((*webhookEventRecord)(nil)).
		Where("claim_key = ?", key).
		Where("expires_at <= ?", now).
		Exec(ctx); err != nil {
		return false, err
	}

	record := &webhookEventRecord{
		ID:         uuid.NewString(),
		ClaimKey:   key,
		ReceivedAt: now,
		ExpiresAt:  now.Add(ttl),
		UpdatedAt:  now,
	}
	result, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (claim_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *WebhookEventStore) Release(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*webhookEventRecord)(nil)).
		Where("claim_key = ?", strings.TrimSpace(key)).
		Exec(ctx)
	return err
}

// Record stores the verified payload on the event's claim row, creating the
// row when the event was never claimed.
func (s *WebhookEventStore) Record(ctx context.Context, event webhooks.Event) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	eventID := strings.TrimSpace(event.Payload.EventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: webhook event id is required")
	}
	key := webhooks.ReplayKey(eventID)
	now := s.now()
	riskLevel := string(event.Payload.RiskLevel())
	payload := append([]byte(nil), event.Payload.Raw...)

	result, err := s.db.NewUpdate().
		Model((*webhookEventRecord)(nil)).
		Set("event_id = ?", eventID).
		Set("event = ?", string(event.Payload.Event)).
		Set("api_version = ?", event.Payload.APIVersion).
		Set("risk_level = ?", riskLevel).
		Set("payload = ?", payload).
		Set("updated_at = ?", now).
		Where("claim_key = ?", key).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected > 0 {
		return nil
	}

	receivedAt := event.ReceivedAt.UTC()
	if event.ReceivedAt.IsZero() {
		receivedAt = now
	}
	record := &webhookEventRecord{
		ID:         uuid.NewString(),
		ClaimKey:   key,
		EventID:    eventID,
		Event:      string(event.Payload.Event),
		APIVersion: event.Payload.APIVersion,
		RiskLevel:  riskLevel,
		Payload:    payload,
		ReceivedAt: receivedAt,
		ExpiresAt:  now.Add(webhooks.DefaultReplayTTL),
		UpdatedAt:  now,
	}
	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (claim_key) DO NOTHING").
		Exec(ctx)
	return err
}

// Archive wraps next so every verified event is recorded before it is
// handled.
func (s *WebhookEventStore) Archive(next webhooks.Handler) webhooks.Handler {
	return webhooks.HandlerFunc(func(ctx context.Context, event webhooks.Event) error {
		if err := s.Record(ctx, event); err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		return next.Handle(ctx, event)
	})
}

func (s *WebhookEventStore) Get(ctx context.Context, eventID string) (WebhookEvent, error) {
	if s == nil || s.db == nil {
		return WebhookEvent{}, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	record := &webhookEventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.claim_key = ?", webhooks.ReplayKey(eventID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WebhookEvent{}, ErrWebhookEventNotFound
		}
		return WebhookEvent{}, err
	}
	return record.toDomain(), nil
}

func (s *WebhookEventStore) List(ctx context.Context, filter WebhookEventFilter) (WebhookEventPage, error) {
	if s == nil || s.repo == nil {
		return WebhookEventPage{}, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 25
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("received_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if event := strings.TrimSpace(string(filter.Event)); event != "" {
		selectors = append(selectors, repository.SelectBy("event", "=", event))
	}
	if filter.Since != nil {
		selectors = append(selectors, repository.SelectByTimetz("received_at", ">=", filter.Since.UTC()))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return WebhookEventPage{}, err
	}
	items := make([]WebhookEvent, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	hasNext := offset+len(items) < total
	nextCursor := ""
	if hasNext {
		nextCursor = strconv.Itoa(offset + len(items))
	}
	return WebhookEventPage{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		HasNext:    hasNext,
		NextCursor: nextCursor,
	}, nil
}

func (s *WebhookEventStore) PurgeExpired(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*webhookEventRecord)(nil)).
		Where("expires_at <= ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *WebhookEventStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *webhookEventRecord) toDomain() WebhookEvent {
	if r == nil {
		return WebhookEvent{}
	}
	return WebhookEvent{
		ID:         r.ID,
		ClaimKey:   r.ClaimKey,
		EventID:    r.EventID,
		Event:      webhooks.EventType(r.Event),
		APIVersion: r.APIVersion,
		RiskLevel:  core.RiskLevel(r.RiskLevel),
		Payload:    append([]byte(nil), r.Payload...),
		ReceivedAt: r.ReceivedAt.UTC(),
		ExpiresAt:  r.ExpiresAt.UTC(),
	}
}
