package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redpotato/backend/internal/apperrors"
	"github.com/redpotato/backend/internal/models"
)

type memLedger struct {
	mu        sync.Mutex
	rows      []models.Notification
	createErr error
	findErr   error
}

func (m *memLedger) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	m.rows = append(m.rows, *n)
	return nil
}

func (m *memLedger) FindFirst(_ context.Context, clientID uuid.UUID, status models.NotificationStatus, start, end time.Time) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.rows {
		if r.ClientID != clientID || r.Status != status || r.SentAt == nil {
			continue
		}
		if r.SentAt.Before(start) || r.SentAt.After(end) {
			continue
		}
		row := r
		return &row, nil
	}
	return nil, nil
}

func (m *memLedger) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	var deleted int64
	for _, r := range m.rows {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return deleted, nil
}

func (m *memLedger) FindByID(_ context.Context, id uuid.UUID) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			row := r
			return &row, nil
		}
	}
	return nil, apperrors.ErrNotificationNotFound
}

func (m *memLedger) List(_ context.Context, f models.NotificationFilter) ([]models.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.Normalize()
	var out []models.Notification
	for _, r := range m.rows {
		if f.ClientID != nil && r.ClientID != *f.ClientID {
			continue
		}
		if f.Channel != "" && r.Channel != f.Channel {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	total := int64(len(out))
	from := (f.Page - 1) * f.Limit
	if from > len(out) {
		from = len(out)
	}
	to := from + f.Limit
	if to > len(out) {
		to = len(out)
	}
	return out[from:to], total, nil
}

func (m *memLedger) ListByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]models.Notification, error) {
	rows, _, err := m.List(ctx, models.NotificationFilter{ClientID: &clientID, Limit: limit})
	return rows, err
}

func (m *memLedger) Stats(_ context.Context) (*models.NotificationStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.NotificationStats{Total: int64(len(m.rows))}
	for _, r := range m.rows {
		switch r.Status {
		case models.StatusSent:
			s.ByStatus.Sent++
		case models.StatusFailed:
			s.ByStatus.Failed++
		case models.StatusPending:
			s.ByStatus.Pending++
		}
		switch r.Channel {
		case models.ChannelSMS:
			s.ByType.SMS++
		case models.ChannelEmail:
			s.ByType.Email++
		}
	}
	return s, nil
}

func (m *memLedger) snapshot() []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Notification(nil), m.rows...)
}

func (m *memLedger) count(clientID uuid.UUID, channel models.Channel, status models.NotificationStatus) int {
	n := 0
	for _, r := range m.snapshot() {
		if r.ClientID == clientID && r.Channel == channel && r.Status == status {
			n++
		}
	}
	return n
}

// memClients filters like the SQL selector. With raw set it returns every
// client unfiltered, which lets tests feed records the database would reject.
type memClients struct {
	clients   []models.Client
	raw       bool
	err       error
	lastStart time.Time
	lastEnd   time.Time
}

func (m *memClients) FindActiveWithExpiryInRange(_ context.Context, start, end time.Time) ([]models.Client, error) {
	m.lastStart, m.lastEnd = start, end
	if m.err != nil {
		return nil, m.err
	}
	if m.raw {
		return append([]models.Client(nil), m.clients...), nil
	}
	var out []models.Client
	for _, c := range m.clients {
		if !c.Active || c.ITPExpirationDate.Before(start) || c.ITPExpirationDate.After(end) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ITPExpirationDate.Before(out[k].ITPExpirationDate) })
	return out, nil
}

func (m *memClients) FindByID(_ context.Context, id uuid.UUID) (*models.Client, error) {
	for _, c := range m.clients {
		if c.ID == id {
			client := c
			return &client, nil
		}
	}
	return nil, apperrors.ErrClientNotFound
}

type sentMessage struct {
	Destination string
	Payload     Payload
}

type fakeSender struct {
	mu      sync.Mutex
	channel string
	fail    error
	failFor map[string]error
	panics  bool
	sent    []sentMessage
}

func (f *fakeSender) Send(_ context.Context, destination string, payload Payload) (*SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("transport exploded")
	}
	f.sent = append(f.sent, sentMessage{Destination: destination, Payload: payload})
	if err, ok := f.failFor[destination]; ok {
		return nil, &apperrors.SendError{Channel: f.channel, Err: err}
	}
	if f.fail != nil {
		return nil, &apperrors.SendError{Channel: f.channel, Err: f.fail}
	}
	return &SendResult{ProviderID: fmt.Sprintf("%s-%d", f.channel, len(f.sent))}, nil
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	down error
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down != nil {
		return c.down
	}
	b, ok := c.data[key]
	if !ok {
		return apperrors.ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}
