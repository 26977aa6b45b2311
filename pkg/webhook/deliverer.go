package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/livescribe/livescribe/internal/breaker"
	"github.com/livescribe/livescribe/pkg/events"
	"github.com/livescribe/livescribe/pkg/urlvalidation"
)

const (
	maxBreakers      = 10000
	maxResponseBytes = 4096
)

// ErrCircuitOpen is returned when an endpoint's breaker rejects a delivery.
var ErrCircuitOpen = errors.New("webhook: circuit open")

// DelivererConfig holds delivery settings.
type DelivererConfig struct {
	TimeoutSec        int
	CBFailThreshold   int
	CBResetTimeoutSec int
}

// Deliverer posts event envelopes to endpoints. It makes exactly one
// attempt per call; failures become dead letters.
type Deliverer struct {
	store        Store
	httpClient   *http.Client
	config       DelivererConfig
	validateOpts []urlvalidation.Option
	now          func() time.Time

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
}

// NewDeliverer creates a deliverer. store may be nil, in which case nothing
// is recorded.
func NewDeliverer(store Store, cfg DelivererConfig, validateOpts ...urlvalidation.Option) *Deliverer {
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 10
	}
	return &Deliverer{
		store: store,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config:       cfg,
		validateOpts: validateOpts,
		now:          time.Now,
		breakers:     make(map[string]*breaker.Breaker),
	}
}

func (d *Deliverer) breakerFor(webhookID string) *breaker.Breaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if b, ok := d.breakers[webhookID]; ok {
		return b
	}
	if len(d.breakers) >= maxBreakers {
		for k := range d.breakers {
			delete(d.breakers, k)
			break
		}
	}
	b := breaker.New(breaker.Config{
		FailureThreshold: d.config.CBFailThreshold,
		ResetTimeout:     time.Duration(d.config.CBResetTimeoutSec) * time.Second,
	})
	d.breakers[webhookID] = b
	return b
}

// BreakerState reports the breaker state of an endpoint.
func (d *Deliverer) BreakerState(webhookID string) string {
	return d.breakerFor(webhookID).State()
}

// Deliver makes one delivery attempt and dead-letters the event on failure.
func (d *Deliverer) Deliver(ctx context.Context, ep Endpoint, env events.Envelope) error {
	rec, err := d.attempt(ctx, ep, env)
	d.record(ctx, ep, rec, err == nil)
	if err != nil {
		d.deadLetter(ctx, ep, env, err)
	}
	return err
}

// Replay re-sends a dead letter to its endpoint. A success retires it.
func (d *Deliverer) Replay(ctx context.Context, ep Endpoint, dl DeadLetter) error {
	env, err := dl.Envelope()
	if err != nil {
		return fmt.Errorf("decode dead letter: %w", err)
	}
	rec, err := d.attempt(ctx, ep, env)
	rec.Replay = true
	d.record(ctx, ep, rec, err == nil)

	if d.store != nil {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		if rerr := d.store.ResolveDeadLetter(ctx, dl.ID, err == nil, msg); rerr != nil {
			slog.ErrorContext(ctx, "resolve dead letter failed", slog.String("error", rerr.Error()))
		}
	}
	return err
}

func (d *Deliverer) attempt(ctx context.Context, ep Endpoint, env events.Envelope) (*Delivery, error) {
	rec := &Delivery{
		WebhookID: ep.ID,
		EventID:   env.ID,
		EventType: string(env.Type),
		SessionID: env.SessionID,
		Status:    StatusFailed,
	}

	if err := urlvalidation.ValidateWebhookURL(ep.URL, d.validateOpts...); err != nil {
		rec.Status = StatusSkipped
		rec.Error = err.Error()
		return rec, fmt.Errorf("url validation: %w", err)
	}

	cb := d.breakerFor(ep.ID)
	if !cb.Allow() {
		rec.Status = StatusSkipped
		rec.Error = ErrCircuitOpen.Error()
		return rec, ErrCircuitOpen
	}

	body, err := json.Marshal(env)
	if err != nil {
		rec.Error = err.Error()
		return rec, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		rec.Error = err.Error()
		return rec, fmt.Errorf("create request: %w", err)
	}
	ts := d.now()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(ep.Secret, ts, body))
	req.Header.Set(TimestampHeader, strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set(EventHeader, string(env.Type))
	req.Header.Set(DeliveryHeader, env.ID)
	if env.SessionID != "" {
		req.Header.Set(SessionHeader, env.SessionID)
	}

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	rec.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		cb.Failure()
		rec.Error = err.Error()
		return rec, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_, _ = io.Copy(io.Discard, resp.Body)
	rec.ResponseCode = resp.StatusCode
	rec.ResponseBody = string(respBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cb.Failure()
		rec.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return rec, errors.New(rec.Error)
	}

	cb.Success()
	rec.Status = StatusSuccess
	return rec, nil
}

func (d *Deliverer) record(ctx context.Context, ep Endpoint, rec *Delivery, ok bool) {
	if d.store == nil {
		return
	}
	if err := d.store.RecordDelivery(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "record delivery failed", slog.String("error", err.Error()))
	}
	if err := d.store.RecordHealth(ctx, ep.ID, ok); err != nil {
		slog.ErrorContext(ctx, "record endpoint health failed", slog.String("error", err.Error()))
	}
}

func (d *Deliverer) deadLetter(ctx context.Context, ep Endpoint, env events.Envelope, cause error) {
	slog.WarnContext(ctx, "webhook delivery failed",
		slog.String("webhook_id", ep.ID),
		slog.String("event_type", string(env.Type)),
		slog.String("error", cause.Error()))
	if d.store == nil {
		return
	}
	payload, _ := json.Marshal(env)
	if err := d.store.CreateDeadLetter(ctx, &DeadLetter{
		WebhookID:  ep.ID,
		EventID:    env.ID,
		EventType:  string(env.Type),
		Payload:    string(payload),
		LastError:  cause.Error(),
		Attempts:   1,
		Replayable: true,
	}); err != nil {
		slog.ErrorContext(ctx, "create dead letter failed", slog.String("error", err.Error()))
	}
}
