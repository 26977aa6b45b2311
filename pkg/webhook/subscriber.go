package webhook

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pitabwire/frame/workerpool"
	"github.com/pitabwire/util"

	"github.com/livescribe/livescribe/pkg/events"
)

// Subscriber implements queue.SubscribeWorker and fans bus events out to
// the endpoints that want them.
type Subscriber struct {
	Store     Store
	Deliverer *Deliverer
	Pool      workerpool.WorkerPool
}

// Handle is called by frame's pub/sub for each event message.
func (ws *Subscriber) Handle(ctx context.Context, _ map[string]string, message []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		util.Log(ctx).WithError(err).Error("webhook subscriber: unmarshal envelope")
		return err
	}

	endpoints, err := ws.Store.ListForEvent(ctx, env)
	if err != nil {
		util.Log(ctx).WithError(err).Error("webhook subscriber: list endpoints")
		return err
	}

	for _, ep := range endpoints {
		deliver := func() { _ = ws.Deliverer.Deliver(ctx, ep, env) }
		if ws.Pool != nil {
			if err := ws.Pool.Submit(ctx, deliver); err == nil {
				continue
			}
			slog.WarnContext(ctx, "webhook pool full, delivering inline", slog.String("webhook_id", ep.ID))
		}
		deliver()
	}
	return nil
}
