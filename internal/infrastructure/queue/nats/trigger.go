package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/core/ports"
)

const triggerQueueGroup = "sync-workers"

// TriggerRequest is the optional body of a run request. An empty body means source "nats".
type TriggerRequest struct {
	Source string `json:"source,omitempty"`
}

// Trigger is an active run-request subscription.
type Trigger struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	inflight sync.WaitGroup
}

// SubscribeTrigger starts answering run requests on subject. Each request is handled on its
// own goroutine so that requests arriving during a run join it instead of queueing behind it.
func (c *Client) SubscribeTrigger(ctx context.Context, subject string, starter ports.RunStarter) (*Trigger, error) {
	t := &Trigger{conn: c.conn}
	sub, err := c.conn.QueueSubscribe(subject, triggerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		t.inflight.Add(1)
		go func() {
			defer t.inflight.Done()
			t.handle(ctx, msg, starter)
		}()
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	if err := c.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats flush: %w", err)
	}
	t.sub = sub
	slog.Info("nats_trigger_listening", "subject", subject)
	return t, nil
}

func (t *Trigger) handle(ctx context.Context, msg *nats.Msg, starter ports.RunStarter) {
	source := "nats"
	if len(msg.Data) > 0 {
		var req TriggerRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Warn("nats_trigger_bad_request", "subject", msg.Subject, "error", err)
		} else if s := strings.TrimSpace(req.Source); s != "" {
			source = s
		}
	}

	result := starter.Start(ctx, source)
	if msg.Reply == "" {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		slog.Error("nats_trigger_encode_failed", "error", err)
		return
	}
	if err := msg.Respond(payload); err != nil {
		slog.Warn("nats_trigger_reply_failed", "error", err)
	}
}

// Drain stops taking requests and waits for in-flight runs to reply.
func (t *Trigger) Drain() error {
	if err := t.sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	t.inflight.Wait()
	if err := t.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// ServeTrigger answers run requests on subject until ctx is done. Each reply carries the
// RunResult JSON; requests arriving during a run share its result.
func (c *Client) ServeTrigger(ctx context.Context, subject string, starter ports.RunStarter) error {
	trigger, err := c.SubscribeTrigger(ctx, subject, starter)
	if err != nil {
		return err
	}
	<-ctx.Done()
	return trigger.Drain()
}

// RequestRun asks a worker to run a sync and waits for its result.
func (c *Client) RequestRun(ctx context.Context, subject, source string) (domain.RunResult, error) {
	body, err := json.Marshal(TriggerRequest{Source: source})
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("encode trigger request: %w", err)
	}

	var result domain.RunResult
	err = c.executor.Execute(ctx, "nats.request_run", func(ctx context.Context) error {
		msg, err := c.conn.RequestWithContext(ctx, subject, body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(msg.Data, &result); err != nil {
			return fmt.Errorf("decode run result: %w", err)
		}
		return nil
	}, classifyNATSError)
	if err != nil {
		return domain.RunResult{}, wrapTemporaryIfNeeded("nats request", err)
	}
	return result, nil
}
