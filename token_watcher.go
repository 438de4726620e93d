package mfaflow

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/MrEthical07/mfaflow/credstore"
)

// TokenStatusHandler receives recomputed token statuses from WatchTokens.
type TokenStatusHandler func(status TokenStatus)

// NotifyTokenUpdated wakes any in-process token watcher immediately instead of
// waiting for the next poll tick.
func (e *Engine) NotifyTokenUpdated() {
	if e == nil || e.tokenSignal == nil {
		return
	}
	select {
	case e.tokenSignal <- struct{}{}:
	default:
	}
}

// WatchTokens blocks, re-evaluating the named bundle's active token whenever
// any of three triggers fires: the poll ticker, the cross-process change
// channel, or an in-process NotifyTokenUpdated call. Every trigger performs a
// full recomputation from the store, so overlapping triggers converge on the
// state of the latest write. Returns when ctx is done.
func (e *Engine) WatchTokens(ctx context.Context, name string, handler TokenStatusHandler) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if handler == nil {
		return errors.New("token status handler required")
	}

	emit := func() {
		handler(e.recomputeTokenStatus(ctx, name))
	}
	emit()

	var changes <-chan string
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if ch, err := e.credentials.Watch(watchCtx); err != nil {
		// Poll and in-process signals still converge without pub/sub.
		log.Printf("mfaflow: credential change watch unavailable: %v", err)
	} else {
		changes = ch
	}

	interval := e.config.Token.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			emit()
		case changed, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if changed == "" || changed == name {
				emit()
			}
		case <-e.tokenSignal:
			emit()
		}
	}
}

func (e *Engine) recomputeTokenStatus(ctx context.Context, name string) TokenStatus {
	bundle, err := e.credentials.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, credstore.ErrNotFound) {
			log.Printf("mfaflow: token recomputation load failed: %v", err)
		}
		return TokenStatus{State: TokenMissing, Message: "credentials not stored"}
	}
	creds := credentialsFromBundle(name, bundle)
	return e.EvaluateToken(creds.TokenKind, creds.ActiveToken())
}
