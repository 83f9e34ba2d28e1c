package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/trinity-stack/trinity/pkg/config"
	"github.com/trinity-stack/trinity/pkg/dispatch"
	"github.com/trinity-stack/trinity/pkg/memory"
)

const (
	busyMessage    = "系統繁忙，請稍後再試。"
	timeoutMessage = "抱歉，連接超時，請稍後再試。"
	fallbackSuffix = "\n(⚠️ 註：深度思考超時，此乃主力模型代答)"
	fallbackNotice = "🔄 深度模型無反應，切換主力模型救場..."

	fallbackTimeout = 120 * time.Second
)

// MemoryBank is the retrieval/persistence surface the router needs.
type MemoryBank interface {
	GetContext(ctx context.Context, query string) memory.ContextBundle
	SaveMemory(ctx context.Context, question, answer string)
}

// Streamer starts one streaming generation.
type Streamer interface {
	Stream(ctx context.Context, req dispatch.Request) (<-chan dispatch.Event, error)
}

// Router classifies a query, augments it with retrieved context and
// streams the answer from the matching tier.
type Router struct {
	cfg        config.Config
	classifier *Classifier
	bank       MemoryBank
	dispatcher Streamer
}

func New(cfg config.Config, classifier *Classifier, bank MemoryBank, dispatcher Streamer) *Router {
	return &Router{
		cfg:        cfg,
		classifier: classifier,
		bank:       bank,
		dispatcher: dispatcher,
	}
}

// RouteQuestion handles one query end to end and returns its event
// stream. The channel always terminates with a Done or Error event; tier
// failures surface as canned answer text, not as errors, so callers can
// render every outcome the same way.
func (r *Router) RouteQuestion(ctx context.Context, text string, allowDeepThink bool) (<-chan dispatch.Event, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty question")
	}
	out := make(chan dispatch.Event, 64)
	go r.run(ctx, text, allowDeepThink, out)
	return out, nil
}

func (r *Router) run(ctx context.Context, text string, allowDeepThink bool, out chan<- dispatch.Event) {
	defer close(out)

	// Retrieval and classification are independent model calls; run them
	// side by side.
	var (
		wg         sync.WaitGroup
		bundle     memory.ContextBundle
		difficulty Difficulty
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		bundle = r.bank.GetContext(ctx, text)
	}()
	go func() {
		defer wg.Done()
		difficulty = r.classifier.Classify(ctx, text)
	}()
	wg.Wait()

	eff := effectiveDifficulty(difficulty, allowDeepThink)
	tier := tierFor(eff, r.cfg.Tiers)
	if !send(ctx, out, dispatch.Event{Kind: dispatch.Thinking, Text: tier.Notice}) {
		return
	}

	req := dispatch.Request{
		Endpoint:    tier.Endpoint,
		Model:       tier.Model,
		Timeout:     tier.Timeout,
		Temperature: 0.7,
		System:      r.cfg.SystemPrompt + tier.ExtraPrompt,
		User:        fmt.Sprintf("【背景資料】：\n%s\n\n【用戶問題】：%s", bundle, text),
		OnComplete: func(ctx context.Context, answer string) {
			r.bank.SaveMemory(ctx, text, answer)
		},
	}

	forwarded, failed := r.relay(ctx, req, out)
	if !failed || forwarded || ctx.Err() != nil {
		// Success, a gone caller, or a failure after tokens already
		// reached the caller: the stream ends where it ends, no retry.
		return
	}

	if eff != Hard {
		r.canned(ctx, out, busyMessage)
		return
	}

	// The deep tier went dark before producing anything. Retry once on
	// the balanced tier with a shorter leash.
	log.Printf("[ROUTER] deep tier failed, falling back to balanced tier")
	if !send(ctx, out, dispatch.Event{Kind: dispatch.Thinking, Text: fallbackNotice}) {
		return
	}

	req.Endpoint = r.cfg.Tiers.Medium.Endpoint
	req.Model = r.cfg.Tiers.Medium.Model
	req.Timeout = fallbackTimeout

	forwarded, failed = r.relayWithSuffix(ctx, req, out, fallbackSuffix)
	if failed && !forwarded && ctx.Err() == nil {
		r.canned(ctx, out, timeoutMessage)
	}
}

// relay streams one dispatch attempt into out. It reports whether any
// token was forwarded and whether the attempt failed. A failure with no
// forwarded tokens is retryable; anything else is final and has already
// been fully relayed.
func (r *Router) relay(ctx context.Context, req dispatch.Request, out chan<- dispatch.Event) (forwarded, failed bool) {
	return r.relayWithSuffix(ctx, req, out, "")
}

func (r *Router) relayWithSuffix(ctx context.Context, req dispatch.Request, out chan<- dispatch.Event, suffix string) (forwarded, failed bool) {
	events, err := r.dispatcher.Stream(ctx, req)
	if err != nil {
		log.Printf("[ROUTER] dispatch to %s failed: %v", req.Endpoint, err)
		return false, true
	}
	for ev := range events {
		if ctx.Err() != nil {
			return forwarded, false
		}
		switch ev.Kind {
		case dispatch.Token:
			forwarded = true
			if !send(ctx, out, ev) {
				return forwarded, false
			}
		case dispatch.Done:
			if suffix != "" {
				if !send(ctx, out, dispatch.Event{Kind: dispatch.Token, Text: suffix}) {
					return forwarded, false
				}
				ev.Answer += suffix
			}
			send(ctx, out, ev)
			return forwarded, false
		case dispatch.Error:
			log.Printf("[ROUTER] stream from %s broke: %v", req.Endpoint, ev.Err)
			if forwarded {
				send(ctx, out, ev)
			}
			return forwarded, true
		default:
			if !send(ctx, out, ev) {
				return forwarded, false
			}
		}
	}
	return forwarded, true
}

// canned streams a fixed apology as a one-token answer.
func (r *Router) canned(ctx context.Context, out chan<- dispatch.Event, msg string) {
	if send(ctx, out, dispatch.Event{Kind: dispatch.Token, Text: msg}) {
		send(ctx, out, dispatch.Event{Kind: dispatch.Done, Answer: msg})
	}
}

// send delivers one event unless the caller has gone away. A false return
// means the context is done and the stream should wind down.
func send(ctx context.Context, out chan<- dispatch.Event, ev dispatch.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
