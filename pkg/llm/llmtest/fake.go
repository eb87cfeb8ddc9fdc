// Package llmtest provides a scriptable LLMProvider for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"bizinsight-be/pkg/llm"
)

type Call struct {
	History []llm.Message
	Options llm.Options
	Stream  bool
}

type ChatFunc func(ctx context.Context, history []llm.Message, opts llm.Options) (*llm.Completion, error)
type StreamFunc func(ctx context.Context, history []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error)

// FakeProvider records every call and delegates to the configured funcs.
type FakeProvider struct {
	OnChat   ChatFunc
	OnStream StreamFunc

	mu    sync.Mutex
	calls []Call
}

var _ llm.LLMProvider = &FakeProvider{}

func (f *FakeProvider) Name() string { return "fake" }

func (f *FakeProvider) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *FakeProvider) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (*llm.Completion, error) {
	options := llm.ApplyOptions(llm.Options{}, opts...)
	f.record(Call{History: history, Options: options})
	if f.OnChat == nil {
		return nil, errors.New("llmtest: no chat response configured")
	}
	return f.OnChat(ctx, history, options)
}

func (f *FakeProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.StreamChunk, error) {
	options := llm.ApplyOptions(llm.Options{}, opts...)
	f.record(Call{History: history, Options: options, Stream: true})
	if f.OnStream == nil {
		return nil, errors.New("llmtest: no stream configured")
	}
	return f.OnStream(ctx, history, options)
}

// Reply answers every Chat call with the same content.
func Reply(content string, usage llm.Usage) ChatFunc {
	return func(ctx context.Context, history []llm.Message, opts llm.Options) (*llm.Completion, error) {
		return &llm.Completion{Content: content, Model: opts.Model, Usage: usage}, nil
	}
}

// Fail answers every Chat call with err.
func Fail(err error) ChatFunc {
	return func(ctx context.Context, history []llm.Message, opts llm.Options) (*llm.Completion, error) {
		return nil, err
	}
}

// Sequence answers successive Chat calls with successive funcs; the last one repeats.
func Sequence(funcs ...ChatFunc) ChatFunc {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context, history []llm.Message, opts llm.Options) (*llm.Completion, error) {
		mu.Lock()
		f := funcs[i]
		if i < len(funcs)-1 {
			i++
		}
		mu.Unlock()
		return f(ctx, history, opts)
	}
}

// Fragments streams the given pieces, then usage (if any), then tail error (if any).
func Fragments(pieces []string, usage *llm.Usage, tail error) StreamFunc {
	return func(ctx context.Context, history []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
		out := make(chan llm.StreamChunk)
		go func() {
			defer close(out)
			emit := func(c llm.StreamChunk) bool {
				select {
				case out <- c:
					return true
				case <-ctx.Done():
					return false
				}
			}
			for _, p := range pieces {
				if !emit(llm.StreamChunk{Content: p, Model: opts.Model}) {
					return
				}
			}
			if usage != nil {
				if !emit(llm.StreamChunk{Usage: usage, Model: opts.Model}) {
					return
				}
			}
			if tail != nil {
				emit(llm.StreamChunk{Err: tail})
			}
		}()
		return out, nil
	}
}

// StreamFail refuses to open a stream.
func StreamFail(err error) StreamFunc {
	return func(ctx context.Context, history []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
		return nil, err
	}
}
