package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/ai"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/knowledge"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/model"
)

type fakePoetStore map[string]*knowledge.Entry

func (f fakePoetStore) Get(name string) (*knowledge.Entry, bool) {
	entry, ok := f[name]
	return entry, ok
}

type fakeTurnStore struct {
	mu       sync.Mutex
	messages []model.Message
	failNext bool
}

func (f *fakeTurnStore) AppendTurn(userID uint, poetName, userText, assistantText string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		return nil, errors.New("deadlock found when trying to get lock")
	}
	now := time.Now()
	turn := []model.Message{
		{ID: uint(len(f.messages) + 1), Content: userText, Role: "user", Timestamp: now, PoetName: poetName, UserID: userID},
		{ID: uint(len(f.messages) + 2), Content: assistantText, Role: "assistant", Timestamp: now, PoetName: poetName, UserID: userID},
	}
	f.messages = append(f.messages, turn...)
	return turn, nil
}

func (f *fakeTurnStore) ListByUserAndPoet(userID uint, poetName string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.messages {
		if m.UserID == userID && m.PoetName == poetName {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeTurnStore) SearchByContent(userID uint, query string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	needle := strings.ToLower(query)
	var out []model.Message
	for i := len(f.messages) - 1; i >= 0; i-- {
		m := f.messages[i]
		if m.UserID == userID && strings.Contains(strings.ToLower(m.Content), needle) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeTurnStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.TurnEvent
}

func (f *fakePublisher) Publish(ctx context.Context, event model.TurnEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func libaiEntry() *knowledge.Entry {
	return &knowledge.Entry{
		Poet: "李白",
		Records: []knowledge.Record{
			{
				Kind:           knowledge.KindSelf,
				RelationToPoet: "本人",
				Dynasty:        "唐",
				Raw:            map[string]any{"relation_to_poet": "本人", "dynasty": "唐"},
			},
		},
	}
}

func newChatService(store *fakeTurnStore, completer Completer, publisher TurnPublisher) *ChatService {
	poets := fakePoetStore{"李白": libaiEntry()}
	llm := ai.ChatConfig{BaseURL: "http://llm.local", APIKey: "test-key", Model: "deepseek-chat"}
	return NewChatService(poets, store, completer, nil, publisher, llm, time.Second)
}

func TestConverse_PersistsOneUserThenOneAssistantMessage(t *testing.T) {
	t.Parallel()

	store := &fakeTurnStore{}
	publisher := &fakePublisher{}
	svc := newChatService(store, &fakeCompleter{reply: "君问归期未有期"}, publisher)

	reply, err := svc.Converse(context.Background(), 1, "李白", "今晚月色如何？")
	if err != nil {
		t.Fatalf("Converse error: %v", err)
	}
	if reply != "君问归期未有期" {
		t.Fatalf("reply = %q", reply)
	}

	history, err := svc.History(context.Background(), 1, "李白")
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "今晚月色如何？" {
		t.Fatalf("first message = %+v, want user turn", history[0])
	}
	if history[1].Role != "assistant" || history[1].Content != "君问归期未有期" {
		t.Fatalf("second message = %+v, want assistant turn", history[1])
	}
	if len(publisher.events) != 1 || publisher.events[0].PoetName != "李白" {
		t.Fatalf("events = %+v, want one 李白 turn event", publisher.events)
	}
}

func TestConverse_UnknownPoet(t *testing.T) {
	t.Parallel()

	store := &fakeTurnStore{}
	svc := newChatService(store, &fakeCompleter{reply: "ok"}, nil)

	_, err := svc.Converse(context.Background(), 1, "无名氏", "hi")
	if !errors.Is(err, ErrPoetNotFound) {
		t.Fatalf("err = %v, want ErrPoetNotFound", err)
	}
	if store.count() != 0 {
		t.Fatalf("messages persisted for unknown poet")
	}
}

func TestConverse_MissingAPIKey(t *testing.T) {
	t.Parallel()

	store := &fakeTurnStore{}
	poets := fakePoetStore{"李白": libaiEntry()}
	svc := NewChatService(poets, store, &fakeCompleter{reply: "ok"}, nil, nil, ai.ChatConfig{Model: "deepseek-chat"}, time.Second)

	_, err := svc.Converse(context.Background(), 1, "李白", "hi")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if store.count() != 0 {
		t.Fatalf("messages persisted without api key")
	}
}

func TestConverse_UpstreamFailurePersistsNothing(t *testing.T) {
	t.Parallel()

	store := &fakeTurnStore{}
	svc := newChatService(store, &fakeCompleter{err: errors.New("connection refused")}, nil)

	_, err := svc.Converse(context.Background(), 1, "李白", "hi")
	if !errors.Is(err, ErrUpstreamFailed) {
		t.Fatalf("err = %v, want ErrUpstreamFailed", err)
	}
	if store.count() != 0 {
		t.Fatalf("messages persisted after upstream failure")
	}
}

func TestConverse_MalformedUpstreamResponse(t *testing.T) {
	t.Parallel()

	store := &fakeTurnStore{}
	svc := newChatService(store, &fakeCompleter{err: fmt.Errorf("wrapped: %w", ai.ErrMalformedResponse)}, nil)

	_, err := svc.Converse(context.Background(), 1, "李白", "hi")
	if !errors.Is(err, ErrUpstreamMalformed) {
		t.Fatalf("err = %v, want ErrUpstreamMalformed", err)
	}
}

// Fixes the post-upstream persistence policy: a failed commit discards the
// generated reply and surfaces the persistence error.
func TestConverse_PersistFailureDiscardsReply(t *testing.T) {
	t.Parallel()

	store := &fakeTurnStore{failNext: true}
	publisher := &fakePublisher{}
	svc := newChatService(store, &fakeCompleter{reply: "桃花潭水深千尺"}, publisher)

	reply, err := svc.Converse(context.Background(), 1, "李白", "hi")
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("err = %v, want ErrPersistFailed", err)
	}
	if reply != "" {
		t.Fatalf("reply = %q, want discarded", reply)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("turn event published for uncommitted turn")
	}
}

func TestConverse_ConcurrentUpstreamFailuresStayIndependent(t *testing.T) {
	t.Parallel()

	store := &fakeTurnStore{}
	svc := newChatService(store, &fakeCompleter{err: errors.New("upstream down")}, nil)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Converse(context.Background(), uint(i+1), "李白", "hi")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrUpstreamFailed) {
			t.Fatalf("request %d: err = %v, want ErrUpstreamFailed", i, err)
		}
	}
	if store.count() != 0 {
		t.Fatalf("history corrupted by failed concurrent requests: %d messages", store.count())
	}
}

func TestSearch_CaseInsensitiveNewestFirst(t *testing.T) {
	t.Parallel()

	store := &fakeTurnStore{}
	svc := newChatService(store, &fakeCompleter{reply: "ok"}, nil)
	seed := []string{"the moon rises", "hello", "MOON over lake"}
	for _, content := range seed {
		if _, err := store.AppendTurn(7, "李白", content, "答复"); err != nil {
			t.Fatalf("seed AppendTurn: %v", err)
		}
	}

	results, err := svc.Search(7, "moon")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Content != "MOON over lake" || results[1].Content != "the moon rises" {
		t.Fatalf("results out of order: %q then %q", results[0].Content, results[1].Content)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	t.Parallel()

	svc := newChatService(&fakeTurnStore{}, &fakeCompleter{reply: "ok"}, nil)
	if _, err := svc.Search(1, "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestConverse_PromptEmbedsPersonaAndUserText(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt("李白", libaiEntry(), "月亮为何发光？")
	for _, want := range []string{"你现在是李白", "本人", "月亮为何发光？", "引用自己的诗词"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
