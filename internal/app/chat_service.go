package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/ai"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/knowledge"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/model"
)

var (
	ErrMessageEmpty        = errors.New("message content is empty")
	ErrPoetNotFound        = errors.New("poet not found")
	ErrUpstreamUnavailable = errors.New("llm api key is not configured")
	ErrUpstreamFailed      = errors.New("llm call failed")
	ErrUpstreamMalformed   = errors.New("llm response malformed")
	ErrPersistFailed       = errors.New("persist chat turn failed")
)

// PoetStore resolves poet names to their knowledge entries.
type PoetStore interface {
	Get(name string) (*knowledge.Entry, bool)
}

// Completer is the external completion API.
type Completer interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
}

// TurnStore is the slice of the persistence layer the chat service needs.
type TurnStore interface {
	AppendTurn(userID uint, poetName, userText, assistantText string) ([]model.Message, error)
	ListByUserAndPoet(userID uint, poetName string) ([]model.Message, error)
	SearchByContent(userID uint, query string) ([]model.Message, error)
}

type HistoryCache interface {
	GetHistory(ctx context.Context, userID uint, poetName string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, userID uint, poetName string, messages []model.Message) error
	DeleteHistory(ctx context.Context, userID uint, poetName string) error
	MarkDirty(ctx context.Context, userID uint, poetName string) error
	IsDirty(ctx context.Context, userID uint, poetName string) (bool, error)
}

type TurnPublisher interface {
	Publish(ctx context.Context, event model.TurnEvent) error
}

type ChatService struct {
	poets        PoetStore
	messages     TurnStore
	completer    Completer
	historyCache HistoryCache
	publisher    TurnPublisher
	llm          ai.ChatConfig
	timeout      time.Duration
}

func NewChatService(
	poets PoetStore,
	messages TurnStore,
	completer Completer,
	historyCache HistoryCache,
	publisher TurnPublisher,
	llm ai.ChatConfig,
	timeout time.Duration,
) *ChatService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatService{
		poets:        poets,
		messages:     messages,
		completer:    completer,
		historyCache: historyCache,
		publisher:    publisher,
		llm:          llm,
		timeout:      timeout,
	}
}

// Converse runs one chat turn: resolve the poet, call the completion API,
// then commit both sides of the exchange in one transaction. If persistence
// fails after a successful upstream call the generated reply is discarded
// and the caller gets ErrPersistFailed.
func (s *ChatService) Converse(ctx context.Context, userID uint, poetName, content string) (string, error) {
	if userID == 0 {
		return "", ErrInvalidInput
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrMessageEmpty
	}

	entry, ok := s.poets.Get(poetName)
	if !ok {
		return "", ErrPoetNotFound
	}
	if s.llm.APIKey == "" {
		return "", ErrUpstreamUnavailable
	}

	prompt := buildPrompt(poetName, entry, content)

	// The upstream call is the slow part; it runs without any lock or
	// open transaction.
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reply, err := s.completer.Complete(callCtx, s.llm, []ai.ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		if errors.Is(err, ai.ErrMalformedResponse) {
			return "", fmt.Errorf("%w: %v", ErrUpstreamMalformed, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstreamFailed, err)
	}

	if _, err := s.messages.AppendTurn(userID, poetName, content, reply); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	s.afterTurn(ctx, userID, poetName)
	return reply, nil
}

// afterTurn invalidates the cached transcript and emits the turn event.
// Both are best effort; the turn is already committed.
func (s *ChatService) afterTurn(ctx context.Context, userID uint, poetName string) {
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, userID, poetName)
		_ = s.historyCache.DeleteHistory(ctx, userID, poetName)
	}
	if s.publisher != nil {
		event := model.TurnEvent{UserID: userID, PoetName: poetName, OccurredAt: time.Now()}
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Printf("publish turn event failed: %v", err)
		}
	}
}

func (s *ChatService) History(ctx context.Context, userID uint, poetName string) ([]model.Message, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, userID, poetName)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, userID, poetName); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.messages.ListByUserAndPoet(userID, poetName)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, userID, poetName); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, userID, poetName, messages)
		}
	}
	return messages, nil
}

func (s *ChatService) Search(userID uint, query string) ([]model.Message, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidInput
	}
	return s.messages.SearchByContent(userID, query)
}

func buildPrompt(poetName string, entry *knowledge.Entry, userText string) string {
	return fmt.Sprintf(`你现在是%s，一位著名的诗人。以下是你的基本信息：
%s

请以%s的身份，用符合其性格和时代特征的方式回答用户的问题。
用户说：%s

请用古代文人的语气回答，可以适当引用自己的诗词。回答要简洁有趣。`,
		poetName, entry.PromptJSON(), poetName, userText)
}
