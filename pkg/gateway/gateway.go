// Package gateway is the conversation front door: it composes user messages,
// resolves credentials, calls the primary provider, escalates a rate-limited
// call to the fallback provider once, and turns every failure into an
// assistant message.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/compose"
	"github.com/papercomputeco/parley/pkg/credential"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/logger"
	"github.com/papercomputeco/parley/pkg/merkle"
	"github.com/papercomputeco/parley/pkg/models"
	"github.com/papercomputeco/parley/pkg/prefs"
	"github.com/papercomputeco/parley/pkg/provider"
	"github.com/papercomputeco/parley/pkg/transcript"
	"github.com/papercomputeco/parley/pkg/usage"
)

// ErrSendInFlight is returned when Send is called while another send is
// still waiting for its reply.
var ErrSendInFlight = errors.New("a message is already being sent")

// Completer sends a conversation to one provider. *provider.Client
// implements it.
type Completer interface {
	Name() string
	Complete(ctx context.Context, cred credential.Credential, history []llm.Message) (*provider.Completion, error)
}

// CredentialResolver resolves a key and model without network access.
// *credential.Resolver implements it.
type CredentialResolver interface {
	Resolve(explicit credential.Explicit) (credential.Credential, error)
}

// Config holds per-session overrides. Empty fields fall through to the
// resolvers.
type Config struct {
	APIKey        string
	Model         string
	FallbackModel string
}

// Deps are the gateway's collaborators. Resolver and Primary are required.
type Deps struct {
	Resolver CredentialResolver
	Primary  Completer

	// Fallback and FallbackResolver serve rate-limited sends. Without them a
	// rate limit ends the turn as FALLBACK_NOT_CONFIGURED.
	Fallback         Completer
	FallbackResolver CredentialResolver

	// Storer persists the conversation and Prefs remembers its head. Both
	// are optional.
	Storer merkle.Storer
	Prefs  prefs.Store

	Notifier Notifier
	Logger   *zap.Logger
}

// Gateway owns one conversation.
type Gateway struct {
	config Config
	deps   Deps
	logger *zap.Logger

	attachments compose.Buffer
	tokens      *usage.Accumulator

	mu       sync.Mutex
	messages []llm.Message
	loading  bool
	lastErr  provider.Kind
	head     string
	// epoch changes whenever the conversation is replaced, so a persist
	// started for an older conversation cannot move the head.
	epoch uint64

	// persistMu keeps appends in send order.
	persistMu sync.Mutex
}

// New returns a Gateway with an empty conversation. Call Restore to load
// the persisted one.
func New(config Config, deps Deps) (*Gateway, error) {
	if deps.Resolver == nil {
		return nil, errors.New("gateway: credential resolver is required")
	}
	if deps.Primary == nil {
		return nil, errors.New("gateway: primary provider is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = NotifierFunc(func(Toast) {})
	}

	return &Gateway{
		config: config,
		deps:   deps,
		logger: deps.Logger,
		tokens: usage.NewAccumulator(),
	}, nil
}

// Send sends text together with the pending attachments and returns the
// assistant message appended in reply. Provider failures are not returned as
// errors: the reply is then a guidance message. Errors are returned only for
// empty input (compose.ErrEmpty) and overlapping sends (ErrSendInFlight),
// and in both cases nothing changes.
func (g *Gateway) Send(ctx context.Context, text string) (*llm.Message, error) {
	g.mu.Lock()
	if g.loading {
		g.mu.Unlock()
		return nil, ErrSendInFlight
	}

	userMsg, err := compose.Compose(text, g.attachments.Pending())
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}

	cred, err := g.deps.Resolver.Resolve(credential.Explicit{Key: g.config.APIKey, Model: g.config.Model})
	if err != nil {
		// No network call. Attachments stay pending for the retry.
		reply := llm.NewMessage(llm.RoleAssistant, Guidance(&provider.Error{Kind: provider.KindNoCredential, Err: err}))
		g.messages = append(g.messages, reply)
		g.lastErr = provider.KindNoCredential
		epoch := g.epoch
		g.mu.Unlock()

		g.logger.Warn("no credential configured, send skipped")
		g.notify(toastFor(&provider.Error{Kind: provider.KindNoCredential}))
		g.persist(ctx, epoch, merkle.NewMessageBucket(reply))
		return &reply, nil
	}

	g.attachments.Take()
	g.messages = append(g.messages, userMsg)
	history := append([]llm.Message(nil), g.messages...)
	g.loading = true
	g.lastErr = provider.KindNone
	epoch := g.epoch
	g.mu.Unlock()

	if userMsg.HasImages() && !models.SupportsImages(cred.Model) {
		g.logger.Warn("model may not accept images", zap.String("model", cred.Model))
	}

	g.logger.Info("sending message",
		zap.String("provider", g.deps.Primary.Name()),
		zap.String("model", cred.Model),
		zap.String("content_preview", logger.Preview(userMsg.Content, 50)),
		zap.Int("attachments", len(userMsg.Attachments)),
	)

	completion, err := g.deps.Primary.Complete(ctx, cred, history)
	primary := err == nil
	if err != nil && provider.KindOf(err).Recovery() == provider.RecoverFallback {
		completion, err = g.fallback(ctx, history, err)
	}

	replyBucket := g.finish(completion, primary, err)
	g.persist(ctx, epoch, merkle.NewMessageBucket(userMsg), replyBucket)

	reply := replyBucket.Message()
	return &reply, nil
}

// fallback makes the single fallback call allowed after a rate limit.
func (g *Gateway) fallback(ctx context.Context, history []llm.Message, primaryErr error) (*provider.Completion, error) {
	if g.deps.Fallback == nil {
		return nil, &provider.Error{Kind: provider.KindFallbackNotConfigured, Primary: primaryErr}
	}

	var cred credential.Credential
	if g.deps.FallbackResolver != nil {
		resolved, err := g.deps.FallbackResolver.Resolve(credential.Explicit{Model: g.config.FallbackModel})
		if err != nil {
			return nil, &provider.Error{Kind: provider.KindFallbackNotConfigured, Provider: g.deps.Fallback.Name(), Primary: primaryErr, Err: err}
		}
		cred = resolved
	}

	g.logger.Info("primary rate limited, trying fallback",
		zap.String("provider", g.deps.Fallback.Name()),
		zap.String("model", cred.Model),
	)

	completion, err := g.deps.Fallback.Complete(ctx, cred, history)
	if err == nil {
		return completion, nil
	}

	var perr *provider.Error
	if !errors.As(err, &perr) {
		return nil, &provider.Error{Kind: provider.KindFallbackFailed, Provider: g.deps.Fallback.Name(), Primary: primaryErr, Err: err}
	}
	if perr.Kind == provider.KindFallbackNotConfigured {
		perr.Primary = primaryErr
		return nil, perr
	}
	return nil, &provider.Error{
		Kind:     provider.KindFallbackFailed,
		Provider: perr.Provider,
		Status:   perr.Status,
		Message:  perr.Message,
		Primary:  primaryErr,
		Err:      perr,
	}
}

// finish appends the reply for a completed send and returns its bucket.
func (g *Gateway) finish(completion *provider.Completion, primary bool, err error) merkle.Bucket {
	var (
		reply  llm.Message
		bucket merkle.Bucket
		toast  Toast
	)

	if err != nil {
		kind := provider.KindOf(err)
		reply = llm.NewMessage(llm.RoleAssistant, Guidance(err))
		bucket = merkle.NewMessageBucket(reply)
		toast = toastFor(err)
		g.logger.Warn("send failed", zap.Stringer("kind", kind), zap.Error(err))
	} else {
		reply = llm.NewMessage(llm.RoleAssistant, completion.Text)
		bucket = merkle.NewMessageBucket(reply)
		bucket.Model = completion.Model
		bucket.Provider = completion.Provider
		if primary {
			// Only primary usage counts towards the session total.
			g.tokens.Add(completion.Usage)
			u := completion.Usage
			bucket.Usage = &u
		}
		toast = Toast{
			Title:       "✓ Response received",
			Description: fmt.Sprintf("Tokens used: %d", completion.Usage.TotalTokens),
		}
		g.logger.Info("received reply",
			zap.String("provider", completion.Provider),
			zap.String("model", completion.Model),
			zap.Int("total_tokens", completion.Usage.TotalTokens),
			zap.String("content_preview", logger.Preview(completion.Text, 100)),
		)
	}

	g.mu.Lock()
	g.messages = append(g.messages, reply)
	g.loading = false
	g.lastErr = provider.KindOf(err)
	g.mu.Unlock()

	g.notify(toast)
	return bucket
}

// Attach adds attachments to the pending buffer.
func (g *Gateway) Attach(a ...llm.Attachment) {
	if len(a) == 0 {
		return
	}
	g.attachments.Add(a...)

	names := make([]string, len(a))
	for i, att := range a {
		names[i] = att.Name
	}
	g.notify(Toast{Title: fmt.Sprintf("Files attached: %d", len(a)), Description: strings.Join(names, ", ")})
}

// AttachFile classifies data as a text or image attachment and adds it.
// Oversized or unsupported files are rejected with a destructive toast.
func (g *Gateway) AttachFile(name string, data []byte) (llm.Attachment, error) {
	a, err := compose.NewAttachment(name, data)
	if err != nil {
		title := "❌ Could not read file"
		if errors.Is(err, compose.ErrAttachmentTooLarge) {
			title = "❌ File too large"
		}
		g.notify(Toast{Title: title, Description: name + ": " + err.Error(), Destructive: true})
		return llm.Attachment{}, err
	}
	g.Attach(a)
	return a, nil
}

// RemoveAttachment drops the pending attachment at index i.
func (g *Gateway) RemoveAttachment(i int) error {
	if _, err := g.attachments.Remove(i); err != nil {
		return err
	}
	g.notify(Toast{Title: "File removed"})
	return nil
}

// Pending returns the attachments waiting for the next send.
func (g *Gateway) Pending() []llm.Attachment {
	return g.attachments.Pending()
}

// Messages returns a copy of the conversation.
func (g *Gateway) Messages() []llm.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.Message(nil), g.messages...)
}

// Message returns the message at index i.
func (g *Gateway) Message(i int) (llm.Message, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i < 0 || i >= len(g.messages) {
		return llm.Message{}, false
	}
	return g.messages[i], true
}

// Loading reports whether a send is waiting for its reply.
func (g *Gateway) Loading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading
}

// TotalTokens returns the tokens used by successful primary replies since
// the conversation started.
func (g *Gateway) TotalTokens() int {
	return g.tokens.Total()
}

// LastError returns the failure kind of the last send, KindNone on success.
func (g *Gateway) LastError() provider.Kind {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Head returns the hash of the last persisted message.
func (g *Gateway) Head() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.head
}

// Clear empties the conversation, resets the token count and forgets the
// persisted head. Stored nodes are kept.
func (g *Gateway) Clear(ctx context.Context) error {
	g.mu.Lock()
	if g.loading {
		g.mu.Unlock()
		return ErrSendInFlight
	}
	g.messages = nil
	g.lastErr = provider.KindNone
	g.head = ""
	g.epoch++
	if g.deps.Prefs != nil {
		if err := g.deps.Prefs.Delete(prefs.KeyChatHead); err != nil {
			g.logger.Warn("failed to forget conversation head", zap.Error(err))
		}
	}
	g.mu.Unlock()

	g.tokens.Reset()
	g.logger.Info("conversation cleared")
	g.notify(Toast{Title: "History cleared"})
	return nil
}

// Restore loads the conversation whose head is saved in Prefs. The token
// total is rebuilt from the stored primary usage.
func (g *Gateway) Restore(ctx context.Context) error {
	if g.deps.Storer == nil || g.deps.Prefs == nil {
		return nil
	}
	head, ok, err := g.deps.Prefs.Get(prefs.KeyChatHead)
	if err != nil {
		return fmt.Errorf("read conversation head: %w", err)
	}
	if !ok || head == "" {
		return nil
	}

	buckets, err := merkle.History(ctx, g.deps.Storer, head)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", head, err)
	}

	messages := make([]llm.Message, len(buckets))
	total := 0
	for i, b := range buckets {
		messages[i] = b.Message()
		if b.Usage != nil {
			total += b.Usage.TotalTokens
		}
	}

	g.mu.Lock()
	g.messages = messages
	g.head = head
	g.mu.Unlock()
	g.tokens.Set(total)

	g.logger.Info("conversation restored",
		zap.String("head_hash", logger.Preview(head, 16)),
		zap.Int("message_count", len(messages)),
		zap.Int("total_tokens", total),
	)
	return nil
}

// Export renders the conversation.
func (g *Gateway) Export(format transcript.Format) ([]byte, error) {
	return transcript.Export(g.Messages(), format, time.Now())
}

// Import replaces the conversation with a JSON export and persists it as a
// new chain. The token count restarts at zero.
func (g *Gateway) Import(ctx context.Context, data []byte) (int, error) {
	messages, err := transcript.Import(data, time.Now())
	if err != nil {
		return 0, err
	}

	g.mu.Lock()
	if g.loading {
		g.mu.Unlock()
		return 0, ErrSendInFlight
	}
	g.messages = messages
	g.lastErr = provider.KindNone
	g.head = ""
	g.epoch++
	epoch := g.epoch
	if g.deps.Prefs != nil {
		if err := g.deps.Prefs.Delete(prefs.KeyChatHead); err != nil {
			g.logger.Warn("failed to forget conversation head", zap.Error(err))
		}
	}
	g.mu.Unlock()
	g.tokens.Reset()

	buckets := make([]merkle.Bucket, len(messages))
	for i, m := range messages {
		buckets[i] = merkle.NewMessageBucket(m)
	}
	g.persist(ctx, epoch, buckets...)

	g.notify(Toast{Title: fmt.Sprintf("Imported %d messages", len(messages))})
	return len(messages), nil
}

// persist appends buckets below the current head of the conversation
// identified by epoch. If the conversation was cleared or replaced in the
// meantime the nodes stay in the store but the head is left alone. Storage
// failures are logged and never fail the conversation.
func (g *Gateway) persist(ctx context.Context, epoch uint64, buckets ...merkle.Bucket) {
	if g.deps.Storer == nil {
		return
	}

	g.persistMu.Lock()
	defer g.persistMu.Unlock()

	g.mu.Lock()
	if g.epoch != epoch {
		g.mu.Unlock()
		g.logger.Debug("conversation replaced, skipping store")
		return
	}
	head := g.head
	g.mu.Unlock()

	newHead, err := merkle.Append(context.WithoutCancel(ctx), g.deps.Storer, head, buckets...)
	if err != nil {
		g.logger.Error("failed to store conversation", zap.Error(err))
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.epoch != epoch {
		g.logger.Debug("conversation replaced while storing, head unchanged",
			zap.String("head_hash", logger.Preview(newHead, 16)),
		)
		return
	}
	g.head = newHead
	if g.deps.Prefs != nil {
		if err := g.deps.Prefs.Set(prefs.KeyChatHead, newHead); err != nil {
			g.logger.Warn("failed to save conversation head", zap.Error(err))
		}
	}
	g.logger.Debug("conversation stored", zap.String("head_hash", logger.Preview(newHead, 16)))
}

func (g *Gateway) notify(t Toast) {
	g.deps.Notifier.Notify(t)
}
