package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/shokuba/honne/internal/identity"
	"github.com/shokuba/honne/internal/models"
	"github.com/shokuba/honne/internal/store"
	"github.com/shokuba/honne/pkg/logging"
)

// Field length bounds for post composition.
const (
	ContentMinLen  = 10
	ContentMaxLen  = 1000
	NicknameMinLen = 2
	NicknameMaxLen = 20
)

// FieldError scopes a validation failure to one input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors is the full pre-network validation result. It is local
// and field-scoped: when returned, no remote call was made.
type ValidationErrors []FieldError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return strings.Join(parts, "; ")
}

// PostInput is a candidate post before validation.
type PostInput struct {
	Content  string          `json:"content"`
	Category models.Category `json:"category"`
	Nickname string          `json:"nickname"`
	Title    string          `json:"title,omitempty"`
	ImageURL string          `json:"image_url,omitempty"`
}

// DraftStore persists an in-progress composition across sessions. The
// draft is cleared only after a confirmed successful post.
type DraftStore interface {
	Save(draft PostInput) error
	Load() (PostInput, bool, error)
	Clear() error
}

// MemoryDraftStore is a single-slot in-process DraftStore.
type MemoryDraftStore struct {
	mu    sync.Mutex
	draft PostInput
	set   bool
}

// Save implements DraftStore.
func (m *MemoryDraftStore) Save(draft PostInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = draft
	m.set = true
	return nil
}

// Load implements DraftStore.
func (m *MemoryDraftStore) Load() (PostInput, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft, m.set, nil
}

// Clear implements DraftStore.
func (m *MemoryDraftStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = PostInput{}
	m.set = false
	return nil
}

// Composer validates and writes new posts. It never patches the feed cache
// itself: the created row arrives back through the change subscription, so
// a write failure leaves no local state to undo.
type Composer struct {
	gw       store.Gateway
	id       identity.Identity
	drafts   DraftStore
	sanitize *bluemonday.Policy
	logger   *zap.Logger
}

// NewComposer creates a composer. drafts may be nil when no draft
// persistence is wanted.
func NewComposer(gw store.Gateway, id identity.Identity, drafts DraftStore) *Composer {
	return &Composer{
		gw:       gw,
		id:       id,
		drafts:   drafts,
		sanitize: bluemonday.UGCPolicy(),
		logger:   logging.WithComponent("feed"),
	}
}

// Validate checks a candidate post field by field without touching the
// network.
func Validate(in PostInput) ValidationErrors {
	var errs ValidationErrors

	content := strings.TrimSpace(in.Content)
	if len([]rune(content)) < ContentMinLen {
		errs = append(errs, FieldError{Field: "content", Message: "投稿内容は10文字以上で入力してください"})
	}
	if len([]rune(content)) > ContentMaxLen {
		errs = append(errs, FieldError{Field: "content", Message: "投稿内容は1000文字以内で入力してください"})
	}

	nickname := strings.TrimSpace(in.Nickname)
	if len([]rune(nickname)) < NicknameMinLen {
		errs = append(errs, FieldError{Field: "nickname", Message: "ニックネームは2文字以上で入力してください"})
	}
	if len([]rune(nickname)) > NicknameMaxLen {
		errs = append(errs, FieldError{Field: "nickname", Message: "ニックネームは20文字以内で入力してください"})
	}

	if in.Category == "" || !in.Category.Valid() {
		errs = append(errs, FieldError{Field: "category", Message: "カテゴリーを選択してください"})
	}

	return errs
}

// CreatePost validates, then writes the candidate post. Identity absence
// is reported as identity.ErrRequired, distinct from validation failure.
// On success the returned row carries the store-assigned identifier and
// timestamp and any saved draft is cleared; on failure the draft and the
// caller's input survive for retry.
func (c *Composer) CreatePost(ctx context.Context, in PostInput) (*models.Post, error) {
	if errs := Validate(in); len(errs) > 0 {
		return nil, errs
	}
	if !c.id.Authenticated() {
		return nil, identity.ErrRequired
	}

	userID := c.id.CurrentUserID()
	post := models.Post{
		UserID:   &userID,
		Nickname: strings.TrimSpace(c.sanitize.Sanitize(in.Nickname)),
		Category: in.Category,
		Title:    strings.TrimSpace(c.sanitize.Sanitize(in.Title)),
		Content:  strings.TrimSpace(c.sanitize.Sanitize(in.Content)),
		ImageURL: strings.TrimSpace(in.ImageURL),
	}

	if err := c.gw.Insert(ctx, store.Posts, &post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	if c.drafts != nil {
		if err := c.drafts.Clear(); err != nil {
			c.logger.Warn("Failed to clear post draft", zap.Error(err))
		}
	}

	c.logger.Info("Post created",
		zap.String("post_id", post.ID),
		zap.String("category", string(post.Category)))
	return &post, nil
}

// SaveDraft stores the in-progress composition.
func (c *Composer) SaveDraft(in PostInput) error {
	if c.drafts == nil {
		return nil
	}
	return c.drafts.Save(in)
}

// LoadDraft returns the stored composition, if any.
func (c *Composer) LoadDraft() (PostInput, bool, error) {
	if c.drafts == nil {
		return PostInput{}, false, nil
	}
	return c.drafts.Load()
}
