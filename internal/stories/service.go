package stories

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/inkpath/backend/internal/apperrors"
	"go.uber.org/zap"
)

const (
	opList       = "stories.list"
	opGet        = "stories.get"
	opUpdate     = "stories.update"
	opLike       = "stories.like"
	opUnlike     = "stories.unlike"
	opSetPublish = "stories.set_publish"
)

const (
	messageNotFound    = "Story not found"
	messagePersistence = "Failed to access stories"
)

var errMissingStore = errors.New("stories: store is required")

// ServiceConfig describes the dependencies of the story service.
type ServiceConfig struct {
	Store  Store
	Logger *zap.Logger
}

// Service reads stories and applies edits and engagement changes to them.
type Service struct {
	store    Store
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService validates dependencies and constructs the story service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: cfg.Store, validate: newValidator(), logger: logger}, nil
}

// List returns every story.
func (s *Service) List(ctx context.Context) ([]Story, error) {
	stories, err := s.store.List(ctx)
	if err != nil {
		s.logError(opList, "query_failed", err)
		return nil, apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}
	result := make([]Story, 0, len(stories))
	for _, story := range stories {
		result = append(result, story.withSlices())
	}
	return result, nil
}

// Get returns one story.
func (s *Service) Get(ctx context.Context, id string) (Story, error) {
	story, err := s.store.FindByID(ctx, id)
	return s.result(opGet, id, story, err)
}

// Update merges a partial edit into the story. Chapters are replaced as a whole and every
// choice must target an existing scene of the resulting chapter list.
func (s *Service) Update(ctx context.Context, id string, update Update) (Story, error) {
	update = update.normalized()
	if update.Chapters != nil {
		if err := validateChapters(s.validate, *update.Chapters); err != nil {
			return Story{}, apperrors.Wrap(apperrors.KindValidation, validationMessage(err), err)
		}
	}
	if update.IsEmpty() {
		return s.Get(ctx, id)
	}
	story, err := s.store.Update(ctx, id, update)
	return s.result(opUpdate, id, story, err)
}

// Like records accountID's like. Repeated likes leave a single entry.
func (s *Service) Like(ctx context.Context, id string, accountID string) (Story, error) {
	story, err := s.store.AddLike(ctx, id, accountID)
	return s.result(opLike, id, story, err)
}

// Unlike removes accountID's like if present.
func (s *Service) Unlike(ctx context.Context, id string, accountID string) (Story, error) {
	story, err := s.store.RemoveLike(ctx, id, accountID)
	return s.result(opUnlike, id, story, err)
}

// IsLikedBy reports whether accountID likes the story.
func (s *Service) IsLikedBy(ctx context.Context, id string, accountID string) (bool, error) {
	story, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return IsLikedBy(story, accountID), nil
}

// SetPublish overwrites the publish flag.
func (s *Service) SetPublish(ctx context.Context, id string, publish bool) (Story, error) {
	story, err := s.store.SetPublish(ctx, id, publish)
	return s.result(opSetPublish, id, story, err)
}

func (s *Service) result(operation string, id string, story Story, err error) (Story, error) {
	if errors.Is(err, ErrNotFound) {
		return Story{}, apperrors.New(apperrors.KindNotFound, messageNotFound)
	}
	if err != nil {
		s.logError(operation, "store_failed", err, zap.String("story_id", id))
		return Story{}, apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}
	return story.withSlices(), nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("stories service error", attrs...)
}
