// Package authoring coordinates writes that span an account and its stories. The store
// offers single-record atomicity only, so every workflow is a saga ordered to leave, at
// worst, a story without an owner reference and never an account referencing a missing
// story.
package authoring

import (
	"context"
	"errors"
	"slices"

	"github.com/inkpath/backend/internal/accounts"
	"github.com/inkpath/backend/internal/apperrors"
	"github.com/inkpath/backend/internal/identifier"
	"github.com/inkpath/backend/internal/saga"
	"github.com/inkpath/backend/internal/stories"
	"go.uber.org/zap"
)

const (
	workflowCreateStory   = "create_story"
	workflowDeleteStory   = "delete_story"
	workflowAddFavourite  = "add_favourite"
	workflowDeleteAccount = "delete_account"

	stepCreateStory     = "create_story"
	stepLinkAuthor      = "link_author"
	stepUnlinkAuthor    = "unlink_author"
	stepPruneFavourites = "prune_favourites"
	stepDeleteStory     = "delete_story"
	stepAddFavourite    = "add_favourite"
	stepVerifyStory     = "verify_story"
)

const (
	messageNotAuthenticated = "Not authorised"
	messageAccountNotFound  = "Not authorised, user not found"
	messageUserNotFound     = "User not found"
	messageStoryNotFound    = "Story not found"
	messageStoryPersistence = "Failed to save story"
	messageLinkPersistence  = "Failed to link story to its author"
	messagePersistence      = "Failed to update stories"
)

var (
	errMissingAccounts   = errors.New("authoring: account store is required")
	errMissingStories    = errors.New("authoring: story store is required")
	errMissingIDProvider = errors.New("authoring: id provider is required")
)

// ServiceConfig describes the dependencies of the authoring service.
type ServiceConfig struct {
	Accounts   accounts.Store
	Stories    stories.Store
	IDProvider identifier.Provider
	Logger     *zap.Logger
}

// Service runs the linked account and story workflows.
type Service struct {
	accounts   accounts.Store
	stories    stories.Store
	idProvider identifier.Provider
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the authoring service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Accounts == nil {
		return nil, errMissingAccounts
	}
	if cfg.Stories == nil {
		return nil, errMissingStories
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		accounts:   cfg.Accounts,
		stories:    cfg.Stories,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateStory persists a default story authored by authorID and appends its id to the
// author's stories. When the author can no longer be found the story is deleted again and
// AccountNotFound is returned. A failed rollback is logged and counted, never retried.
func (s *Service) CreateStory(ctx context.Context, authorID string) (stories.Story, error) {
	if authorID == "" {
		return stories.Story{}, apperrors.New(apperrors.KindNotAuthenticated, messageNotAuthenticated)
	}

	var created stories.Story
	workflow := saga.New(saga.WithFailurePolicy(s.reportCompensationFailure(workflowCreateStory,
		func() []zap.Field {
			return []zap.Field{zap.String("orphaned_story_id", created.ID), zap.String("author_id", authorID)}
		},
		func(failure saga.CompensationFailure) {
			if failure.Step == stepCreateStory {
				orphanedStoriesTotal.Inc()
			}
		})))

	workflow.AddStep(stepCreateStory,
		func(ctx context.Context) error {
			id, err := s.idProvider.NewID()
			if err != nil {
				return apperrors.Wrap(apperrors.KindPersistence, messageStoryPersistence, err)
			}
			story := stories.NewStory(id, authorID)
			if err := s.stories.Create(ctx, &story); err != nil {
				return apperrors.Wrap(apperrors.KindPersistence, messageStoryPersistence, err)
			}
			created = story
			return nil
		},
		func(ctx context.Context) error {
			_, err := s.stories.Delete(ctx, created.ID)
			if errors.Is(err, stories.ErrNotFound) {
				return nil
			}
			return err
		})

	workflow.AddStep(stepLinkAuthor,
		func(ctx context.Context) error {
			_, err := s.accounts.PushStory(ctx, authorID, created.ID)
			if errors.Is(err, accounts.ErrNotFound) {
				return apperrors.Wrap(apperrors.KindAccountNotFound, messageAccountNotFound, err)
			}
			if err != nil {
				return apperrors.Wrap(apperrors.KindPersistence, messageLinkPersistence, err)
			}
			return nil
		},
		nil)

	if err := workflow.Run(ctx); err != nil {
		return stories.Story{}, s.workflowFailed(workflowCreateStory, err, zap.String("author_id", authorID))
	}

	storiesCreatedTotal.Inc()
	s.logger.Info("story created", zap.String("story_id", created.ID), zap.String("author_id", authorID))
	return created, nil
}

// DeleteStory unlinks the story from its author, prunes it from every favourites list and
// then deletes it. Completed unlink and prune steps are restored if a later step fails.
func (s *Service) DeleteStory(ctx context.Context, storyID string) error {
	story, err := s.stories.FindByID(ctx, storyID)
	if errors.Is(err, stories.ErrNotFound) {
		return apperrors.New(apperrors.KindNotFound, messageStoryNotFound)
	}
	if err != nil {
		s.logError(workflowDeleteStory, "lookup_failed", err, zap.String("story_id", storyID))
		return apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}

	var (
		linkedAt     = -1
		favouritedBy []string
	)
	storyFields := func() []zap.Field {
		return []zap.Field{zap.String("story_id", storyID), zap.String("author_id", story.Author)}
	}
	workflow := saga.New(saga.WithFailurePolicy(s.reportCompensationFailure(workflowDeleteStory, storyFields, nil)))

	workflow.AddStep(stepUnlinkAuthor,
		func(ctx context.Context) error {
			author, err := s.accounts.FindByID(ctx, story.Author)
			if errors.Is(err, accounts.ErrNotFound) {
				return nil
			}
			if err != nil {
				return apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
			}
			position := slices.Index(author.Stories, storyID)
			if position < 0 {
				return nil
			}
			_, err = s.accounts.PullStory(ctx, story.Author, storyID)
			if errors.Is(err, accounts.ErrNotFound) {
				return nil
			}
			if err != nil {
				return apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
			}
			linkedAt = position
			return nil
		},
		func(ctx context.Context) error {
			if linkedAt < 0 {
				return nil
			}
			// Restore at the original index; Stories is ordered.
			_, err := s.accounts.InsertStory(ctx, story.Author, storyID, linkedAt)
			return err
		})

	workflow.AddStep(stepPruneFavourites,
		func(ctx context.Context) error {
			affected, err := s.accounts.PullFavouriteEverywhere(ctx, storyID)
			if err != nil {
				return apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
			}
			favouritedBy = affected
			return nil
		},
		func(ctx context.Context) error {
			var restoreErr error
			for _, accountID := range favouritedBy {
				_, err := s.accounts.AddFavourite(ctx, accountID, storyID)
				if err != nil && !errors.Is(err, accounts.ErrNotFound) {
					restoreErr = errors.Join(restoreErr, err)
				}
			}
			return restoreErr
		})

	workflow.AddStep(stepDeleteStory,
		func(ctx context.Context) error {
			_, err := s.stories.Delete(ctx, storyID)
			if err != nil && !errors.Is(err, stories.ErrNotFound) {
				return apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
			}
			return nil
		},
		nil)

	if err := workflow.Run(ctx); err != nil {
		return s.workflowFailed(workflowDeleteStory, err, storyFields()...)
	}

	storiesDeletedTotal.Inc()
	s.logger.Info("story deleted",
		zap.String("story_id", storyID),
		zap.String("author_id", story.Author),
		zap.Int("favourites_pruned", len(favouritedBy)))
	return nil
}

// DeleteAccount removes the account, then deletes every story it authored and withdraws its
// likes. The account is removed first so no remaining account references a deleted story;
// cleanup failures are logged as orphans and do not fail the call.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	if _, err := s.accounts.Delete(ctx, accountID); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return apperrors.New(apperrors.KindNotFound, messageUserNotFound)
		}
		s.logError(workflowDeleteAccount, "delete_failed", err, zap.String("account_id", accountID))
		return apperrors.Wrap(apperrors.KindPersistence, "Failed to delete user", err)
	}

	authored, err := s.stories.ListByAuthor(ctx, accountID)
	if err != nil {
		s.logError(workflowDeleteAccount, "list_stories_failed", err, zap.String("account_id", accountID))
	}
	for _, story := range authored {
		if _, err := s.accounts.PullFavouriteEverywhere(ctx, story.ID); err != nil {
			s.logError(workflowDeleteAccount, "prune_favourites_failed", err,
				zap.String("account_id", accountID), zap.String("story_id", story.ID))
		}
		if _, err := s.stories.Delete(ctx, story.ID); err != nil && !errors.Is(err, stories.ErrNotFound) {
			orphanedStoriesTotal.Inc()
			s.logError(workflowDeleteAccount, "delete_story_failed", err,
				zap.String("account_id", accountID), zap.String("orphaned_story_id", story.ID))
		}
	}

	unliked, err := s.stories.RemoveLikesBy(ctx, accountID)
	if err != nil {
		s.logError(workflowDeleteAccount, "remove_likes_failed", err, zap.String("account_id", accountID))
	}

	s.logger.Info("account deleted",
		zap.String("account_id", accountID),
		zap.Int("stories_deleted", len(authored)),
		zap.Int("likes_withdrawn", len(unliked)))
	return nil
}

// AddFavourite adds the story to the account's favourites. The story is checked again after
// the write so a concurrently deleted story is not left referenced.
func (s *Service) AddFavourite(ctx context.Context, accountID string, storyID string) (accounts.Account, error) {
	if accountID == "" {
		return accounts.Account{}, apperrors.New(apperrors.KindNotAuthenticated, messageNotAuthenticated)
	}
	if err := s.requireStory(ctx, storyID); err != nil {
		return accounts.Account{}, err
	}

	var (
		updated accounts.Account
		added   bool
	)
	workflow := saga.New(saga.WithFailurePolicy(s.reportCompensationFailure(workflowAddFavourite,
		func() []zap.Field {
			return []zap.Field{zap.String("account_id", accountID), zap.String("story_id", storyID)}
		}, nil)))

	workflow.AddStep(stepAddFavourite,
		func(ctx context.Context) error {
			before, err := s.accounts.FindByID(ctx, accountID)
			if err != nil {
				return accountError(err)
			}
			added = !slices.Contains(before.FavouriteStories, storyID)
			updated, err = s.accounts.AddFavourite(ctx, accountID, storyID)
			if err != nil {
				return accountError(err)
			}
			return nil
		},
		func(ctx context.Context) error {
			if !added {
				return nil
			}
			_, err := s.accounts.RemoveFavourite(ctx, accountID, storyID)
			if errors.Is(err, accounts.ErrNotFound) {
				return nil
			}
			return err
		})

	workflow.AddStep(stepVerifyStory,
		func(ctx context.Context) error {
			return s.requireStory(ctx, storyID)
		},
		nil)

	if err := workflow.Run(ctx); err != nil {
		return accounts.Account{}, s.workflowFailed(workflowAddFavourite, err,
			zap.String("account_id", accountID), zap.String("story_id", storyID))
	}
	return updated.Sanitized(), nil
}

// RemoveFavourite removes the story from the account's favourites. Removing a story that is
// not a favourite is a no-op.
func (s *Service) RemoveFavourite(ctx context.Context, accountID string, storyID string) (accounts.Account, error) {
	if accountID == "" {
		return accounts.Account{}, apperrors.New(apperrors.KindNotAuthenticated, messageNotAuthenticated)
	}
	updated, err := s.accounts.RemoveFavourite(ctx, accountID, storyID)
	if err != nil {
		mapped := accountError(err)
		if apperrors.HasKind(mapped, apperrors.KindPersistence) {
			s.logError("authoring.remove_favourite", "update_failed", err, zap.String("account_id", accountID))
		}
		return accounts.Account{}, mapped
	}
	return updated.Sanitized(), nil
}

func (s *Service) requireStory(ctx context.Context, storyID string) error {
	_, err := s.stories.FindByID(ctx, storyID)
	if errors.Is(err, stories.ErrNotFound) {
		return apperrors.New(apperrors.KindNotFound, messageStoryNotFound)
	}
	if err != nil {
		return apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}
	return nil
}

// workflowFailed unwraps the failing step's error, counts the rollback and logs
// persistence failures.
func (s *Service) workflowFailed(workflow string, err error, fields ...zap.Field) error {
	sagaRollbacksTotal.WithLabelValues(workflow).Inc()
	var stepErr *saga.StepError
	if !errors.As(err, &stepErr) {
		s.logError(workflow, "saga_invalid", err, fields...)
		return apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
	}
	fields = append(fields, zap.String("step", stepErr.Step), zap.Int("compensation_failures", len(stepErr.CompensationFailures)))
	if apperrors.HasKind(stepErr.Err, apperrors.KindPersistence) {
		s.logError(workflow, "step_failed", stepErr.Err, fields...)
	} else {
		s.logger.Info("linked write rolled back", append(fields, zap.String("workflow", workflow), zap.Error(stepErr.Err))...)
	}
	return stepErr.Err
}

func (s *Service) reportCompensationFailure(workflow string, fields func() []zap.Field, onFailure func(saga.CompensationFailure)) saga.FailurePolicy {
	return func(_ context.Context, failure saga.CompensationFailure) {
		compensationFailuresTotal.WithLabelValues(workflow, failure.Step).Inc()
		if onFailure != nil {
			onFailure(failure)
		}
		attrs := append(fields(), zap.String("step", failure.Step))
		s.logError(workflow, "compensation_failed", failure.Err, attrs...)
	}
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
	s.logger.Error("authoring service error", attrs...)
}

func accountError(err error) error {
	if errors.Is(err, accounts.ErrNotFound) {
		return apperrors.Wrap(apperrors.KindAccountNotFound, messageAccountNotFound, err)
	}
	return apperrors.Wrap(apperrors.KindPersistence, messagePersistence, err)
}
