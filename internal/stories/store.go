package stories

import "context"

// Store persists stories. Every method is atomic for a single story record; lookups and
// mutations on a missing story return ErrNotFound.
type Store interface {
	Create(ctx context.Context, story *Story) error
	FindByID(ctx context.Context, id string) (Story, error)
	List(ctx context.Context) ([]Story, error)
	ListByAuthor(ctx context.Context, authorID string) ([]Story, error)
	Update(ctx context.Context, id string, update Update) (Story, error)
	Delete(ctx context.Context, id string) (Story, error)

	// AddLike adds accountID to the likes set if absent.
	AddLike(ctx context.Context, id string, accountID string) (Story, error)
	RemoveLike(ctx context.Context, id string, accountID string) (Story, error)
	SetPublish(ctx context.Context, id string, publish bool) (Story, error)
	// RemoveLikesBy removes accountID from every likes set and returns the ids of the
	// stories that changed.
	RemoveLikesBy(ctx context.Context, accountID string) ([]string, error)
}
