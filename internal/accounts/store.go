package accounts

import "context"

// Store persists accounts. Every method is atomic for a single account record. Lookups and
// mutations on a missing account return ErrNotFound; unique violations return ErrDuplicate.
type Store interface {
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id string) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	// FindByUsernameOrEmail matches the username case-insensitively or the email.
	FindByUsernameOrEmail(ctx context.Context, username string, email string) (Account, error)
	FindByUsername(ctx context.Context, username string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (Account, error)
	SetAdmin(ctx context.Context, id string, admin bool) (Account, error)
	Delete(ctx context.Context, id string) (Account, error)

	// PushStory appends the story id to the owned-story list unless already present.
	PushStory(ctx context.Context, id string, storyID string) (Account, error)
	// InsertStory places the story id at position in the owned-story list unless already
	// present. Positions past the end append.
	InsertStory(ctx context.Context, id string, storyID string, position int) (Account, error)
	PullStory(ctx context.Context, id string, storyID string) (Account, error)
	AddFavourite(ctx context.Context, id string, storyID string) (Account, error)
	RemoveFavourite(ctx context.Context, id string, storyID string) (Account, error)
	// PullFavouriteEverywhere removes the story id from every favourites list and returns
	// the ids of the accounts that referenced it.
	PullFavouriteEverywhere(ctx context.Context, storyID string) ([]string, error)
}
