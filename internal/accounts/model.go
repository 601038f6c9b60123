package accounts

import (
	"errors"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultProfileImage is assigned to accounts that never uploaded an image.
	DefaultProfileImage = "defaultImage.png"
	// DefaultBio is assigned to accounts that never wrote a bio.
	DefaultBio = "All about me...."
	// MaxBioLength bounds the free-text bio.
	MaxBioLength = 500
)

var (
	// ErrNotFound is returned by stores when no account matches.
	ErrNotFound = errors.New("accounts: account not found")
	// ErrDuplicate is returned by stores when a unique username or email is taken.
	ErrDuplicate = errors.New("accounts: username or email already exists")
)

// Account is a registered identity. PasswordHash never leaves the service through JSON.
type Account struct {
	ID               string    `gorm:"column:id;primaryKey;size:64;not null" json:"id" bson:"_id"`
	Username         string    `gorm:"column:username;size:20;not null" json:"username" bson:"username"`
	UsernameKey      string    `gorm:"column:username_key;size:20;not null;uniqueIndex:idx_accounts_username_key" json:"-" bson:"username_key"`
	Email            string    `gorm:"column:email;size:320;not null;uniqueIndex:idx_accounts_email" json:"email" bson:"email"`
	PasswordHash     string    `gorm:"column:password_hash;not null" json:"-" bson:"password_hash"`
	Admin            bool      `gorm:"column:admin;not null;default:false" json:"admin" bson:"admin"`
	ProfileImage     string    `gorm:"column:profile_image;size:512;not null" json:"profileImage" bson:"profile_image"`
	Bio              string    `gorm:"column:bio;size:500;not null" json:"bio" bson:"bio"`
	Stories          []string  `gorm:"column:stories;type:text;serializer:json" json:"stories" bson:"stories"`
	FavouriteStories []string  `gorm:"column:favourite_stories;type:text;serializer:json" json:"favouriteStories" bson:"favourite_stories"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt" bson:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Account) TableName() string {
	return "accounts"
}

// Sanitized returns a copy without the password hash and with nil slices replaced so the
// JSON form always carries arrays.
func (a Account) Sanitized() Account {
	a.PasswordHash = ""
	if a.Stories == nil {
		a.Stories = []string{}
	}
	if a.FavouriteStories == nil {
		a.FavouriteStories = []string{}
	}
	return a
}

// ProfileUpdate is a partial update of the publicly editable profile fields.
type ProfileUpdate struct {
	ProfileImage *string
	Bio          *string
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.ProfileImage == nil && u.Bio == nil
}

// Apply merges the update into the account value.
func (u ProfileUpdate) Apply(account Account) Account {
	if u.ProfileImage != nil {
		account.ProfileImage = *u.ProfileImage
	}
	if u.Bio != nil {
		account.Bio = *u.Bio
	}
	return account
}

// UsernameKey normalizes a username for case-insensitive uniqueness.
func UsernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func appendUnique(values []string, value string) ([]string, bool) {
	for _, existing := range values {
		if existing == value {
			return values, false
		}
	}
	return append(values, value), true
}

func insertUnique(values []string, value string, position int) ([]string, bool) {
	if slices.Contains(values, value) {
		return values, false
	}
	position = min(max(position, 0), len(values))
	return slices.Insert(slices.Clone(values), position, value), true
}

func removeValue(values []string, value string) ([]string, bool) {
	filtered := make([]string, 0, len(values))
	removed := false
	for _, existing := range values {
		if existing == value {
			removed = true
			continue
		}
		filtered = append(filtered, existing)
	}
	return filtered, removed
}
