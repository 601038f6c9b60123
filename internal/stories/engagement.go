package stories

import "slices"

// AddLike returns a copy of the story liked by accountID. Liking twice is a no-op.
func AddLike(story Story, accountID string) Story {
	if IsLikedBy(story, accountID) {
		return story
	}
	story.Likes = append(slices.Clone(story.Likes), accountID)
	return story
}

// RemoveLike returns a copy of the story without accountID's like.
func RemoveLike(story Story, accountID string) Story {
	if !IsLikedBy(story, accountID) {
		return story
	}
	likes := make([]string, 0, len(story.Likes))
	for _, id := range story.Likes {
		if id != accountID {
			likes = append(likes, id)
		}
	}
	story.Likes = likes
	return story
}

// IsLikedBy reports whether accountID is in the story's likes.
func IsLikedBy(story Story, accountID string) bool {
	return slices.Contains(story.Likes, accountID)
}

// IsPublished reports the publish flag.
func IsPublished(story Story) bool {
	return story.Publish
}
