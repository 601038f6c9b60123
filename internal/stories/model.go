// Package stories stores branching narratives and the engagement state attached to them.
package stories

import (
	"errors"
	"slices"
	"strings"
	"time"
)

const (
	DefaultTitle            = "Once Upon a Time...."
	DefaultSynopsis         = "Our story begins in ...."
	DefaultSceneTitle       = "Scene 1"
	DefaultSceneImage       = "_defaultScene.png"
	DefaultSceneDescription = "Please enter a description...."
	DefaultScenePrompt      = "Please enter a prompt...."
	DefaultChoiceText       = "Choice"
)

// ErrNotFound is returned by stores when no story matches.
var ErrNotFound = errors.New("stories: story not found")

// Choice points at a scene of the same story by position.
type Choice struct {
	Text          string `json:"text" bson:"text" validate:"max=200"`
	TargetChapter int    `json:"targetChapter" bson:"target_chapter" validate:"min=0"`
	TargetScene   int    `json:"targetScene" bson:"target_scene" validate:"min=0"`
}

// Scene is one node of the narrative graph.
type Scene struct {
	Title       string   `json:"title" bson:"title" validate:"required,max=200"`
	Image       string   `json:"image" bson:"image"`
	Description string   `json:"description" bson:"description"`
	Prompt      string   `json:"prompt" bson:"prompt"`
	Choices     []Choice `json:"choices" bson:"choices" validate:"dive"`
}

// Chapter groups scenes.
type Chapter struct {
	Scenes []Scene `json:"scenes" bson:"scenes" validate:"dive"`
}

// Story is a branching narrative owned by exactly one account.
type Story struct {
	ID        string    `gorm:"column:id;primaryKey;size:64;not null" json:"id" bson:"_id"`
	Title     string    `gorm:"column:title;not null" json:"title" bson:"title"`
	Synopsis  string    `gorm:"column:synopsis;not null" json:"synopsis" bson:"synopsis"`
	Author    string    `gorm:"column:author;size:64;not null;index:idx_stories_author" json:"author" bson:"author"`
	Likes     []string  `gorm:"column:likes;type:text;serializer:json" json:"likes" bson:"likes"`
	Publish   bool      `gorm:"column:publish;not null;default:false" json:"publish" bson:"publish"`
	Chapters  []Chapter `gorm:"column:chapters;type:text;serializer:json" json:"chapters" bson:"chapters"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt" bson:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Story) TableName() string {
	return "stories"
}

// NewStory builds an unpublished story with default title and synopsis and no chapters.
func NewStory(id string, author string) Story {
	return Story{
		ID:       id,
		Title:    DefaultTitle,
		Synopsis: DefaultSynopsis,
		Author:   author,
		Likes:    []string{},
		Chapters: []Chapter{},
	}
}

// withSlices replaces nil collections so the JSON form always carries arrays.
func (s Story) withSlices() Story {
	if s.Likes == nil {
		s.Likes = []string{}
	}
	if s.Chapters == nil {
		s.Chapters = []Chapter{}
	}
	return s
}

// Update is a partial story update. Author and likes are not updatable through it.
type Update struct {
	Title    *string
	Synopsis *string
	Publish  *bool
	Chapters *[]Chapter
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.Title == nil && u.Synopsis == nil && u.Publish == nil && u.Chapters == nil
}

// Apply merges the update into the story value.
func (u Update) Apply(story Story) Story {
	if u.Title != nil {
		story.Title = *u.Title
	}
	if u.Synopsis != nil {
		story.Synopsis = *u.Synopsis
	}
	if u.Publish != nil {
		story.Publish = *u.Publish
	}
	if u.Chapters != nil {
		story.Chapters = slices.Clone(*u.Chapters)
		if story.Chapters == nil {
			story.Chapters = []Chapter{}
		}
	}
	return story
}

// normalized trims free text and fills scene and choice defaults.
func (u Update) normalized() Update {
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		u.Title = &title
	}
	if u.Synopsis != nil {
		synopsis := strings.TrimSpace(*u.Synopsis)
		u.Synopsis = &synopsis
	}
	if u.Chapters != nil {
		chapters := make([]Chapter, len(*u.Chapters))
		for chapterIndex, chapter := range *u.Chapters {
			scenes := make([]Scene, len(chapter.Scenes))
			for sceneIndex, scene := range chapter.Scenes {
				scenes[sceneIndex] = normalizeScene(scene)
			}
			chapters[chapterIndex] = Chapter{Scenes: scenes}
		}
		u.Chapters = &chapters
	}
	return u
}

func normalizeScene(scene Scene) Scene {
	scene.Title = strings.TrimSpace(scene.Title)
	if scene.Image == "" {
		scene.Image = DefaultSceneImage
	}
	if scene.Description == "" {
		scene.Description = DefaultSceneDescription
	}
	if scene.Prompt == "" {
		scene.Prompt = DefaultScenePrompt
	}
	choices := make([]Choice, len(scene.Choices))
	for index, choice := range scene.Choices {
		if strings.TrimSpace(choice.Text) == "" {
			choice.Text = DefaultChoiceText
		}
		choices[index] = choice
	}
	scene.Choices = choices
	return scene
}
