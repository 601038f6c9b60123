package stories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const validationPrefix = "Validation failed: "

type chaptersInput struct {
	Chapters []Chapter `validate:"dive"`
}

var fieldMessages = map[string]string{
	"Title.required":    "A scene must have a title",
	"Title.max":         "Scene title is too long",
	"Text.max":          "Choice text is too long",
	"TargetChapter.min": "Choice target chapter must not be negative",
	"TargetScene.min":   "Choice target scene must not be negative",
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validateChapters checks field rules and that every choice resolves to a scene of the
// same story.
func validateChapters(validate *validator.Validate, chapters []Chapter) error {
	if err := validate.Struct(chaptersInput{Chapters: chapters}); err != nil {
		return err
	}
	var dangling []string
	for chapterIndex, chapter := range chapters {
		for sceneIndex, scene := range chapter.Scenes {
			for choiceIndex, choice := range scene.Choices {
				if resolves(chapters, choice) {
					continue
				}
				dangling = append(dangling, fmt.Sprintf(
					"choice %d of chapter %d scene %d targets missing scene (%d, %d)",
					choiceIndex, chapterIndex, sceneIndex, choice.TargetChapter, choice.TargetScene))
			}
		}
	}
	if len(dangling) > 0 {
		return &danglingTargetsError{targets: dangling}
	}
	return nil
}

func resolves(chapters []Chapter, choice Choice) bool {
	if choice.TargetChapter < 0 || choice.TargetChapter >= len(chapters) {
		return false
	}
	scenes := chapters[choice.TargetChapter].Scenes
	return choice.TargetScene >= 0 && choice.TargetScene < len(scenes)
}

type danglingTargetsError struct {
	targets []string
}

func (e *danglingTargetsError) Error() string {
	return strings.Join(e.targets, ", ")
}

// validationMessage renders validator and target failures as one caller-facing sentence.
func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return validationPrefix + err.Error()
	}
	seen := make(map[string]bool, len(fieldErrors))
	messages := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		message, found := fieldMessages[fieldError.Field()+"."+fieldError.Tag()]
		if !found {
			message = fieldError.Field() + " is invalid"
		}
		if seen[message] {
			continue
		}
		seen[message] = true
		messages = append(messages, message)
	}
	return validationPrefix + strings.Join(messages, ", ")
}
