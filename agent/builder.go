package agent

import (
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/tbxark/draftagent/classify"
	"github.com/tbxark/draftagent/dialogue"
	"github.com/tbxark/draftagent/generate"
	"github.com/tbxark/draftagent/intent"
	"github.com/tbxark/draftagent/registry"
	"github.com/tbxark/draftagent/validate"
)

// NewToolBasedMachine builds a machine whose components call chatModel and fall back
// to their local counterparts when the model fails. lang is the language questions
// are phrased in.
func NewToolBasedMachine(reg *registry.Registry, chatModel model.ToolCallingChatModel, lang string, opts ...MachineOption) (*Machine, error) {
	classifier, err := classify.NewToolBasedClassifier(chatModel, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool-based classifier: %w", err)
	}
	validator, err := validate.NewToolBasedValidator(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool-based validator: %w", err)
	}
	generator, err := generate.NewToolBasedGenerator(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool-based generator: %w", err)
	}
	dialogueGen := dialogue.NewFailbackDialogueGenerator(
		dialogue.NewToolBasedDialogueGenerator(chatModel, dialogue.WithDialogueLang(lang)),
		dialogue.NewLocalDialogueGenerator(),
	)
	opts = append([]MachineOption{WithDialogueGenerator(dialogueGen)}, opts...)
	return NewMachine(
		reg,
		classify.NewFailbackClassifier(classifier, classify.NewLocalClassifier(reg)),
		validate.NewFailbackValidator(validator, validate.NewLocalValidator()),
		generate.NewFailbackGenerator(generator, generate.NewTemplateGenerator()),
		opts...,
	)
}

// NewToolBasedIntentRecognizer recognizes cancel intents with chatModel, falling back
// to keywords.
func NewToolBasedIntentRecognizer(chatModel model.ToolCallingChatModel) (intent.Recognizer, error) {
	recognizer, err := intent.NewToolBasedIntentRecognizer(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool-based intent recognizer: %w", err)
	}
	return intent.NewFailbackIntentRecognizer(recognizer, intent.NewLocalIntentRecognizer()), nil
}
