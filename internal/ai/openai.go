package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const openAIModel = openai.ChatModelGPT4_1Mini

type OpenAIProvider struct {
	client  *openai.Client
	usage   Usage
	pricing RequestPricing
}

func NewOpenAIProvider(apiKey string, pricing RequestPricing, opts ...option.RequestOption) *OpenAIProvider {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAIProvider{
		client:  &client,
		pricing: pricing,
	}
}

func (p *OpenAIProvider) Name() string {
	return openAIModel
}

func (p *OpenAIProvider) GetUsage() *Usage {
	return &p.usage
}

func (p *OpenAIProvider) ResetUsage() {
	p.usage = Usage{}
}

func (p *OpenAIProvider) SuggestMarker(ctx context.Context, imageData []byte) (*MarkerSuggestion, error) {
	jpegData, err := toJPEG(imageData, previewSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(markerNamePrompt),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart("Name this marker."),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    imageURL,
							Detail: "low",
						}),
					},
				},
			},
		},
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    openAIModel,
			Messages: messages,
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
			MaxTokens: openai.Int(200),
		})
		if err != nil {
			return nil, fmt.Errorf("OpenAI API error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("no response from OpenAI")
		}

		addCost(&p.usage, int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens), p.pricing)

		content := resp.Choices[0].Message.Content
		lastResponse = content

		suggestion, err := parseSuggestion(content)
		if err != nil {
			lastError = err
			messages = append(messages,
				openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Content: openai.ChatCompletionAssistantMessageParamContentUnion{
							OfString: openai.String(content),
						},
					},
				},
				openai.UserMessage(retryMessage(err)),
			)
			continue
		}
		return suggestion, nil
	}

	return nil, fmt.Errorf("failed to parse suggestion JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}
