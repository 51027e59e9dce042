package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/skiniq/internal/domain/skin"
	"github.com/bryanwahyu/skiniq/internal/infra/ai/prompt"
	"github.com/bryanwahyu/skiniq/internal/infra/model"
)

const maxTokens = 256

// Client scores preprocessed face photos with a vision-capable chat model.
type Client struct {
	*openai.Client
	Model string
}

// NewClientWithConfig allows a custom base URL (proxies, tests).
func NewClientWithConfig(cfg openai.ClientConfig, modelName string) *Client {
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: modelName}
}

// Loader returns the client as a registry image loader.
func (c *Client) Loader() model.ImageLoader {
	return func(ctx context.Context) (model.ScoreModel, error) {
		return c, nil
	}
}

// Predict implements model.ScoreModel. Each batch item is sent as a PNG data URL.
func (c *Client) Predict(ctx context.Context, batch model.Tensor) ([][]float32, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	labels := make([]string, len(domain.SkinTypes))
	for i, t := range domain.SkinTypes {
		labels[i] = string(t)
	}

	out := make([][]float32, batch.Shape[0])
	for n := range out {
		url, err := dataURL(batch, n)
		if err != nil {
			return nil, err
		}
		scores, err := c.score(ctx, url, labels)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
		}
		out[n] = scores
	}
	return out, nil
}

func (c *Client) score(ctx context.Context, imageURL string, labels []string) ([]float32, error) {
	name := c.Model
	if name == "" {
		name = openai.GPT4oMini
	}
	req := openai.ChatCompletionRequest{
		Model:       name,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt(labels)},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt.GetUserPrompt()},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    imageURL,
						Detail: openai.ImageURLDetailLow,
					}},
				},
			},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(name, "o1") || strings.HasPrefix(name, "o3") || strings.HasPrefix(name, "o4") || strings.HasPrefix(name, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion")
	}
	return prompt.ParseScores(resp.Choices[0].Message.Content, labels)
}

// dataURL renders batch item n (values in [0,1]) back to a PNG data URL.
func dataURL(t model.Tensor, n int) (string, error) {
	h, w := t.Shape[1], t.Shape[2]
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: channel(t.At(n, y, x, 0)),
				G: channel(t.At(n, y, x, 1)),
				B: channel(t.At(n, y, x, 2)),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func channel(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
