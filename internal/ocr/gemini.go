package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// contentGenerator is the part of genai.GenerativeModel the engine uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini implements Engine using a Google Gemini vision model
type Gemini struct {
	client *genai.Client
	model  contentGenerator
	config remoteConfig
}

// NewGemini creates a new Gemini engine
func NewGemini(apiKey string, modelName string, opts ...RemoteOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	g := newGemini(model, opts...)
	g.client = client
	return g, nil
}

func newGemini(model contentGenerator, opts ...RemoteOption) *Gemini {
	return &Gemini{
		model:  model,
		config: newRemoteConfig(30*time.Second, opts),
	}
}

// ExtractText transcribes the receipt image
func (g *Gemini) ExtractText(ctx context.Context, image []byte, filenameHint string) (*RawText, error) {
	if err := g.config.admit(ctx, "gemini", image); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.timeout)
	defer cancel()

	// genai.ImageData expects just the format suffix (e.g., "png")
	parts := []genai.Part{
		genai.ImageData(imageFormat(filenameHint), image),
		genai.Text(extractionPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return newRawText("gemini", g.config.language, stripFences(responseText.String())), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
