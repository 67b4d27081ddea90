package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/expense-tracker/internal/logger"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// contentGenerator is the slice of the genai Models service the gateway uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGateway extracts statements with a Gemini model. The PDF is sent
// inline together with the prompt.
type GeminiGateway struct {
	models  contentGenerator
	model   string
	catalog CatalogSource
}

// NewGeminiGateway creates the genai client once and reuses it for every call.
// catalog may be nil, in which case the prompt carries no category list.
func NewGeminiGateway(ctx context.Context, model string, catalog CatalogSource) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiGateway: create genai client: %w", err)
	}
	return newGeminiGateway(client.Models, model, catalog), nil
}

func newGeminiGateway(models contentGenerator, model string, catalog CatalogSource) *GeminiGateway {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiGateway{models: models, model: model, catalog: catalog}
}

// Model returns the configured model name.
func (g *GeminiGateway) Model() string {
	return g.model
}

// Extract implements Gateway.
func (g *GeminiGateway) Extract(ctx context.Context, pdf []byte) (Result, error) {
	if len(pdf) == 0 {
		return Result{}, fmt.Errorf("Extract: empty document")
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: BuildPrompt(g.categoryTitles(ctx))},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     pdf,
					},
				},
			},
		},
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("Extract: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Result{}, ErrEmptyResponse
	}

	res := ParseResponse(text)
	if !res.Structured() {
		log := logger.FromContext(ctx)
		log.Warn().Str("model", g.model).Int("raw_len", len(text)).Msg("Model reply is not a statement object")
	}
	return res, nil
}

// categoryTitles loads the catalog for the prompt. A failing catalog only
// drops the category list.
func (g *GeminiGateway) categoryTitles(ctx context.Context) []string {
	if g.catalog == nil {
		return nil
	}
	cats, err := g.catalog.ListCategories(ctx)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Loading categories for prompt failed")
		return nil
	}
	titles := make([]string, 0, len(cats))
	for _, c := range cats {
		titles = append(titles, c.Title)
	}
	return titles
}

var _ Gateway = (*GeminiGateway)(nil)
