package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiService estimates nutrition from photos or descriptions and writes the
// daily coaching tips. It implements Analyzer and Advisor.
type GeminiService struct {
	client  *genai.Client
	model   string
	cache   *AICache
	metrics *Metrics
	log     logrus.FieldLogger
}

// NewGeminiService uses the Gemini API when apiKey is set and Vertex AI with
// application default credentials otherwise.
func NewGeminiService(ctx context.Context, apiKey, model, gcpProject string, cache *AICache, metrics *Metrics, log logrus.FieldLogger) (*GeminiService, error) {
	var cc *genai.ClientConfig
	if apiKey != "" {
		cc = &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: apiKey}
		log.Info("Using Gemini API with API key")
	} else {
		cc = &genai.ClientConfig{Backend: genai.BackendVertexAI, Project: gcpProject, Location: "us-central1"}
		log.WithField("project", gcpProject).Info("Using Vertex AI with Application Default Credentials")
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiService{
		client:  client,
		model:   strings.TrimPrefix(model, "models/"),
		cache:   cache,
		metrics: metrics,
		log:     log,
	}, nil
}

var estimateSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"items": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":      {Type: genai.TypeString, Description: "Food or drink name"},
					"portion":   {Type: genai.TypeString, Description: "Estimated portion, e.g. 1 plate (250 g)"},
					"calories":  {Type: genai.TypeNumber, Description: "kcal for the portion"},
					"protein_g": {Type: genai.TypeNumber},
					"carbs_g":   {Type: genai.TypeNumber},
					"fat_g":     {Type: genai.TypeNumber},
					"sugar_g":   {Type: genai.TypeNumber},
					"sodium_mg": {Type: genai.TypeNumber},
				},
				Required: []string{"name", "portion", "calories", "protein_g", "carbs_g", "fat_g"},
			},
		},
		"health_score": {Type: genai.TypeInteger, Description: "1 (unhealthy) to 10 (very healthy)"},
		"notes":        {Type: genai.TypeString, Description: "One or two sentences of advice"},
	},
	Required: []string{"items", "health_score"},
}

func buildAnalysisPrompt(in AnalysisInput) string {
	var b strings.Builder
	b.WriteString("You are a nutritionist familiar with Indonesian and international food.\n")
	if len(in.Image) > 0 {
		b.WriteString("Identify every food and drink item in the photo and estimate its nutrition for the visible portion.\n")
	} else {
		b.WriteString("Estimate the nutrition of every food and drink item in the description below.\n")
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		fmt.Fprintf(&b, "Description: %q\n", d)
	}
	if len(in.Hints) > 0 {
		fmt.Fprintf(&b, "Image labels detected beforehand (may be wrong): %s\n", strings.Join(in.Hints, ", "))
	}
	b.WriteString("If nothing edible is present return an empty items list.\n")
	return b.String()
}

func (g *GeminiService) Analyze(ctx context.Context, in AnalysisInput) (*NutritionEstimate, error) {
	key := analysisKey(g.model, in)
	if g.cache != nil {
		if est, ok := g.cache.Get(key); ok {
			g.metrics.AnalyzerCache.WithLabelValues("hit").Inc()
			return est, nil
		}
		g.metrics.AnalyzerCache.WithLabelValues("miss").Inc()
	}

	parts := []*genai.Part{{Text: buildAnalysisPrompt(in)}}
	if len(in.Image) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: in.MIMEType, Data: in.Image}})
	}
	temperature := float32(0.2)
	text, err := g.generate(ctx, "analyze", parts, &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   estimateSchema,
	})
	if err != nil {
		return nil, err
	}

	est, err := parseEstimate(text)
	if errors.Is(err, ErrNoFoodDetected) {
		return nil, err
	}
	if err != nil {
		g.log.WithError(err).WithField("response_text", text).Warn("unparseable analyzer response")
		return nil, fmt.Errorf("%w: %v", ErrAnalyzerUnavailable, err)
	}
	if g.cache != nil {
		g.cache.Set(key, est)
	}
	return est, nil
}

func (g *GeminiService) Advise(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0.7)
	return g.generate(ctx, "advise", []*genai.Part{{Text: prompt}}, &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 600,
	})
}

func (g *GeminiService) generate(ctx context.Context, op string, parts []*genai.Part, cfg *genai.GenerateContentConfig) (string, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	var resp *genai.GenerateContentResponse
	err := withRetry(ctx, g.log, "gemini."+op, func() error {
		var genErr error
		resp, genErr = g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
		return genErr
	})
	if err != nil {
		g.log.WithError(err).WithField("op", op).Error("Gemini API call failed")
		return "", fmt.Errorf("%w: %v", ErrAnalyzerUnavailable, err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrAnalyzerUnavailable)
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

// parseEstimate decodes the model JSON, tolerating a markdown code fence, and
// clamps values the schema cannot constrain.
func parseEstimate(text string) (*NutritionEstimate, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var est NutritionEstimate
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &est); err != nil {
		return nil, fmt.Errorf("decode estimate: %w", err)
	}

	items := est.Items[:0]
	for _, it := range est.Items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			continue
		}
		it.Calories = nonNegative(it.Calories)
		it.ProteinG = nonNegative(it.ProteinG)
		it.CarbsG = nonNegative(it.CarbsG)
		it.FatG = nonNegative(it.FatG)
		it.SugarG = nonNegative(it.SugarG)
		it.SodiumMg = nonNegative(it.SodiumMg)
		items = append(items, it)
	}
	est.Items = items
	if len(est.Items) == 0 {
		return nil, ErrNoFoodDetected
	}
	switch {
	case est.HealthScore > 10:
		est.HealthScore = 10
	case est.HealthScore < 0:
		est.HealthScore = 0
	}
	return &est, nil
}

func nonNegative(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
