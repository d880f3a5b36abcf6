package sourcing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Generator produces raw sourcing suggestions.
type Generator interface {
	Generate(ctx context.Context, count int) ([]Raw, error)
}

// FallbackGenerator always returns the seed list.
type FallbackGenerator struct{}

func (FallbackGenerator) Generate(_ context.Context, count int) ([]Raw, error) {
	return Fallback(count), nil
}

// OpenAI asks the Responses API for suggestions.
type OpenAI struct {
	client *resty.Client
	model  string
}

func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond)
	return &OpenAI{client: c, model: model}
}

type responsesRequest struct {
	Model           string `json:"model"`
	Input           string `json:"input"`
	MaxOutputTokens int    `json:"max_output_tokens"`
}

type responsesResult struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

func (r responsesResult) text() string {
	if r.OutputText != "" {
		return r.OutputText
	}
	var b strings.Builder
	for _, o := range r.Output {
		for _, c := range o.Content {
			if c.Type == "output_text" {
				b.WriteString(c.Text)
			}
		}
	}
	return b.String()
}

func prompt(count int) string {
	return fmt.Sprintf("Generate %d resale opportunities for Twin Falls, Idaho, CLOTHES + SHOES only. "+
		"Return strict JSON array objects with keys: category,title,max_buy_price,suggested_price,"+
		"expected_margin_pct,search_keywords,condition_checklist,notes. "+
		"Enforce expected_margin_pct >= 40 and suggested_price >= max_buy_price * 1.6.", count)
}

func (o *OpenAI) Generate(ctx context.Context, count int) ([]Raw, error) {
	var out responsesResult
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(responsesRequest{Model: o.model, Input: prompt(count), MaxOutputTokens: 1200}).
		SetResult(&out).
		Post("/responses")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("openai responses: status %d", resp.StatusCode())
	}

	text := strings.TrimSpace(out.text())
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	var raws []Raw
	if err := json.Unmarshal([]byte(text), &raws); err != nil {
		return nil, fmt.Errorf("openai responses: decode: %w", err)
	}
	if len(raws) == 0 {
		return nil, errors.New("openai responses: empty result")
	}
	if len(raws) > count {
		raws = raws[:count]
	}
	return raws, nil
}
