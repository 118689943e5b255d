// Package judge asks an OpenAI-compatible vision model whether two keyframes
// are near duplicates.
package judge

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"github.com/five82/keyframes/internal/config"
	"github.com/five82/keyframes/internal/dedupe"
	coreerrors "github.com/five82/keyframes/internal/errors"
	"github.com/five82/keyframes/internal/logging"
)

// DefaultTimeout bounds one judge request.
const DefaultTimeout = 60 * time.Second

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPClient replaces the default transport.
	HTTPClient *http.Client
}

// Client implements dedupe.Judge over the chat completions API.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

var _ dedupe.Judge = (*Client)(nil)

// New creates a client. Retries are disabled; the resolver falls back to
// hashing on the first failure.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, coreerrors.NewInvalidParameterError("similarity judge requires an API key (OPENAI_API_KEY)", nil)
	}
	if cfg.Model == "" {
		cfg.Model = config.DefaultJudgeModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Judge sends both images with prompt and parses the verdict.
func (c *Client) Judge(ctx context.Context, a, b []byte, prompt string) (dedupe.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL(a)}),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL(b)}),
			}),
		},
		Model:       c.model,
		Temperature: openai.Float(0),
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return dedupe.Verdict{}, coreerrors.NewExternalServiceError("chat completion request", err)
	}
	if len(resp.Choices) == 0 {
		return dedupe.Verdict{}, coreerrors.NewExternalServiceError("judge returned no choices", nil)
	}

	raw := resp.Choices[0].Message.Content
	v, err := ParseVerdict(raw)
	if err != nil {
		return dedupe.Verdict{}, err
	}
	logging.Debug("judge verdict",
		"similarity", v.Similarity,
		"duplicates", v.AreDuplicates,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return v, nil
}

// ParseVerdict extracts similarity_score and are_duplicates from a model
// reply. Markdown code fences and text around the JSON object are ignored.
func ParseVerdict(raw string) (dedupe.Verdict, error) {
	body := stripFences(raw)
	if !gjson.Valid(body) {
		if obj := firstObject(body); obj != "" && gjson.Valid(obj) {
			body = obj
		} else {
			return dedupe.Verdict{}, coreerrors.NewExternalServiceError(fmt.Sprintf("judge reply is not JSON: %q", truncate(raw, 120)), nil)
		}
	}

	score := gjson.Get(body, "similarity_score")
	if !score.Exists() {
		return dedupe.Verdict{}, coreerrors.NewExternalServiceError("judge reply has no similarity_score", nil)
	}
	return dedupe.Verdict{
		Similarity:    score.Float(),
		AreDuplicates: gjson.Get(body, "are_duplicates").Bool(),
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func dataURL(img []byte) string {
	mime := http.DetectContentType(img)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
