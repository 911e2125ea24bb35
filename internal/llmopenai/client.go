// Package llmopenai is the production llm.Provider adapter over
// github.com/openai/openai-go/v3: functional-option construction, the
// Responses API, retrying with structured logging, and
// github.com/xeipuuv/gojsonschema validation rather than trusting the
// model's JSON blindly.
package llmopenai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
	"github.com/xeipuuv/gojsonschema"

	"github.com/schoolsim/campus-engine/internal/llm"
	"github.com/schoolsim/campus-engine/internal/simerrors"
)

type ClientOpt func(c *Client)

func WithAPIKey(key string) ClientOpt      { return func(c *Client) { c.apiKey = key } }
func WithBaseURL(url string) ClientOpt     { return func(c *Client) { c.url = url } }
func WithLogger(l *slog.Logger) ClientOpt  { return func(c *Client) { c.logger = l } }
func WithTextModel(model string) ClientOpt { return func(c *Client) { c.textModel = model } }
func WithEmbeddingModel(model string) ClientOpt {
	return func(c *Client) { c.embeddingModel = model }
}
func WithMaxRetries(n int) ClientOpt { return func(c *Client) { c.maxRetries = n } }

// Client is the concrete llm.Provider.
type Client struct {
	client openai.Client
	logger *slog.Logger

	apiKey string
	url    string

	textModel      string
	embeddingModel string
	maxRetries     int

	callSeq atomic.Uint64
}

func New(opts ...ClientOpt) *Client {
	c := &Client{
		textModel:      "gpt-5-nano",
		embeddingModel: "text-embedding-ada-002",
		maxRetries:     5,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	openaiOpts := []option.RequestOption{option.WithAPIKey(c.apiKey)}
	if c.url != "" {
		openaiOpts = append(openaiOpts, option.WithBaseURL(c.url))
	}
	c.client = openai.NewClient(openaiOpts...)
	return c
}

func (c *Client) newCallID() string {
	return fmt.Sprintf("llm-%d", c.callSeq.Add(1))
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

func promptText(req llm.CompletionRequest) string {
	var b strings.Builder
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	return b.String()
}

// Complete issues a free-form completion with no schema constraint.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	callID := c.newCallID()
	text := promptText(req)
	log := c.logger.With(slog.String("llm_id", callID), slog.String("type", "llm_call"))

	log.Info("llm_call_start", slog.String("phase", "start"), slog.String("prompt_hash", hashString(text)))

	start := time.Now()
	var resp *responses.Response
	err := llm.Retry(ctx, c.maxRetries, func() error {
		var callErr error
		resp, callErr = c.client.Responses.New(ctx, responses.ResponseNewParams{
			Model: c.textModel,
			Input: responses.ResponseNewParamsInputUnion{OfString: param.NewOpt(text)},
		})
		if callErr != nil {
			log.Warn("llm_retry", slog.Any("err", callErr))
			return classifyAPIError(callErr)
		}
		return nil
	})
	if err != nil {
		log.Error("llm_call_fail", slog.String("phase", "fail"), slog.Duration("latency", time.Since(start)), slog.Any("err", err))
		return llm.CompletionResponse{}, err
	}

	log.Info("llm_call_ok", slog.String("phase", "ok"), slog.Duration("latency", time.Since(start)))
	return llm.CompletionResponse{
		Content: resp.OutputText(),
		Usage: &llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// CompleteStructured requests a JSON-schema-constrained response, extracts
// the JSON payload (fenced or bare), validates it against schema, and
// returns the validated raw bytes for the caller to unmarshal. On extraction
// or validation failure it retries up to maxRetries before surfacing a
// typed LlmError.
func (c *Client) CompleteStructured(ctx context.Context, req llm.CompletionRequest, schema llm.Schema) (json.RawMessage, error) {
	callID := c.newCallID()
	text := promptText(req)
	log := c.logger.With(slog.String("llm_id", callID), slog.String("type", "llm_call"), slog.String("schema", schema.Name))

	log.Info("llm_call_start", slog.String("phase", "start"), slog.String("prompt_hash", hashString(text)))

	schemaLoader := gojsonschema.NewGoLoader(schema.Schema)

	var validated json.RawMessage
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
			Model: c.textModel,
			Input: responses.ResponseNewParamsInputUnion{OfString: param.NewOpt(text)},
			Text: responses.ResponseTextConfigParam{
				Format: responses.ResponseFormatTextConfigParamOfJSONSchema(schema.Name, schema.Schema),
			},
		})
		if err != nil {
			lastErr = err
			log.Warn("llm_retry", slog.Int("attempt", attempt+1), slog.String("reason", "api"), slog.Any("err", err))
			continue
		}

		extracted := llm.ExtractJSON(resp.OutputText())
		if extracted == "" {
			lastErr = simerrors.NewLlmError(simerrors.LlmParse, "no JSON found in response", nil)
			log.Warn("llm_retry", slog.Int("attempt", attempt+1), slog.String("reason", "no_json"))
			continue
		}

		result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(extracted))
		if err != nil {
			lastErr = simerrors.NewLlmError(simerrors.LlmSchemaValidation, "schema validation error", err)
			log.Warn("llm_retry", slog.Int("attempt", attempt+1), slog.String("reason", "schema_error"), slog.Any("err", err))
			continue
		}
		if !result.Valid() {
			lastErr = simerrors.NewLlmError(simerrors.LlmSchemaValidation, describeValidationErrors(result.Errors()), nil)
			log.Warn("llm_retry", slog.Int("attempt", attempt+1), slog.String("reason", "schema_invalid"), slog.String("detail", lastErr.Error()))
			continue
		}

		validated = json.RawMessage(extracted)
		lastErr = nil
		break
	}

	if lastErr != nil {
		log.Error("llm_call_fail", slog.Duration("latency", time.Since(start)), slog.Any("err", lastErr))
		return nil, lastErr
	}

	log.Info("llm_call_ok", slog.Duration("latency", time.Since(start)))
	return validated, nil
}

func describeValidationErrors(errs []gojsonschema.ResultError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}

// Embed makes one embeddings-endpoint call per input text, in order; an
// empty input yields an empty output with no API call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		cleaned := strings.ReplaceAll(t, "\n", " ")
		resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input:          openai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(cleaned)},
			Model:          c.embeddingModel,
			EncodingFormat: "float",
		})
		if err != nil {
			return nil, simerrors.NewLlmError(simerrors.LlmEmbedding, "embedding request failed", err)
		}
		if len(resp.Data) == 0 {
			return nil, simerrors.NewLlmError(simerrors.LlmEmbedding, "empty embedding response", nil)
		}
		vec := make([]float32, len(resp.Data[0].Embedding))
		for j, v := range resp.Data[0].Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

// classifyAPIError maps a vendor-SDK failure onto the typed taxonomy so
// llm.Retry can pace it: deadline hits become Timeout, 429s become
// RateLimited, anything else is a plain API error and surfaces immediately.
func classifyAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return simerrors.NewLlmError(simerrors.LlmTimeout, "request timed out", err)
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests {
		return simerrors.NewRateLimitedError(1000)
	}
	return simerrors.NewLlmError(simerrors.LlmAPI, "request failed", err)
}
