package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"queryforge/internal/filterschema"
	"queryforge/internal/model"
)

// geminiPart/geminiContent/geminiRequestBody/geminiResponse mirror the
// teacher's Gemini wire types in internal/service/llm_service.go, trimmed
// to the single-turn shape this client needs (no conversation history —
// every orchestrator call is a fresh, independent analysis, spec §4.8).
type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequestBody struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

// GeminiClient extracts a filter IR document from natural language via the
// Gemini generateContent endpoint.
type GeminiClient struct {
	apiKey     string
	modelID    string
	httpClient *http.Client
}

// NewGeminiClient builds a client bound to a configured model and API key
// (config QUERYBUILDER_LLM_MODEL / QUERYBUILDER_LLM_API_KEY).
func NewGeminiClient(apiKey, modelID string) *GeminiClient {
	if modelID == "" {
		modelID = "gemini-1.5-flash-latest"
	}
	return &GeminiClient{
		apiKey:  apiKey,
		modelID: modelID,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *GeminiClient) ExtractFilter(ctx context.Context, naturalLanguage string, descriptor filterschema.PromptDescriptor) ([]byte, error) {
	log.Info().Str("natural_language", naturalLanguage).Msg("llm client: extracting filter")

	prompt, err := buildSystemPrompt(naturalLanguage, descriptor)
	if err != nil {
		return nil, &model.LLMError{Cause: err}
	}

	reqBody := geminiRequestBody{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &model.LLMError{Cause: fmt.Errorf("marshal gemini request: %w", err)}
	}

	respBytes, err := c.call(ctx, bodyBytes)
	if err != nil {
		return nil, &model.LLMError{Cause: err}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		log.Error().Err(err).Bytes("response_body", respBytes).Msg("failed to unmarshal gemini response")
		return nil, &model.LLMError{Cause: fmt.Errorf("parse gemini response: %w", err)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, &model.LLMError{Cause: fmt.Errorf("gemini response had no candidates")}
	}

	generated := parsed.Candidates[0].Content.Parts[0].Text
	cleaned := extractJSONObject(generated)
	if cleaned == "" {
		log.Error().Str("raw_text", generated).Msg("llm client: no valid JSON found in gemini response")
		return nil, &model.LLMError{Cause: fmt.Errorf("llm did not return valid JSON")}
	}
	return []byte(cleaned), nil
}

func (c *GeminiClient) call(ctx context.Context, body []byte) ([]byte, error) {
	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", c.modelID, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini API error: status %d: %s", resp.StatusCode, string(respBytes))
	}
	return respBytes, nil
}

// extractJSONObject takes the span from the first "{" to the last "}" in a
// free-text LLM response and returns it only if it parses as a JSON object,
// matching the teacher's cleanLLMJsonOutput.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(raw, "}")
	if end == -1 || end < start {
		return ""
	}
	candidate := raw[start : end+1]
	var js map[string]any
	if json.Unmarshal([]byte(candidate), &js) != nil {
		return ""
	}
	return candidate
}

// buildSystemPrompt renders the schema descriptor and operator rules into
// the single-turn prompt template, grounded on the Python source's
// query/prompt_generator.py PromptGenerator.generate_system_prompt.
func buildSystemPrompt(naturalLanguage string, descriptor filterschema.PromptDescriptor) (string, error) {
	schemaJSON, err := json.MarshalIndent(descriptor.Fields, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are an expert assistant that converts a user's natural-language question into a structured JSON filter. Your output MUST strictly follow the JSON schema below and contain nothing else.

### Available Data Schema
Fields are specified as dotted paths, each with its normalized type and legal operators.

%s

### Output Shape
A single JSON object with one key, "filters", holding a list of slices. Each slice may have:
- "conditions": a list of {"field","operator","value"}.
- "sort": a list of {"field","order"} ("asc"|"desc").
- "limit": a max result count.
- "group_by": a list of fields.
- "aggregations": a list of {"field","kind","having_operator"?,"having_value"?}; kind in sum, avg, count, min, max.
- "interval": day, week, month, or year — only legal with a date field in group_by.

### Rules
- Only use field names that appear in the schema above; never invent one.
- aggregations and interval only apply alongside group_by.
- "Compare A with B" means two slices, one per side.
- Express dates as ISO-8601 strings (YYYY-MM-DD).

User query: %q

JSON Output:`, string(schemaJSON), naturalLanguage), nil
}
