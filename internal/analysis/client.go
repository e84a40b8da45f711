package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
	"github.com/go-resty/resty/v2"
)

// TranscriptionResult is the typed transcription output of the inference
// service.
type TranscriptionResult struct {
	FullText   string
	Language   string
	Confidence float64
	Segments   domain.TranscriptSegments
}

// ContentResult is the typed content-analysis output of the inference service.
type ContentResult struct {
	Themes          domain.StringList
	Entities        domain.NamedEntities
	Emotions        domain.EmotionScores
	DominantEmotion string
	SentimentScore  float64
	Keywords        domain.StringList
	Categories      domain.StringList
}

// SummaryResult is the typed summarization output of the inference service.
type SummaryResult struct {
	Content      string
	BulletPoints domain.StringList
	KeyMoments   domain.KeyMoments
}

// Inference is the AI model boundary: a black-box service accepting a segment
// reference or transcript and returning typed results or a failure.
type Inference interface {
	Transcribe(ctx context.Context, mediaURL string) (*TranscriptionResult, error)
	AnalyzeContent(ctx context.Context, transcript string) (*ContentResult, error)
	Summarize(ctx context.Context, transcript string, summaryType domain.SummaryType) (*SummaryResult, error)
	Model() string
}

// InferenceClient calls an OpenAI-compatible inference endpoint for
// transcription, content analysis and summarization.
type InferenceClient struct {
	client  *resty.Client
	model   string
	baseURL string
}

// InferenceConfig holds configuration for the inference client.
type InferenceConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewInferenceClient creates a new inference client.
// Parameters:
//   - cfg: inference configuration including provider, model, and API key.
// Returns:
//   - *InferenceClient: initialized client wrapper.
func NewInferenceClient(cfg *InferenceConfig) *InferenceClient {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(90 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &InferenceClient{
		client:  client,
		model:   cfg.Model,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Model returns the model name being used.
func (c *InferenceClient) Model() string {
	return c.model
}

// Transcription API request/response structures
type transcribeRequest struct {
	Model          string `json:"model"`
	FileURL        string `json:"file_url"`
	ResponseFormat string `json:"response_format"`
}

type transcribeResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"segments"`
	Error *apiError `json:"error,omitempty"`
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Transcribe sends a segment reference to the speech-to-text endpoint.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - mediaURL: resolvable URL of the segment media file.
// Returns:
//   - *TranscriptionResult: typed transcription.
//   - error: non-nil if the API request fails.
func (c *InferenceClient) Transcribe(ctx context.Context, mediaURL string) (*TranscriptionResult, error) {
	req := transcribeRequest{
		Model:          c.model,
		FileURL:        mediaURL,
		ResponseFormat: "verbose_json",
	}

	var resp transcribeResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(c.baseURL + "/audio/transcriptions")
	if err != nil {
		return nil, fmt.Errorf("failed to call transcription API: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		if resp.Error != nil {
			return nil, fmt.Errorf("transcription API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("transcription API error: status %d", httpResp.StatusCode())
	}

	result := &TranscriptionResult{
		FullText: resp.Text,
		Language: resp.Language,
	}
	var confidenceSum float64
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, domain.TranscriptSegment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       seg.Text,
			Confidence: seg.Confidence,
		})
		confidenceSum += seg.Confidence
	}
	if len(resp.Segments) > 0 {
		result.Confidence = confidenceSum / float64(len(resp.Segments))
	}
	return result, nil
}

// contentPayload is the JSON schema the model is instructed to return for
// content analysis.
type contentPayload struct {
	Themes   []string `json:"themes"`
	Entities []struct {
		Text    string `json:"text"`
		Type    string `json:"type"`
		Flagged bool   `json:"flagged"`
	} `json:"entities"`
	Emotions []struct {
		Emotion string  `json:"emotion"`
		Score   float64 `json:"score"`
	} `json:"emotions"`
	DominantEmotion string   `json:"dominant_emotion"`
	SentimentScore  float64  `json:"sentiment_score"`
	Keywords        []string `json:"keywords"`
	Categories      []string `json:"categories"`
}

const contentSystemPrompt = `You analyze broadcast transcripts. Return a JSON object with keys:
themes (string array), entities (array of {text, type, flagged} where flagged
marks sensitive or watchlisted entities), emotions (array of {emotion, score}
with score in [0,1]), dominant_emotion (string), sentiment_score (float in
[-1,1]), keywords (string array), categories (string array). Return JSON only.`

// AnalyzeContent extracts themes, entities, emotions and sentiment from a
// transcript.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - transcript: transcript text to analyze.
// Returns:
//   - *ContentResult: typed content analysis.
//   - error: non-nil if the API request fails or the payload cannot be decoded.
func (c *InferenceClient) AnalyzeContent(ctx context.Context, transcript string) (*ContentResult, error) {
	content, err := c.chatJSON(ctx, contentSystemPrompt, transcript)
	if err != nil {
		return nil, err
	}

	var payload contentPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode content analysis payload: %w", err)
	}

	result := &ContentResult{
		Themes:          payload.Themes,
		DominantEmotion: payload.DominantEmotion,
		SentimentScore:  payload.SentimentScore,
		Keywords:        payload.Keywords,
		Categories:      payload.Categories,
	}
	for _, e := range payload.Entities {
		result.Entities = append(result.Entities, domain.NamedEntity{Text: e.Text, Type: e.Type, Flagged: e.Flagged})
	}
	for _, e := range payload.Emotions {
		result.Emotions = append(result.Emotions, domain.EmotionScore{Emotion: e.Emotion, Score: e.Score})
	}
	return result, nil
}

// summaryPayload is the JSON schema the model is instructed to return for
// summarization.
type summaryPayload struct {
	Content      string   `json:"content"`
	BulletPoints []string `json:"bullet_points"`
	KeyMoments   []struct {
		Timestamp   float64 `json:"timestamp"`
		Description string  `json:"description"`
	} `json:"key_moments"`
}

const summarySystemPrompt = `You summarize broadcast transcripts. Return a JSON object with keys:
content (the %s summary text), bullet_points (string array), key_moments
(array of {timestamp, description} with timestamp in seconds from segment
start). Return JSON only.`

// Summarize produces a summary of the given style from a transcript.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - transcript: transcript text to summarize.
//   - summaryType: summary style (brief, detailed, bullets, executive).
// Returns:
//   - *SummaryResult: typed summary.
//   - error: non-nil if the API request fails or the payload cannot be decoded.
func (c *InferenceClient) Summarize(ctx context.Context, transcript string, summaryType domain.SummaryType) (*SummaryResult, error) {
	content, err := c.chatJSON(ctx, fmt.Sprintf(summarySystemPrompt, summaryType), transcript)
	if err != nil {
		return nil, err
	}

	var payload summaryPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode summary payload: %w", err)
	}

	result := &SummaryResult{
		Content:      payload.Content,
		BulletPoints: payload.BulletPoints,
	}
	for _, km := range payload.KeyMoments {
		result.KeyMoments = append(result.KeyMoments, domain.KeyMoment{Timestamp: km.Timestamp, Description: km.Description})
	}
	return result, nil
}

// chatJSON runs one JSON-mode chat completion and returns the raw content.
func (c *InferenceClient) chatJSON(ctx context.Context, systemPrompt, userContent string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp chatResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to call inference API: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		if resp.Error != nil {
			return "", fmt.Errorf("inference API error: %s", resp.Error.Message)
		}
		return "", fmt.Errorf("inference API error: status %d", httpResp.StatusCode())
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("inference API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
