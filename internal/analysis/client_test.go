package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eliudefrancisco14/gateway-matrix-api/internal/domain"
)

func testClient(t *testing.T, handler http.HandlerFunc) *InferenceClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return NewInferenceClient(&InferenceConfig{
		Model:   "test-model",
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
}

func TestInferenceClient_Transcribe(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"text":     "hello world",
			"language": "en",
			"segments": []map[string]interface{}{
				{"start": 0.0, "end": 1.5, "text": "hello", "confidence": 0.9},
				{"start": 1.5, "end": 3.0, "text": "world", "confidence": 0.7},
			},
		})
	})

	result, err := client.Transcribe(context.Background(), "https://media.test/seg.mp4")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if result.FullText != "hello world" || result.Language != "en" {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result.Segments))
	}
	if result.Confidence < 0.79 || result.Confidence > 0.81 {
		t.Errorf("expected averaged confidence 0.8, got %f", result.Confidence)
	}
}

func TestInferenceClient_AnalyzeContentDecodesPayload(t *testing.T) {
	payload := `{"themes":["politics"],"entities":[{"text":"John Doe","type":"person","flagged":true}],` +
		`"emotions":[{"emotion":"anger","score":0.8}],"dominant_emotion":"anger",` +
		`"sentiment_score":-0.85,"keywords":["election"],"categories":["news"]}`
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": payload}},
			},
		})
	})

	result, err := client.AnalyzeContent(context.Background(), "some transcript")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(result.Entities) != 1 || !result.Entities[0].Flagged {
		t.Errorf("unexpected entities: %+v", result.Entities)
	}
	if result.DominantEmotion != "anger" || result.SentimentScore != -0.85 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestInferenceClient_Summarize(t *testing.T) {
	payload := `{"content":"short summary","bullet_points":["a","b"],` +
		`"key_moments":[{"timestamp":12.5,"description":"goal scored"}]}`
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 {
			t.Errorf("expected system+user messages, got %d", len(req.Messages))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": payload}},
			},
		})
	})

	result, err := client.Summarize(context.Background(), "some transcript", domain.SummaryBrief)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if result.Content != "short summary" || len(result.BulletPoints) != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.KeyMoments) != 1 || result.KeyMoments[0].Timestamp != 12.5 {
		t.Errorf("unexpected key moments: %+v", result.KeyMoments)
	}
}

func TestInferenceClient_SurfacesAPIError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limited", "type": "rate_limit"},
		})
	})

	if _, err := client.AnalyzeContent(context.Background(), "text"); err == nil {
		t.Fatal("expected an error from a non-200 response")
	}
}

func TestPointID_Deterministic(t *testing.T) {
	if PointID("seg-1") != PointID("seg-1") {
		t.Error("expected stable point IDs for the same segment")
	}
	if PointID("seg-1") == PointID("seg-2") {
		t.Error("expected distinct point IDs for distinct segments")
	}
}
