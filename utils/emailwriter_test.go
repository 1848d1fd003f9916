package utils_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadforge/config"
	"leadforge/models"
	"leadforge/utils"
)

func newWriterTestClient(t *testing.T, handler http.HandlerFunc) *utils.EmailWriter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return utils.NewEmailWriter(config.CompletionConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
	}, testLogger())
}

func completionReply(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": content}},
		},
	}
}

func TestGeneratePersonalizedEmail(t *testing.T) {
	var gotAuth string
	writer := newWriterTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["model"] != "test-model" {
			t.Errorf("model = %v", req["model"])
		}
		if req["response_format"] == nil {
			t.Error("personalization must request json output")
		}
		json.NewEncoder(w).Encode(completionReply(`{"subject":"Hi Gym One","html_content":"<p>Hello Gym One</p>"}`))
	})

	lead := &models.Lead{BusinessName: "Gym One", Category: "gym", Address: "Calle 1"}
	tmpl := &models.Template{Name: "default", HTMLContent: "<p>Hello {{business_name}}</p>"}

	email, err := writer.GeneratePersonalizedEmail(context.Background(), lead, tmpl)
	if err != nil {
		t.Fatalf("GeneratePersonalizedEmail: %v", err)
	}
	if email.Subject != "Hi Gym One" {
		t.Errorf("subject = %q", email.Subject)
	}
	if email.HTMLContent != "<p>Hello Gym One</p>" {
		t.Errorf("html = %q", email.HTMLContent)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization header = %q", gotAuth)
	}
}

func TestGeneratePersonalizedEmailRejectsIncompleteResult(t *testing.T) {
	writer := newWriterTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completionReply(`{"subject":"only a subject"}`))
	})

	_, err := writer.GeneratePersonalizedEmail(context.Background(),
		&models.Lead{BusinessName: "Gym One"}, &models.Template{HTMLContent: "<p>x</p>"})
	var upstream *utils.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestGeneratePersonalizedEmailUpstreamError(t *testing.T) {
	writer := newWriterTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "rate limited", "type": "rate_limit_error"},
		})
	})

	_, err := writer.GeneratePersonalizedEmail(context.Background(),
		&models.Lead{BusinessName: "Gym One"}, &models.Template{HTMLContent: "<p>x</p>"})
	var upstream *utils.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Message != "rate limited" {
		t.Errorf("upstream message = %q", upstream.Message)
	}
}

func TestGenerateTemplateHTMLStripsFences(t *testing.T) {
	writer := newWriterTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completionReply("```html\n<html><body>{{business_name}}</body></html>\n```"))
	})

	html, err := writer.GenerateTemplateHTML(context.Background(), "a welcome email for gyms")
	if err != nil {
		t.Fatalf("GenerateTemplateHTML: %v", err)
	}
	if html != "<html><body>{{business_name}}</body></html>" {
		t.Errorf("fences not stripped: %q", html)
	}
}
