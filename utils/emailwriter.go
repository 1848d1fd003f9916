package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"leadforge/config"
	"leadforge/models"
)

// GeneratedEmail is the structured result of a personalization call.
type GeneratedEmail struct {
	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`
}

// EmailWriterInterface lets the generator service swap the live completion
// API for a fake in tests.
type EmailWriterInterface interface {
	GeneratePersonalizedEmail(ctx context.Context, lead *models.Lead, tmpl *models.Template) (*GeneratedEmail, error)
}

// TemplateWriterInterface covers freeform template generation from a prompt.
type TemplateWriterInterface interface {
	GenerateTemplateHTML(ctx context.Context, prompt string) (string, error)
}

// EmailWriter produces personalized outreach emails through a
// chat-completions API.
type EmailWriter struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
	Logger  *log.Logger
}

func NewEmailWriter(cfg config.CompletionConfig, logger *log.Logger) *EmailWriter {
	return &EmailWriter{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Client:  &http.Client{Timeout: 60 * time.Second},
		Logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

const personalizeSystemPrompt = `You are an outreach copywriter for a digital agency. ` +
	`You write short, specific cold emails to local businesses. ` +
	`Always answer with a JSON object containing exactly two keys: ` +
	`"subject" (plain text) and "html_content" (the filled-in HTML email).`

// GeneratePersonalizedEmail fills the template for one lead. The prompt
// embeds the lead's public attributes and the template skeleton; the model
// returns a structured subject/body pair.
func (ew *EmailWriter) GeneratePersonalizedEmail(ctx context.Context, lead *models.Lead, tmpl *models.Template) (*GeneratedEmail, error) {
	var sb strings.Builder
	sb.WriteString("Personalize the following HTML email template for this business.\n\n")
	sb.WriteString("Business:\n")
	fmt.Fprintf(&sb, "- Name: %s\n", lead.BusinessName)
	if lead.Category != "" {
		fmt.Fprintf(&sb, "- Category: %s\n", lead.Category)
	}
	if lead.Address != "" {
		fmt.Fprintf(&sb, "- Address: %s\n", lead.Address)
	}
	if lead.Website != "" {
		fmt.Fprintf(&sb, "- Website: %s\n", lead.Website)
	}
	if lead.Rating > 0 {
		fmt.Fprintf(&sb, "- Rating: %.1f (%d reviews)\n", lead.Rating, lead.ReviewCount)
	}
	sb.WriteString("\nTemplate")
	if tmpl.Subject != "" {
		fmt.Fprintf(&sb, " (base subject: %q)", tmpl.Subject)
	}
	sb.WriteString(":\n")
	sb.WriteString(tmpl.HTMLContent)
	sb.WriteString("\n\nReplace every placeholder with business-specific content and keep the HTML structure intact.")

	content, err := ew.complete(ctx, personalizeSystemPrompt, sb.String(), true)
	if err != nil {
		return nil, err
	}

	var email GeneratedEmail
	if err := json.Unmarshal([]byte(content), &email); err != nil {
		return nil, &UpstreamError{Service: "completion", Status: "bad_response", Message: "unparseable generation result: " + err.Error()}
	}
	if email.Subject == "" || email.HTMLContent == "" {
		return nil, &UpstreamError{Service: "completion", Status: "bad_response", Message: "generation result missing subject or html_content"}
	}

	return &email, nil
}

const templateSystemPrompt = `You are an expert email template designer. ` +
	`Produce a complete, self-contained HTML email template with inline CSS. ` +
	`Use {{business_name}}, {{category}} and {{address}} as personalization placeholders. ` +
	`Answer with the raw HTML only, no markdown fences and no commentary.`

// GenerateTemplateHTML produces a reusable template from a freeform prompt.
func (ew *EmailWriter) GenerateTemplateHTML(ctx context.Context, prompt string) (string, error) {
	content, err := ew.complete(ctx, templateSystemPrompt, prompt, false)
	if err != nil {
		return "", err
	}

	// Models occasionally wrap output in fences despite instructions.
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```html")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	return strings.TrimSpace(content), nil
}

func (ew *EmailWriter) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	reqBody := chatRequest{
		Model: ew.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
	}
	if jsonMode {
		reqBody.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ew.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ew.APIKey)

	httpResp, err := ew.Client.Do(req)
	if err != nil {
		return "", &UpstreamError{Service: "completion", Status: "network_error", Message: err.Error()}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", &UpstreamError{Service: "completion", Status: "bad_response", Message: err.Error()}
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &UpstreamError{Service: "completion", Status: "bad_response", Message: err.Error()}
	}

	if resp.Error != nil {
		return "", &UpstreamError{Service: "completion", Status: resp.Error.Type, Message: resp.Error.Message}
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Service: "completion", Status: httpResp.Status}
	}
	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Service: "completion", Status: "bad_response", Message: "no choices returned"}
	}

	return resp.Choices[0].Message.Content, nil
}
