package judge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cartcompass/backend/internal/domain"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	systemPrompt   = "You are a strict product-page classifier. Answer with exactly YES or NO."
	textPrompt     = "Does this page text indicate the product is unavailable, removed, out of stock, or that the page is an error or not-found page? Page text:\n\n%s"
	visionPrompt   = "Does this screenshot show an error page, a not-found page, or a product listed as unavailable or out of stock? Answer YES or NO."
)

// OpenAIJudge asks a chat-completions model a yes/no question about a page.
// One instance serves one modality: text judges get a snippet, vision judges
// get a PNG screenshot.
type OpenAIJudge struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	vision     bool
}

// NewTextJudge builds a judge that classifies page text.
func NewTextJudge(apiKey, baseURL, model string, timeout time.Duration) *OpenAIJudge {
	return newJudge(apiKey, baseURL, model, timeout, false)
}

// NewVisionJudge builds a judge that classifies screenshots.
func NewVisionJudge(apiKey, baseURL, model string, timeout time.Duration) *OpenAIJudge {
	return newJudge(apiKey, baseURL, model, timeout, true)
}

func newJudge(apiKey, baseURL, model string, timeout time.Duration, vision bool) *OpenAIJudge {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIJudge{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		vision:     vision,
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Judge sends the evidence to the model and maps its reply onto YES/NO.
// Any transport or parse failure is ErrJudgeUnavailable so the validator
// can skip the stage instead of failing the pipeline.
func (j *OpenAIJudge) Judge(ctx context.Context, input domain.JudgeInput) (domain.JudgeAnswer, error) {
	userMessage, err := j.userMessage(input)
	if err != nil {
		return "", err
	}

	reqBody := chatRequest{
		Model: j.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			userMessage,
		},
		MaxTokens: 5,
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode judge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", j.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("create judge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrJudgeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrJudgeUnavailable, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decode: %v", domain.ErrJudgeUnavailable, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", domain.ErrJudgeUnavailable)
	}

	return parseAnswer(chatResp.Choices[0].Message.Content), nil
}

func (j *OpenAIJudge) userMessage(input domain.JudgeInput) (chatMessage, error) {
	if j.vision {
		if len(input.Image) == 0 {
			return chatMessage{}, fmt.Errorf("%w: vision judge needs an image", domain.ErrJudgeUnavailable)
		}
		encoded := base64.StdEncoding.EncodeToString(input.Image)
		return chatMessage{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: visionPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: "data:image/png;base64," + encoded}},
			},
		}, nil
	}

	if input.Text == "" {
		return chatMessage{}, fmt.Errorf("%w: text judge needs a snippet", domain.ErrJudgeUnavailable)
	}
	return chatMessage{
		Role:    "user",
		Content: fmt.Sprintf(textPrompt, input.Text),
	}, nil
}

// parseAnswer treats anything that does not start with YES as NO. The
// validator only acts on a confident YES.
func parseAnswer(content string) domain.JudgeAnswer {
	normalized := strings.ToUpper(strings.TrimSpace(content))
	if strings.HasPrefix(normalized, "YES") {
		return domain.JudgeYes
	}
	return domain.JudgeNo
}
