package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 1 << 20

// libreCodes maps codes whose spelling differs in LibreTranslate.
var libreCodes = map[string]string{
	"zh-cn": "zh",
	"zh-tw": "zt",
	"iw":    "he",
}

// LibreBackend calls a LibreTranslate-compatible HTTP API.
type LibreBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Backend = (*LibreBackend)(nil)

// NewLibreBackend creates a backend for baseURL. A nil client uses http.DefaultClient.
func NewLibreBackend(baseURL, apiKey string, client *http.Client) *LibreBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &LibreBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText   string `json:"translatedText"`
	DetectedLanguage *struct {
		Language   string  `json:"language"`
		Confidence float64 `json:"confidence"`
	} `json:"detectedLanguage,omitempty"`
	Error string `json:"error,omitempty"`
}

// Translate implements Backend.
func (b *LibreBackend) Translate(ctx context.Context, text, target, source string) (Result, error) {
	payload, err := json.Marshal(libreRequest{
		Q:      text,
		Source: toLibre(source),
		Target: toLibre(target),
		Format: "text",
		APIKey: b.apiKey,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call translator: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	var decoded libreResponse
	decodeErr := json.Unmarshal(body, &decoded)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && decoded.Error != "" {
			return Result{}, fmt.Errorf("translator returned %d: %s", resp.StatusCode, decoded.Error)
		}
		return Result{}, fmt.Errorf("translator returned %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("decode response: %w", decodeErr)
	}

	res := Result{Text: decoded.TranslatedText}
	if decoded.DetectedLanguage != nil {
		res.DetectedSource = fromLibre(decoded.DetectedLanguage.Language)
	}
	return res, nil
}

func toLibre(code string) string {
	if mapped, ok := libreCodes[code]; ok {
		return mapped
	}
	return code
}

func fromLibre(code string) string {
	switch code {
	case "zh":
		return "zh-cn"
	case "zt":
		return "zh-tw"
	default:
		return code
	}
}
