package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// customTimeout caps a single custom-tool call so a slow endpoint cannot
// hold a chat turn open indefinitely.
const customTimeout = 15 * time.Second

// maxCustomResponse bounds how much of a custom endpoint's response is fed
// back to the model.
const maxCustomResponse = 16 * 1024

// CustomToolConfig is one stored per-agent HTTP tool definition.
type CustomToolConfig struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers"`
	Schema      json.RawMessage   `json:"schema"`
}

// DecodeCustomTools unmarshals an agent's stored tool configuration.
func DecodeCustomTools(data datatypes.JSON) ([]CustomToolConfig, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var configs []CustomToolConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("decode custom tools: %w", err)
	}
	for i, c := range configs {
		if c.Name == "" || c.URL == "" {
			return nil, fmt.Errorf("custom tool %d: name and url are required", i)
		}
	}
	return configs, nil
}

// CustomHTTPTool forwards the model's arguments to a tenant-configured HTTP
// endpoint and returns the response body.
type CustomHTTPTool struct {
	cfg    CustomToolConfig
	client *http.Client
}

// NewCustomHTTPTool creates a tool from stored configuration.
func NewCustomHTTPTool(cfg CustomToolConfig) *CustomHTTPTool {
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	return &CustomHTTPTool{
		cfg:    cfg,
		client: &http.Client{Timeout: customTimeout},
	}
}

func (t *CustomHTTPTool) Name() string        { return t.cfg.Name }
func (t *CustomHTTPTool) Description() string { return t.cfg.Description }

func (t *CustomHTTPTool) Schema() json.RawMessage {
	if len(t.cfg.Schema) > 0 {
		return t.cfg.Schema
	}
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *CustomHTTPTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var body io.Reader
	if t.cfg.Method != http.MethodGet && len(args) > 0 {
		body = strings.NewReader(string(args))
	}

	req, err := http.NewRequestWithContext(ctx, t.cfg.Method, t.cfg.URL, body)
	if err != nil {
		return "", fmt.Errorf("tools: custom %s: %w", t.cfg.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tools: custom %s: %w", t.cfg.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCustomResponse))
	if err != nil {
		return "", fmt.Errorf("tools: custom %s: read response: %w", t.cfg.Name, err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("tools: custom %s: endpoint returned %d", t.cfg.Name, resp.StatusCode)
	}
	return string(data), nil
}
