// Package gemini implements nlsql.Generator with Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"fiscaletl/internal/config"
	"fiscaletl/internal/nlsql"
)

// DefaultModel is used when the configuration names none.
const DefaultModel = "gemini-1.5-flash"

// ErrEmptyResponse is returned when the model answered without text.
var ErrEmptyResponse = errors.New("gemini: empty response")

// generateFunc sends one system instruction and user prompt.
type generateFunc func(ctx context.Context, system, user string) (*genai.GenerateContentResponse, error)

// Generator asks Gemini for SQL. Build it with New.
type Generator struct {
	APIKey      string
	Model       string
	BaseURL     string
	Dialect     string
	Temperature float32
	MaxAttempts int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration

	generate generateFunc
}

// New builds a generator from the LLM configuration. dialect names the SQL
// flavor in the instruction (e.g. "SQLite", "PostgreSQL").
func New(c config.LLM, dialect string) (*Generator, error) {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	g := &Generator{
		APIKey:      key,
		Model:       strings.TrimSpace(c.Model),
		BaseURL:     strings.TrimSpace(c.BaseURL),
		Dialect:     dialect,
		Temperature: c.Temperature,
		MaxAttempts: c.MaxAttempts,
		Backoff:     300 * time.Millisecond,
	}
	if g.Model == "" {
		g.Model = DefaultModel
	}
	if g.MaxAttempts <= 0 {
		g.MaxAttempts = 3
	}
	g.generate = g.call
	return g, nil
}

// DialectFor maps a storage kind to the dialect name used in prompts.
func DialectFor(kind string) string {
	switch strings.ToLower(kind) {
	case "postgres":
		return "PostgreSQL"
	case "mssql":
		return "Microsoft SQL Server (T-SQL, use TOP instead of LIMIT)"
	case "duckdb":
		return "DuckDB"
	default:
		return "SQLite"
	}
}

// GenerateSQL implements nlsql.Generator. Transient failures are retried up
// to MaxAttempts times; an empty answer is not retried.
func (g *Generator) GenerateSQL(ctx context.Context, question string, schema []nlsql.TableSchema) (string, error) {
	system := nlsql.Rules(g.Dialect) + "\nSchema:\n" + nlsql.SchemaPrompt(schema)
	user := "Question: " + question + "\nGenerate ONLY the SQL query. Only the SELECT; no extra text."

	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := g.generate(ctx, system, user)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(attempt) * g.Backoff):
			}
			continue
		}
		txt := strings.TrimSpace(firstText(resp))
		if txt == "" {
			return "", ErrEmptyResponse
		}
		return txt, nil
	}
	return "", fmt.Errorf("gemini: %d attempts: %w", attempts, lastErr)
}

func (g *Generator) call(ctx context.Context, system, user string) (*genai.GenerateContentResponse, error) {
	opts := []option.ClientOption{option.WithAPIKey(g.APIKey)}
	if g.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(g.BaseURL))
	}
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(g.Temperature),
		ResponseMIMEType: "text/plain",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	return m.GenerateContent(ctx, genai.Text(user))
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
