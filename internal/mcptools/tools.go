// Package mcptools exposes the AI enrichment operations as Model Context
// Protocol tools.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pitabwire/util"

	"github.com/livescribe/livescribe/pkg/enrich"
	"github.com/livescribe/livescribe/pkg/language"
)

// Enricher is the subset of the enrichment client the tools call.
type Enricher interface {
	Analyze(ctx context.Context, transcription, question string) (enrich.AnalysisResult, error)
	Summarize(ctx context.Context, transcription string) (string, error)
	DetectLanguage(ctx context.Context, text string) (enrich.LanguageDetection, error)
	Enhance(ctx context.Context, text, targetLanguage string) (enrich.Enhancement, error)
}

// NewServer builds an MCP server with the enrichment tools registered.
// detector answers detect_language when the model fails and may be nil.
func NewServer(version string, ai Enricher, detector func(string) (language.Language, bool)) *server.MCPServer {
	s := server.NewMCPServer("livescribe", version, server.WithToolCapabilities(false))
	h := &handlers{ai: ai, detector: detector}

	s.AddTool(mcp.NewTool("analyze_transcript",
		mcp.WithDescription("Answer a question about a transcript."),
		mcp.WithString("transcription", mcp.Required(), mcp.Description("Transcript text")),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question about the transcript")),
	), h.analyze)

	s.AddTool(mcp.NewTool("summarize_transcript",
		mcp.WithDescription("Summarize a transcript."),
		mcp.WithString("transcription", mcp.Required(), mcp.Description("Transcript text")),
	), h.summarize)

	s.AddTool(mcp.NewTool("detect_language",
		mcp.WithDescription("Detect the language of a text."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to inspect")),
	), h.detectLanguage)

	s.AddTool(mcp.NewTool("enhance_text",
		mcp.WithDescription("Fix grammar and punctuation of a transcribed text."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to enhance")),
		mcp.WithString("target_language", mcp.Description("Language code of the text, e.g. pt-BR")),
	), h.enhance)

	return s
}

type handlers struct {
	ai       Enricher
	detector func(string) (language.Language, bool)
}

func (h *handlers) analyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transcription, err := req.RequireString("transcription")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := h.ai.Analyze(ctx, transcription, question)
	if err != nil {
		return toolError(ctx, "analyze_transcript", err), nil
	}
	return jsonResult(res)
}

func (h *handlers) summarize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transcription, err := req.RequireString("transcription")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, err := h.ai.Summarize(ctx, transcription)
	if err != nil {
		return toolError(ctx, "summarize_transcript", err), nil
	}
	return mcp.NewToolResultText(summary), nil
}

func (h *handlers) detectLanguage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := h.ai.DetectLanguage(ctx, text)
	if err != nil && !errors.Is(err, enrich.ErrInvalidInput) {
		util.Log(ctx).WithError(err).Warn("language detection failed, using keyword heuristic")
		res = enrich.DefaultDetection()
		if h.detector != nil {
			if lang, ok := h.detector(text); ok {
				res = enrich.LanguageDetection{Language: lang.Name, Confidence: lang.Confidence, LanguageCode: lang.Code}
			}
		}
		err = nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (h *handlers) enhance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target := req.GetString("target_language", language.Default)
	res, err := h.ai.Enhance(ctx, text, target)
	if err != nil {
		if errors.Is(err, enrich.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		util.Log(ctx).WithError(err).Warn("enhancement failed, returning original text")
		res = enrich.DefaultEnhancement(text)
	}
	return jsonResult(res)
}

func toolError(ctx context.Context, tool string, err error) *mcp.CallToolResult {
	util.Log(ctx).WithError(err).Error("mcp tool " + tool + " failed")
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
