package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/httpx"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/observability"
)

// Client is the runtime's abstraction over the LLM endpoint (spec.md §4.4).
type Client interface {
	Generate(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (*Result, error)
	GenerateStreaming(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (<-chan StreamChunk, error)
	ContextWindow() int
}

// HTTPClient is a hand-rolled SSE streaming client over net/http wrapped by
// pkg/httpx's retry/backoff client, the same pattern the teacher uses for
// its own OpenAI/Ollama providers. A vendored provider SDK isn't warranted:
// the quirk-handling (reasoning-preamble split, bounded JSON repair,
// context-limit pre-check) is bespoke regardless of transport.
type HTTPClient struct {
	cfg       Config
	transport *httpx.Client
	tracer    *observability.Tracer
	metrics   *observability.Metrics
}

// NewHTTPClient builds an HTTPClient talking to an OpenAI-compatible
// /chat/completions endpoint at cfg.BaseURL. A nil transport builds one from
// cfg's own retry settings, mirroring the teacher's createHTTPClient.
func NewHTTPClient(cfg Config, transport *httpx.Client) *HTTPClient {
	cfg.SetDefaults()
	if transport == nil {
		transport = httpx.New(
			httpx.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}),
			httpx.WithMaxRetries(cfg.MaxRetries),
			httpx.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
		)
	}
	return &HTTPClient{cfg: cfg, transport: transport}
}

// WithObservability attaches a tracer and metrics recorder. Either may be
// nil; both tolerate nil receivers.
func (c *HTTPClient) WithObservability(tracer *observability.Tracer, metrics *observability.Metrics) *HTTPClient {
	c.tracer = tracer
	c.metrics = metrics
	return c
}

func (c *HTTPClient) ContextWindow() int { return c.cfg.ContextWindow }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// checkContextOverflow implements spec.md §4.4 item 3: if messages after
// compaction would exceed the model's declared window, fail fast instead
// of sending a request doomed to be rejected upstream.
func (c *HTTPClient) checkContextOverflow(messages []model.Message) error {
	estimated := EstimateMessagesTokens(messages) + c.cfg.MaxTokens
	if estimated > c.cfg.ContextWindow {
		return apperr.New(apperr.KindContextOverflow,
			"estimated %d tokens exceeds model window %d", estimated, c.cfg.ContextWindow)
	}
	return nil
}

func (c *HTTPClient) buildRequest(messages []model.Message, tools []model.ToolSpec, stream bool) chatRequest {
	return chatRequest{
		Model:       c.cfg.Model,
		Messages:    toWireMessages(messages),
		Tools:       toWireTools(tools),
		Temperature: *c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      stream,
	}
}

// Generate performs a non-streaming completion.
func (c *HTTPClient) Generate(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (*Result, error) {
	start := time.Now()
	ctx, span := c.tracer.StartLLMCall(ctx, c.cfg.Model, c.cfg.MaxTokens, *c.cfg.Temperature)
	defer span.End()

	result, err := c.generate(ctx, messages, tools)
	c.metrics.RecordLLMCall(c.cfg.Model, "http", time.Since(start))
	if err != nil {
		c.tracer.RecordError(span, err)
		c.metrics.RecordLLMError(c.cfg.Model, "http", string(apperr.KindOf(err)))
		return nil, err
	}
	c.tracer.AddLLMUsage(span, 0, result.Tokens)
	c.metrics.RecordLLMTokens(c.cfg.Model, "http", 0, result.Tokens)
	return result, nil
}

func (c *HTTPClient) generate(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (*Result, error) {
	if err := c.checkContextOverflow(messages); err != nil {
		return nil, err
	}

	body, err := json.Marshal(c.buildRequest(messages, tools, false))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "llm: encode request")
	}

	req, err := httpx.NewJSONRequest(ctx, "POST", c.cfg.BaseURL+"/chat/completions", body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "llm: build request")
	}
	if key := c.cfg.APIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.transport.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "llm: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "llm: status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "llm: decode response")
	}
	if len(parsed.Choices) == 0 {
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "llm: no choices in response")
	}

	choice := parsed.Choices[0]
	reasoning, answer := splitReasoning(choice.Message.Content)

	result := &Result{Text: answer, Tokens: parsed.Usage.TotalTokens}
	if reasoning != "" {
		result.ReasoningTrace = append(result.ReasoningTrace, model.ReasoningStep{
			Kind: model.StepThink, Content: reasoning,
		})
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, toolCallFromWire(tc))
	}
	return result, nil
}

func toolCallFromWire(tc wireToolCall) ToolCall {
	args, repaired, ok := repairToolArgs(tc.Function.Arguments)
	if !ok {
		return ToolCall{ID: tc.ID, Name: tc.Function.Name, RawArgs: tc.Function.Arguments, Repaired: false}
	}
	return ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args, RawArgs: tc.Function.Arguments, Repaired: repaired}
}

// GenerateStreaming performs a streaming completion, emitting think/text/
// tool_call/done/error chunks in order (spec.md §4.4, §4.6 "Streaming
// emission").
func (c *HTTPClient) GenerateStreaming(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (<-chan StreamChunk, error) {
	start := time.Now()
	ctx, span := c.tracer.StartLLMCall(ctx, c.cfg.Model, c.cfg.MaxTokens, *c.cfg.Temperature)

	out, err := c.generateStreaming(ctx, messages, tools)
	if err != nil {
		c.tracer.RecordError(span, err)
		c.metrics.RecordLLMCall(c.cfg.Model, "http", time.Since(start))
		c.metrics.RecordLLMError(c.cfg.Model, "http", string(apperr.KindOf(err)))
		span.End()
		return nil, err
	}

	traced := make(chan StreamChunk, 64)
	go func() {
		defer close(traced)
		defer span.End()
		for chunk := range out {
			if chunk.Type == ChunkDone {
				c.metrics.RecordLLMCall(c.cfg.Model, "http", time.Since(start))
				c.tracer.AddLLMUsage(span, 0, chunk.Tokens)
				c.metrics.RecordLLMTokens(c.cfg.Model, "http", 0, chunk.Tokens)
			}
			if chunk.Type == ChunkError {
				c.tracer.RecordError(span, chunk.Error)
				c.metrics.RecordLLMError(c.cfg.Model, "http", string(apperr.KindOf(chunk.Error)))
			}
			traced <- chunk
		}
	}()
	return traced, nil
}

func (c *HTTPClient) generateStreaming(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (<-chan StreamChunk, error) {
	if err := c.checkContextOverflow(messages); err != nil {
		return nil, err
	}

	body, err := json.Marshal(c.buildRequest(messages, tools, true))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "llm: encode request")
	}

	req, err := httpx.NewJSONRequest(ctx, "POST", c.cfg.BaseURL+"/chat/completions", body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "llm: build request")
	}
	if key := c.cfg.APIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.transport.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "llm: streaming request failed")
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "llm: status %d: %s", resp.StatusCode, string(raw))
	}

	out := make(chan StreamChunk, 64)
	go c.consumeStream(resp.Body, out)
	return out, nil
}

// streamState accumulates partial tool-call argument strings across SSE
// deltas (a single tool call's arguments field may arrive over many
// chunks), mirroring the teacher's streamingState accumulator.
type streamState struct {
	rawContent   strings.Builder
	reasoningEnd bool
	toolCalls    map[int]*accumulatingCall
	order        []int
}

type accumulatingCall struct {
	id   string
	name string
	args strings.Builder
}

type sseDelta struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// consumeStream reads the SSE body line by line (bufio.Reader.ReadBytes, not
// bufio.Scanner, so a long tool-result delta isn't truncated by Scanner's
// 64KB default buffer), emitting reasoning/text chunks as the preamble
// closes and accumulating tool-call argument fragments until each call
// completes.
func (c *HTTPClient) consumeStream(body io.ReadCloser, out chan<- StreamChunk) {
	defer close(out)
	defer body.Close()

	reader := bufio.NewReader(body)
	state := &streamState{toolCalls: make(map[int]*accumulatingCall)}
	var totalTokens int

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				out <- StreamChunk{Type: ChunkError, Error: fmt.Errorf("llm: read stream: %w", err)}
			}
			break
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		data := line[len("data: "):]
		if string(data) == "[DONE]" {
			break
		}

		var delta sseDelta
		if err := json.Unmarshal(data, &delta); err != nil {
			slog.Debug("llm: failed to parse SSE event", "error", err)
			continue
		}
		if delta.Usage != nil {
			totalTokens = delta.Usage.TotalTokens
		}
		if len(delta.Choices) == 0 {
			continue
		}
		choice := delta.Choices[0]

		if choice.Delta.Content != "" {
			c.emitContentDelta(state, choice.Delta.Content, out)
		}
		for _, tc := range choice.Delta.ToolCalls {
			acc, ok := state.toolCalls[tc.Index]
			if !ok {
				acc = &accumulatingCall{}
				state.toolCalls[tc.Index] = acc
				state.order = append(state.order, tc.Index)
			}
			if tc.ID != "" {
				acc.id = tc.ID
			}
			if tc.Function.Name != "" {
				acc.name = tc.Function.Name
			}
			acc.args.WriteString(tc.Function.Arguments)
		}
	}

	for _, idx := range state.order {
		acc := state.toolCalls[idx]
		raw := acc.args.String()
		args, repaired, ok := repairToolArgs(raw)
		if !ok {
			// Bounded recovery failed: treat as "no tool call" rather than
			// emitting a broken call. The call is dropped with only a log
			// line; the stream carries no marker of it, so the caller sees
			// a reply without a tool call and is not prompted to retry.
			slog.Warn("llm: tool-call JSON unrecoverable", "tool", acc.name)
			continue
		}
		out <- StreamChunk{Type: ChunkToolCall, ToolCall: &ToolCall{
			ID: acc.id, Name: acc.name, Arguments: args, RawArgs: raw, Repaired: repaired,
		}}
	}

	out <- StreamChunk{Type: ChunkDone, Tokens: totalTokens}
}

// emitContentDelta buffers raw content until the reasoning preamble (if
// any) closes, then emits a think chunk for the preamble and streams the
// remainder as text chunks.
func (c *HTTPClient) emitContentDelta(state *streamState, delta string, out chan<- StreamChunk) {
	if state.reasoningEnd {
		out <- StreamChunk{Type: ChunkText, Text: delta}
		return
	}
	state.rawContent.WriteString(delta)
	raw := state.rawContent.String()
	if !strings.Contains(raw, reasoningOpen) {
		// No preamble marker at all: everything seen so far is the answer.
		state.reasoningEnd = true
		out <- StreamChunk{Type: ChunkText, Text: raw}
		return
	}
	if idx := strings.Index(raw, reasoningClose); idx != -1 {
		reasoning, answer := splitReasoning(raw)
		state.reasoningEnd = true
		if reasoning != "" {
			out <- StreamChunk{Type: ChunkThink, Text: reasoning}
		}
		if answer != "" {
			out <- StreamChunk{Type: ChunkText, Text: answer}
		}
	}
	// Still mid-preamble: hold the chunk back, nothing to emit yet.
}
