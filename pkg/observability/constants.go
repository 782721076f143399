// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability provides OpenTelemetry tracing and Prometheus
// metrics for the orchestration runtime: spans around specialist turns, LLM
// calls, tool executions and hybrid retrieval, plus counters/histograms for
// the same, exported over OTLP and /metrics respectively.
package observability

// =============================================================================
// Service Attributes (OpenTelemetry Semantic Conventions)
// =============================================================================

const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
)

// =============================================================================
// GenAI Semantic Conventions (OpenTelemetry GenAI SIG)
// =============================================================================

const (
	AttrGenAISystem               = "gen_ai.system"
	AttrGenAIOperationName        = "gen_ai.operation.name"
	AttrGenAIRequestModel         = "gen_ai.request.model"
	AttrGenAIRequestTemperature   = "gen_ai.request.temperature"
	AttrGenAIRequestTopP          = "gen_ai.request.top_p"
	AttrGenAIRequestMaxTokens     = "gen_ai.request.max_tokens"
	AttrGenAIResponseFinishReason = "gen_ai.response.finish_reason"
	AttrGenAIUsageInputTokens     = "gen_ai.usage.input_tokens"
	AttrGenAIUsageOutputTokens    = "gen_ai.usage.output_tokens"
	AttrGenAIToolName             = "gen_ai.tool.name"
	AttrGenAIToolDescription      = "gen_ai.tool.description"
	AttrGenAIToolCallID           = "gen_ai.tool.call.id"
)

// =============================================================================
// Runtime-Specific Attributes
// =============================================================================

const (
	// AttrAgentName is the specialist handling a turn (erp, crm, it, oa, mold).
	AttrAgentName = "bestbox.agent.name"

	// AttrThreadID is the conversation thread a turn belongs to.
	AttrThreadID = "bestbox.thread_id"

	// AttrTurnID is the turn being processed; also the debug-exporter lookup key.
	AttrTurnID = "bestbox.turn_id"

	// AttrUserID is the end user a turn runs on behalf of.
	AttrUserID = "bestbox.user_id"

	// AttrPermissionTag is the permission tag a tool call was gated on.
	AttrPermissionTag = "bestbox.permission_tag"

	// AttrLLMRequest is the serialized LLM request, set only when payload
	// capture is enabled.
	AttrLLMRequest = "bestbox.llm.request"

	// AttrLLMResponse is the serialized LLM response, set only when payload
	// capture is enabled.
	AttrLLMResponse = "bestbox.llm.response"

	// AttrToolArgs is the serialized tool call arguments, set only when
	// payload capture is enabled.
	AttrToolArgs = "bestbox.tool.args"

	// AttrToolResponse is the serialized tool call result, set only when
	// payload capture is enabled.
	AttrToolResponse = "bestbox.tool.response"
)

// =============================================================================
// HTTP Attributes
// =============================================================================

const (
	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.route"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPRequestSize  = "http.request.body.size"
	AttrHTTPResponseSize = "http.response.body.size"
)

// =============================================================================
// Error Attributes
// =============================================================================

const (
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// =============================================================================
// Span Names
// =============================================================================

const (
	// SpanSpecialistTurn is the top-level span for one specialist's turn of
	// the graph runtime (C6).
	SpanSpecialistTurn = "bestbox.agent.turn"

	// SpanLLMCall is a span for one LLM API call (C4).
	SpanLLMCall = "bestbox.llm.call"

	// SpanToolExecution is a span for one tool invocation (C2).
	SpanToolExecution = "bestbox.tool.execute"

	// SpanRetrieval is a span for one hybrid-retrieval query (C3).
	SpanRetrieval = "bestbox.retrieval.query"

	// SpanCheckpoint is a span for one checkpoint save/restore (C7).
	SpanCheckpoint = "bestbox.checkpoint"

	// SpanHTTPRequest is a span for HTTP request handling.
	SpanHTTPRequest = "bestbox.http.request"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultServiceName  = "bestboxd"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)

// =============================================================================
// GenAI Operation Names (for AttrGenAIOperationName)
// =============================================================================

const (
	OpChat       = "chat"
	OpToolCall   = "execute_tool"
	OpEmbeddings = "embeddings"
)
