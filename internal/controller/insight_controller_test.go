package controller

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"bizinsight-be/internal/dto"
	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/internal/pkg/serverutils"
	"bizinsight-be/internal/service"
	"bizinsight-be/pkg/llm"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInsightService struct {
	chunks  []dto.ChatStreamChunk
	gotReq  *dto.ChatRequest
	gotUser uuid.UUID
}

func (s *stubInsightService) ProcessChat(ctx context.Context, userId uuid.UUID, req *dto.ChatRequest) <-chan dto.ChatStreamChunk {
	s.gotReq = req
	s.gotUser = userId
	out := make(chan dto.ChatStreamChunk, len(s.chunks))
	for _, c := range s.chunks {
		out <- c
	}
	close(out)
	return out
}

type stubConversationService struct {
	service.IConversationService
	missing bool
}

func (s *stubConversationService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ConversationResponse, error) {
	if s.missing {
		return nil, service.ErrConversationNotFound
	}
	return &dto.ConversationResponse{Id: id, UserId: userId, Title: "Q3 revenue"}, nil
}

func (s *stubConversationService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error) {
	return &dto.ConversationResponse{Id: uuid.New(), UserId: userId, Title: req.Title}, nil
}

func newTestApp(insight service.IInsightService, conversations service.IConversationService) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: func(ctx *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		return ctx.Status(code).JSON(serverutils.ErrorResponse(code, err.Error()))
	}})
	c := NewInsightController(insight, conversations, nil, serverutils.NewJwtMiddleware(""), logger.NewNopLogger())
	c.RegisterRoutes(app.Group("/api"))
	return app
}

func happyChunks() []dto.ChatStreamChunk {
	return []dto.ChatStreamChunk{
		{Content: "Top "},
		{Content: "products"},
		{
			Finished: true,
			Usage:    &llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			SQLQuery: "SELECT name FROM products LIMIT 5",
			Metadata: map[string]interface{}{"conversationId": "c1"},
		},
	}
}

func TestChatStreamsServerSentEvents(t *testing.T) {
	insight := &stubInsightService{chunks: happyChunks()}
	app := newTestApp(insight, &stubConversationService{})

	userId := uuid.New()
	req := httptest.NewRequest("POST", "/api/insights/chat", strings.NewReader(`{"message":"top products"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(serverutils.UserIDHeader, userId.String())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	frames := strings.Split(strings.TrimSpace(string(body)), "\n\n")
	require.Len(t, frames, 4)
	assert.Equal(t, "data: [DONE]", frames[3])

	var last dto.ChatStreamChunk
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[2], "data: ")), &last))
	assert.True(t, last.Finished)
	assert.Equal(t, 15, last.Usage.TotalTokens)
	assert.Equal(t, userId, insight.gotUser)
	assert.Equal(t, "top products", insight.gotReq.Message)
}

func TestChatWithoutStreamReturnsJSON(t *testing.T) {
	app := newTestApp(&stubInsightService{chunks: happyChunks()}, &stubConversationService{})

	req := httptest.NewRequest("POST", "/api/insights/chat", strings.NewReader(`{"message":"top products","stream":false}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool             `json:"success"`
		Data    dto.ChatResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "Top products", body.Data.Content)
	assert.Equal(t, "SELECT name FROM products LIMIT 5", body.Data.SQLQuery)
}

func TestChatRejectsBadBodies(t *testing.T) {
	app := newTestApp(&stubInsightService{}, &stubConversationService{})

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"message":`},
		{name: "empty message", body: `{"message":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/insights/chat", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.NotEqual(t, fiber.StatusOK, resp.StatusCode)
		})
	}
}

func TestShowConversationNotFoundIs404(t *testing.T) {
	app := newTestApp(&stubInsightService{}, &stubConversationService{missing: true})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/insights/conversations/"+uuid.NewString(), nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestShowConversationRejectsBadID(t *testing.T) {
	app := newTestApp(&stubInsightService{}, &stubConversationService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/insights/conversations/not-a-uuid", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateConversationUsesCaller(t *testing.T) {
	app := newTestApp(&stubInsightService{}, &stubConversationService{})
	userId := uuid.New()

	req := httptest.NewRequest("POST", "/api/insights/conversations", strings.NewReader(`{"title":"Churn"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(serverutils.UserIDHeader, userId.String())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body struct {
		Data dto.ConversationResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, userId, body.Data.UserId)
	assert.Equal(t, "Churn", body.Data.Title)
}

func TestGetExamples(t *testing.T) {
	app := newTestApp(&stubInsightService{}, &stubConversationService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/insights/examples", nil), -1)
	require.NoError(t, err)

	var body struct {
		Data dto.ExamplesResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 8, body.Data.TotalCount)
	assert.Len(t, body.Data.Categories, 8)
	assert.Equal(t, "Sales Analysis", body.Data.Categories[0])
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteSSECancelsOnDisconnect(t *testing.T) {
	chunks := make(chan dto.ChatStreamChunk, 3)
	chunks <- dto.ChatStreamChunk{Content: "a"}
	chunks <- dto.ChatStreamChunk{Content: "b"}
	chunks <- dto.ChatStreamChunk{Finished: true}
	close(chunks)

	cancelled := 0
	writeSSE(bufio.NewWriterSize(failingWriter{}, 16), chunks, func() { cancelled++ }, logger.NewNopLogger())

	assert.Equal(t, 1, cancelled)
	assert.Len(t, chunks, 0)
}

func TestWriteSSEFraming(t *testing.T) {
	chunks := make(chan dto.ChatStreamChunk, 1)
	chunks <- dto.ChatStreamChunk{Content: "hi", Finished: true}
	close(chunks)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	writeSSE(w, chunks, func() {}, logger.NewNopLogger())

	assert.Equal(t, "data: {\"content\":\"hi\",\"finished\":true}\n\ndata: [DONE]\n\n", buf.String())
}
