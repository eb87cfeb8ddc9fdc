package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bizinsight-be/internal/constant"
	"bizinsight-be/internal/dto"
	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/internal/pkg/serverutils"
	"bizinsight-be/internal/service"
	insightws "bizinsight-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

type IInsightController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	CreateConversation(ctx *fiber.Ctx) error
	GetConversations(ctx *fiber.Ctx) error
	ShowConversation(ctx *fiber.Ctx) error
	RenameConversation(ctx *fiber.Ctx) error
	TogglePin(ctx *fiber.Ctx) error
	DeleteConversation(ctx *fiber.Ctx) error
	ConversationStats(ctx *fiber.Ctx) error
	GetMessages(ctx *fiber.Ctx) error
	GetExamples(ctx *fiber.Ctx) error
}

type insightController struct {
	insightService      service.IInsightService
	conversationService service.IConversationService
	hub                 *insightws.Hub
	authMiddleware      fiber.Handler
	logger              logger.ILogger
}

func NewInsightController(
	insightService service.IInsightService,
	conversationService service.IConversationService,
	hub *insightws.Hub,
	authMiddleware fiber.Handler,
	log logger.ILogger,
) IInsightController {
	return &insightController{
		insightService:      insightService,
		conversationService: conversationService,
		hub:                 hub,
		authMiddleware:      authMiddleware,
		logger:              log,
	}
}

func (c *insightController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/insights")
	h.Get("/examples", c.GetExamples)

	h.Use(c.authMiddleware)
	h.Post("/chat", c.Chat)

	if c.hub != nil {
		h.Use("/ws", func(ctx *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(ctx) {
				return ctx.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		h.Get("/ws", websocket.New(c.serveSocket))
	}

	h.Post("/conversations", c.CreateConversation)
	h.Get("/conversations", c.GetConversations)
	h.Get("/conversations/:id", c.ShowConversation)
	h.Patch("/conversations/:id", c.RenameConversation)
	h.Patch("/conversations/:id/pin", c.TogglePin)
	h.Delete("/conversations/:id", c.DeleteConversation)
	h.Get("/conversations/:id/stats", c.ConversationStats)
	h.Get("/messages/:conversationId", c.GetMessages)
}

// Chat answers with Server-Sent Events unless the request sets stream to false.
func (c *insightController) Chat(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if !req.WantsStream() {
		res := dto.CollectChatStream(c.insightService.ProcessChat(ctx.UserContext(), userId, &req))
		return ctx.JSON(serverutils.SuccessResponse("Success process chat", res))
	}

	// The stream writer outlives the handler, so the turn gets its own context.
	turnCtx, cancel := context.WithCancel(context.WithoutCancel(ctx.UserContext()))
	chunks := c.insightService.ProcessChat(turnCtx, userId, &req)

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		writeSSE(w, chunks, cancel, c.logger)
	}))
	return nil
}

// writeSSE frames each chunk as an SSE data line and ends with [DONE]. A failed flush
// means the client left: the turn is cancelled and the rest of the channel drained.
func writeSSE(w *bufio.Writer, chunks <-chan dto.ChatStreamChunk, cancel context.CancelFunc, log logger.ILogger) {
	connected := true
	for chunk := range chunks {
		if !connected {
			continue
		}

		data, err := json.Marshal(chunk)
		if err != nil {
			log.Error("INSIGHT", "Failed to encode chunk", map[string]interface{}{"error": err.Error()})
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if err := w.Flush(); err != nil {
			connected = false
			cancel()
		}
	}

	if connected {
		fmt.Fprint(w, "data: [DONE]\n\n")
		w.Flush()
	}
}

func (c *insightController) serveSocket(conn *websocket.Conn) {
	raw, _ := conn.Locals(serverutils.UserIDLocal).(string)
	userId, err := uuid.Parse(raw)
	if err != nil {
		conn.WriteJSON(insightws.Frame{Type: insightws.FrameChatError, Data: map[string]string{"message": "Invalid user id"}})
		conn.Close()
		return
	}

	insightws.ServeWs(c.hub, conn, userId, c.insightService.ProcessChat)
}

func (c *insightController) CreateConversation(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.conversationService.Create(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create conversation", res))
}

func (c *insightController) GetConversations(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	res, err := c.conversationService.GetAll(ctx.UserContext(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all conversations", res))
}

func (c *insightController) ShowConversation(ctx *fiber.Ctx) error {
	userId, id, err := ownerAndID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.conversationService.Show(ctx.UserContext(), userId, id)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show conversation", res))
}

func (c *insightController) RenameConversation(ctx *fiber.Ctx) error {
	userId, id, err := ownerAndID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.UpdateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.conversationService.Rename(ctx.UserContext(), userId, id, &req)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update conversation", res))
}

func (c *insightController) TogglePin(ctx *fiber.Ctx) error {
	userId, id, err := ownerAndID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.conversationService.TogglePin(ctx.UserContext(), userId, id)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success toggle pin", res))
}

func (c *insightController) DeleteConversation(ctx *fiber.Ctx) error {
	userId, id, err := ownerAndID(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.conversationService.Delete(ctx.UserContext(), userId, id); err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete conversation", nil))
}

func (c *insightController) ConversationStats(ctx *fiber.Ctx) error {
	userId, id, err := ownerAndID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.conversationService.Stats(ctx.UserContext(), userId, id)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get conversation stats", res))
}

func (c *insightController) GetMessages(ctx *fiber.Ctx) error {
	userId, id, err := ownerAndID(ctx, "conversationId")
	if err != nil {
		return err
	}

	res, err := c.conversationService.Messages(ctx.UserContext(), userId, id)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}

func (c *insightController) GetExamples(ctx *fiber.Ctx) error {
	categories := make([]string, 0)
	seen := make(map[string]bool)
	for _, e := range constant.ExampleQueries {
		if !seen[e.Category] {
			seen[e.Category] = true
			categories = append(categories, e.Category)
		}
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get examples", dto.ExamplesResponse{
		Categories: categories,
		Examples:   constant.ExampleQueries,
		TotalCount: len(constant.ExampleQueries),
	}))
}

func ownerAndID(ctx *fiber.Ctx, param string) (uuid.UUID, uuid.UUID, error) {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	id, err := uuid.Parse(ctx.Params(param))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid conversation id")
	}
	return userId, id, nil
}

func toHTTPError(err error) error {
	if errors.Is(err, service.ErrConversationNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Conversation not found")
	}
	return err
}
