package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"bizinsight-be/internal/dto"
	"bizinsight-be/pkg/events"
	pktNats "bizinsight-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

func main() {
	baseURL := flag.String("url", "http://localhost:3000/api", "API base URL")
	token := flag.String("token", "", "bearer token (omit in demo mode)")
	userID := flag.String("user", "", "user id for demo mode")
	tail := flag.Bool("events", false, "tail completed-turn events from NATS instead of chatting")
	natsURL := flag.String("nats", "nats://localhost:4222", "NATS URL for -events")
	flag.Parse()

	if *tail {
		if err := tailEvents(*natsURL); err != nil {
			color.Red("Event tail failed: %v", err)
			os.Exit(1)
		}
		return
	}

	c := &client{baseURL: strings.TrimRight(*baseURL, "/"), token: *token, userID: *userID, http: &http.Client{}}

	color.Cyan("Business insight assistant. Type a question, /new for a new conversation, /quit to exit.")

	var conversationID *uuid.UUID
	in := bufio.NewScanner(os.Stdin)
	for {
		color.New(color.FgYellow).Print("\n> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return
		case "/new":
			conversationID = nil
			color.Green("Started a new conversation")
			continue
		}

		final, err := c.chat(line, conversationID)
		if err != nil {
			color.Red("Request failed: %v", err)
			continue
		}
		printSummary(final)

		if id, ok := final.Metadata["conversationId"].(string); ok {
			if parsed, err := uuid.Parse(id); err == nil {
				conversationID = &parsed
			}
		}
	}
}

type client struct {
	baseURL string
	token   string
	userID  string
	http    *http.Client
}

// chat streams one turn to stdout and returns the finished chunk.
func (c *client) chat(message string, conversationID *uuid.UUID) (*dto.ChatStreamChunk, error) {
	body, err := json.Marshal(dto.ChatRequest{Message: message, ConversationId: conversationID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/insights/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userID != "" {
		req.Header.Set("X-User-Id", c.userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	final := &dto.ChatStreamChunk{}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk dto.ChatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("bad frame: %w", err)
		}
		fmt.Print(chunk.Content)
		if chunk.Finished {
			final = &chunk
		}
	}
	fmt.Println()
	return final, scanner.Err()
}

func printSummary(chunk *dto.ChatStreamChunk) {
	if chunk.SQLQuery != "" {
		color.Magenta("\nSQL: %s", chunk.SQLQuery)
	}
	if chunk.SQLResult != nil {
		color.Magenta("Rows: %d", len(chunk.SQLResult))
	}
	if chunk.Usage != nil {
		cost, _ := chunk.Metadata["cost"].(float64)
		color.HiBlack("tokens=%d cost=$%.6f", chunk.Usage.TotalTokens, cost)
	}
}

// tailEvents prints completed turns as the server forwards them to NATS.
func tailEvents(url string) error {
	sub, err := pktNats.NewSubscriber(url)
	if err != nil {
		return err
	}
	defer sub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = sub.Subscribe(ctx, pktNats.Subject(events.TypeInsightQueryCompleted), "insight-cli", func(ctx context.Context, event events.Event) error {
		p := event.Payload()
		color.Cyan("[%s] %v", event.Timestamp().Format("15:04:05"), p["conversationId"])
		color.White("  tokens=%v cost=%v rows=%v elapsed=%vms", p["totalTokens"], p["cost"], p["rowCount"], p["processingTime"])
		return nil
	})
	if err != nil {
		return err
	}

	color.Green("Listening for completed turns. Ctrl+C to stop.")
	<-ctx.Done()
	return nil
}
