package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/mikeboe/osint-helper/pkg/config"
	"github.com/mikeboe/osint-helper/pkg/database"
)

const (
	appName   = "osint-helper"
	agentName = "osint_analyst"
	userID    = "analyst"
)

const instruction = `You are an OSINT analyst answering follow-up questions about past investigations.
ALWAYS call search_knowledge before answering; use list_subjects when the subject is unclear.
Only state facts found in the retrieved content and group them by source:
# Source: <source>

- <fact>
- <fact>`

type Service struct {
	DB        *database.PostgresDB
	Client    *genai.Client
	Agent     agent.Agent
	chatModel string
	Logger    *slog.Logger
}

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// StreamEvent is one item of a chat stream. Type is one of "content",
// "tool_call", "tool_result", "error" or "done".
type StreamEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func NewService(ctx context.Context, db *database.PostgresDB, cfg *config.Config, knowledge *KnowledgeToolset) (*Service, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.LLM.GoogleKey,
		Backend: genai.BackendGeminiAPI,
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	llm, err := gemini.NewModel(ctx, cfg.Rag.ChatModel, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	analyst, err := llmagent.New(llmagent.Config{
		Name:        agentName,
		Model:       llm,
		Description: "Answers questions from knowledge gathered during investigations.",
		Instruction: instruction,
		Toolsets:    []tool.Toolset{knowledge},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	return &Service{
		DB:        db,
		Client:    client,
		Agent:     analyst,
		chatModel: cfg.Rag.ChatModel,
		Logger:    slog.Default(),
	}, nil
}

func (s *Service) CreateConversation(ctx context.Context) (*Conversation, error) {
	conv := &Conversation{}
	err := s.DB.Pool.QueryRow(ctx,
		`INSERT INTO conversations (id) VALUES ($1) RETURNING id, title, created_at, updated_at`,
		uuid.New()).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.DB.Pool.Query(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (s *Service) GetHistory(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := s.DB.Pool.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SendMessage stores the user message, replays the stored history into a
// fresh session and streams the agent's answer. The answer is stored once
// the stream completes.
func (s *Service) SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (iter.Seq2[StreamEvent, error], error) {
	userMsgID := uuid.New()
	if _, err := s.DB.Pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content) VALUES ($1, $2, 'user', $3)`,
		userMsgID, conversationID, content); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	sessions := session.InMemoryService()
	sessionID := conversationID.String()
	created, err := sessions.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	history, err := s.GetHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for _, msg := range history {
		if msg.ID == userMsgID {
			continue
		}
		if err := sessions.AppendEvent(ctx, created.Session, historyEvent(msg)); err != nil {
			return nil, fmt.Errorf("failed to replay history: %w", err)
		}
	}

	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          s.Agent,
		SessionService: sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	userContent := genai.NewContentFromText(content, genai.RoleUser)

	return func(yield func(StreamEvent, error) bool) {
		s.Logger.Info("Starting agent run", "conversation_id", conversationID)
		var answer strings.Builder

		events := r.Run(ctx, userID, sessionID, userContent, agent.RunConfig{
			StreamingMode: agent.StreamingModeSSE,
		})
		for event, err := range events {
			if err != nil {
				s.Logger.Error("Agent run failed", "error", err)
				yield(StreamEvent{Type: "error", Payload: err.Error()}, err)
				return
			}
			if event.LLMResponse.Content == nil {
				continue
			}
			for _, part := range event.LLMResponse.Content.Parts {
				var ev StreamEvent
				switch {
				case part.Text != "":
					answer.WriteString(part.Text)
					ev = StreamEvent{Type: "content", Payload: part.Text}
				case part.FunctionCall != nil:
					s.Logger.Info("Agent tool call", "tool", part.FunctionCall.Name)
					ev = StreamEvent{Type: "tool_call", Payload: part.FunctionCall}
				case part.FunctionResponse != nil:
					ev = StreamEvent{Type: "tool_result", Payload: part.FunctionResponse}
				default:
					continue
				}
				if !yield(ev, nil) {
					return
				}
			}
		}

		if _, err := s.DB.Pool.Exec(ctx,
			`INSERT INTO messages (id, conversation_id, role, content) VALUES ($1, $2, 'model', $3)`,
			uuid.New(), conversationID, answer.String()); err != nil {
			s.Logger.Error("Failed to save model message", "error", err)
		} else {
			_, _ = s.DB.Pool.Exec(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID)
		}

		yield(StreamEvent{Type: "done", Payload: "done"}, nil)

		if len(history) <= 2 {
			go s.generateTitle(conversationID, content, answer.String())
		}
	}, nil
}

func historyEvent(msg Message) *session.Event {
	role, author := genai.Role(genai.RoleUser), "user"
	if msg.Role == string(genai.RoleModel) {
		role, author = genai.RoleModel, agentName
	}
	evt := session.NewEvent(uuid.NewString())
	evt.Author = author
	evt.LLMResponse = model.LLMResponse{
		Content: genai.NewContentFromText(msg.Content, role),
	}
	return evt
}

func (s *Service) generateTitle(convID uuid.UUID, userMsg, modelMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prompt := fmt.Sprintf("Generate a short title (max 5 words) for this conversation:\nUser: %s\nModel: %s", userMsg, modelMsg)
	resp, err := s.Client.Models.GenerateContent(ctx, s.chatModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{"title": {Type: genai.TypeString}},
			Required:   []string{"title"},
		},
	})
	if err != nil {
		s.Logger.Warn("Title generation failed", "error", err)
		return
	}

	var out struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(resp.Text()), &out); err != nil {
		s.Logger.Error("Failed to decode title", "error", err)
		return
	}
	if out.Title == "" {
		return
	}
	if _, err := s.DB.Pool.Exec(ctx, `UPDATE conversations SET title = $2 WHERE id = $1`, convID, out.Title); err != nil {
		s.Logger.Error("Failed to update conversation title", "error", err)
	}
}
