package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/sage/internal/models"
	"github.com/xhad/sage/internal/types"
)

// Toolkit executes the functions the model can call. The same toolkit
// backs both the chat agent and the voice webhook, so tool behavior is
// identical across channels.
type Toolkit struct {
	Store          types.VectorStore
	Embedder       types.Embedder
	Searcher       types.WebSearcher
	Scheduler      types.Scheduler
	SearchLimit    int
	ScoreThreshold float32
}

func toolDefinitions() []llms.FunctionDefinition {
	return []llms.FunctionDefinition{
		{
			Name:        "search_knowledge",
			Description: "Search the support knowledge base for information about products, policies, fees, and how-to questions. Always try this first.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The user's question, rephrased as a search query",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "search_web",
			Description: "Search the web for current information not covered by the knowledge base, such as rates or recent news.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The search query",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "check_availability",
			Description: "Check whether a one-hour support call slot is free before scheduling.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"date": map[string]interface{}{
						"type":        "string",
						"description": "Date in YYYY-MM-DD format",
					},
					"time": map[string]interface{}{
						"type":        "string",
						"description": "Start time in 24-hour HH:MM format, UTC",
					},
				},
				"required": []string{"date", "time"},
			},
		},
		{
			Name:        "schedule_meeting",
			Description: "Schedule a one-hour support call and send a calendar invite. Collect the user's email, preferred date, and preferred time first.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"email": map[string]interface{}{
						"type":        "string",
						"description": "The user's email address for the invite",
					},
					"topic": map[string]interface{}{
						"type":        "string",
						"description": "What the call is about",
					},
					"preferred_date": map[string]interface{}{
						"type":        "string",
						"description": "Date in YYYY-MM-DD format",
					},
					"preferred_time": map[string]interface{}{
						"type":        "string",
						"description": "Start time in 24-hour HH:MM format, UTC",
					},
					"notes": map[string]interface{}{
						"type":        "string",
						"description": "Optional extra context for the call",
					},
				},
				"required": []string{"email", "preferred_date", "preferred_time"},
			},
		},
	}
}

// Tools returns the definitions in the form the chat model expects.
func Tools() []llms.Tool {
	defs := toolDefinitions()
	tools := make([]llms.Tool, 0, len(defs))
	for i := range defs {
		tools = append(tools, llms.Tool{
			Type:     "function",
			Function: &defs[i],
		})
	}
	return tools
}

// ToolSchemas returns the definitions as plain maps for the voice
// assistant configuration.
func ToolSchemas() []map[string]interface{} {
	defs := toolDefinitions()
	schemas := make([]map[string]interface{}, 0, len(defs))
	for _, def := range defs {
		schemas = append(schemas, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        def.Name,
				"description": def.Description,
				"parameters":  def.Parameters,
			},
		})
	}
	return schemas
}

// HandleToolCall dispatches one tool invocation. The result string goes
// back to the model verbatim; errors are returned as text too so the
// model can recover instead of the loop aborting.
func (tk *Toolkit) HandleToolCall(ctx context.Context, name, arguments string) string {
	log.Debug().Str("tool", name).Str("arguments", arguments).Msg("executing tool call")

	result, err := tk.dispatch(ctx, name, arguments)
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Msg("tool call failed")
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

func (tk *Toolkit) dispatch(ctx context.Context, name, arguments string) (string, error) {
	switch name {
	case "search_knowledge":
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		return tk.searchKnowledge(ctx, args.Query)

	case "search_web":
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		return tk.searchWeb(ctx, args.Query)

	case "check_availability":
		var args struct {
			Date string `json:"date"`
			Time string `json:"time"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		return tk.checkAvailability(ctx, args.Date, args.Time)

	case "schedule_meeting":
		var args struct {
			Email         string `json:"email"`
			Topic         string `json:"topic"`
			PreferredDate string `json:"preferred_date"`
			PreferredTime string `json:"preferred_time"`
			Notes         string `json:"notes"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		return tk.scheduleMeeting(ctx, models.MeetingRequest{
			Email:         args.Email,
			Topic:         args.Topic,
			PreferredDate: args.PreferredDate,
			PreferredTime: args.PreferredTime,
			Notes:         args.Notes,
		})

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (tk *Toolkit) searchKnowledge(ctx context.Context, query string) (string, error) {
	if tk.Store == nil || tk.Embedder == nil {
		return "", fmt.Errorf("knowledge base is not available")
	}

	embedding, err := tk.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to embed query: %w", err)
	}

	limit := tk.SearchLimit
	if limit <= 0 {
		limit = 3
	}

	results, err := tk.Store.Search(ctx, embedding, limit)
	if err != nil {
		return "", fmt.Errorf("knowledge search failed: %w", err)
	}

	var relevant []models.SearchResult
	for _, r := range results {
		if r.Score >= tk.ScoreThreshold {
			relevant = append(relevant, r)
		}
	}
	if len(relevant) == 0 {
		return "No relevant information found in the knowledge base. Consider searching the web.", nil
	}

	var sb strings.Builder
	for i, r := range relevant {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s](%s)\n%s", r.Title, r.URL, r.Text)
	}
	return sb.String(), nil
}

func (tk *Toolkit) searchWeb(ctx context.Context, query string) (string, error) {
	if tk.Searcher == nil || !tk.Searcher.Available() {
		return "", fmt.Errorf("web search is not available")
	}
	return tk.Searcher.Search(ctx, query)
}

func (tk *Toolkit) checkAvailability(ctx context.Context, date, clock string) (string, error) {
	if tk.Scheduler == nil || !tk.Scheduler.Available() {
		return "", fmt.Errorf("scheduling is not available")
	}

	free, err := tk.Scheduler.CheckAvailability(ctx, date, clock)
	if err != nil {
		return "", err
	}
	if free {
		return fmt.Sprintf("The slot on %s at %s UTC is available.", date, clock), nil
	}
	return fmt.Sprintf("The slot on %s at %s UTC is already booked. Suggest another time.", date, clock), nil
}

func (tk *Toolkit) scheduleMeeting(ctx context.Context, req models.MeetingRequest) (string, error) {
	if tk.Scheduler == nil || !tk.Scheduler.Available() {
		return "", fmt.Errorf("scheduling is not available")
	}
	if err := validateSlotInFuture(req.PreferredDate, req.PreferredTime); err != nil {
		return "", err
	}

	confirmation, err := tk.Scheduler.Schedule(ctx, req)
	if err != nil {
		return "", err
	}
	return confirmation.Message, nil
}

func validateSlotInFuture(date, clock string) error {
	start, err := time.Parse("2006-01-02 15:04", date+" "+clock)
	if err != nil {
		return fmt.Errorf("invalid date or time: %w", err)
	}
	if start.Before(time.Now().UTC()) {
		return fmt.Errorf("cannot schedule a meeting in the past")
	}
	return nil
}
