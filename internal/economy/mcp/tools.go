package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rsned/idle-economy-server/pkg/economy"
)

// ToolDefinition describes an MCP tool.
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	InputSchema JSONSchema `json:"inputSchema"`
}

// JSONSchema is a simplified JSON Schema representation.
type JSONSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a schema property.
type Property struct {
	Type        string              `json:"type,omitempty"`
	Description string              `json:"description,omitempty"`
	Default     any                 `json:"default,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Maximum     *float64            `json:"maximum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

// GetToolDefinitions returns all tool definitions.
func GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		actionProfitTool(),
		rewardTableValueTool(),
		taskProfitTool(),
		consumptionRatesTool(),
		myListingsTool(),
		sessionStatusTool(),
	}
}

func actionProfitTool() ToolDefinition {
	minQty := 0.0

	return ToolDefinition{
		Name:        "action_profit",
		Description: "Estimate the hourly profit of repeating one gathering or production action with the character's current levels, equipment, house rooms, community buffs and drinks. Optionally scales to a fixed number of actions.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"action_hrid": {
					Type:        "string",
					Description: "Action hrid, e.g. /actions/milking/cow",
				},
				"quantity": {
					Type:        "number",
					Description: "Number of completions to scale the result to",
					Minimum:     &minQty,
				},
			},
			Required: []string{"action_hrid"},
		},
	}
}

func rewardTableValueTool() ToolDefinition {
	return ToolDefinition{
		Name:        "reward_table_value",
		Description: "Expected coin value of opening one container or reward table, following nested tables. Flags partial results when prices are missing.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"table_hrid": {
					Type:        "string",
					Description: "Reward table or openable item hrid",
				},
			},
			Required: []string{"table_hrid"},
		},
	}
}

func taskProfitTool() ToolDefinition {
	minCount := 0.0

	return ToolDefinition{
		Name:        "task_profit",
		Description: "Total profit of finishing a task: coin and token rewards plus the profit of the remaining actions. Combat tasks and tasks asked before prices load return a status instead of a number.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"quest_id": {
					Type:        "integer",
					Description: "Id of one of the character's current quests",
				},
				"wait_seconds": {
					Type:        "number",
					Description: "Wait up to this many seconds (max 60) for prices to load",
					Minimum:     &minCount,
				},
				"task": {
					Type:        "object",
					Description: "Explicit task descriptor, used when quest_id is absent",
					Properties: map[string]Property{
						"description":   {Type: "string", Description: "\"Skill - Target\", e.g. \"Milking - Cow\""},
						"action_hrid":   {Type: "string", Description: "Action hrid; wins over the description"},
						"goal_count":    {Type: "integer", Minimum: &minCount},
						"current_count": {Type: "integer", Minimum: &minCount},
						"coin_reward":   {Type: "integer", Minimum: &minCount},
						"token_reward":  {Type: "integer", Minimum: &minCount},
					},
				},
			},
		},
	}
}

func consumptionRatesTool() ToolDefinition {
	return ToolDefinition{
		Name:        "consumption_rates",
		Description: "Estimated hourly use and cost of the consumables seen in combat, plus the last battle summary.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"entity": {
					Type:        "string",
					Description: "Character id of a party member; defaults to the local character",
				},
			},
		},
	}
}

func myListingsTool() ToolDefinition {
	return ToolDefinition{
		Name:        "my_listings",
		Description: "The character's own marketplace orders.",
		InputSchema: JSONSchema{Type: "object"},
	}
}

func sessionStatusTool() ToolDefinition {
	return ToolDefinition{
		Name:        "session_status",
		Description: "Session identity, sync state and market readiness.",
		InputSchema: JSONSchema{Type: "object"},
	}
}

// decodeArgs unmarshals tool arguments. Missing arguments decode as {}.
func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

func (s *Server) toolActionProfit(ctx context.Context, args json.RawMessage) (any, error) {
	var req economy.ActionProfitRequest
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	return s.engine.ActionProfit(ctx, req)
}

func (s *Server) toolRewardTableValue(ctx context.Context, args json.RawMessage) (any, error) {
	var req economy.RewardTableValueRequest
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	return s.engine.RewardTableValue(ctx, req)
}

func (s *Server) toolTaskProfit(ctx context.Context, args json.RawMessage) (any, error) {
	var req economy.TaskProfitRequest
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	return s.engine.TaskProfit(ctx, req)
}

func (s *Server) toolConsumptionRates(ctx context.Context, args json.RawMessage) (any, error) {
	var req economy.ConsumptionRatesRequest
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	return s.engine.ConsumptionRates(ctx, req)
}
