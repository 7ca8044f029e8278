package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/rsned/idle-economy-server/internal/economy/engine"
	"github.com/rsned/idle-economy-server/internal/economy/mcp/mocks"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

var _ Engine = (*engine.Engine)(nil)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serve runs every line through the server and decodes the responses.
func serve(t *testing.T, eng Engine, lines ...string) []Response {
	t.Helper()
	s := NewServer(eng, quietLogger())
	var out bytes.Buffer
	if err := s.Serve(context.Background(), strings.NewReader(strings.Join(lines, "\n")), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	var resps []Response
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r Response
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		resps = append(resps, r)
	}
	return resps
}

func toolCall(id int, name, args string) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"tools/call","params":{"name":%q,"arguments":%s}}`, id, name, args)
}

func toolText(t *testing.T, r Response) (string, bool) {
	t.Helper()
	raw, err := json.Marshal(r.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var res ToolCallResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("content = %+v", res.Content)
	}
	return res.Content[0].Text, res.IsError
}

func TestInitializeAndList(t *testing.T) {
	ctrl := gomock.NewController(t)
	resps := serve(t, mocks.NewMockEngine(ctrl),
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	)
	if len(resps) != 2 {
		t.Fatalf("responses = %d, want 2 (notification unanswered)", len(resps))
	}

	raw, _ := json.Marshal(resps[1].Result)
	var list ToolsListResult
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	want := "action_profit,reward_table_value,task_profit,consumption_rates,my_listings,session_status"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("tools = %s, want %s", got, want)
	}
}

func TestToolCall_Dispatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)

	eng.EXPECT().
		ActionProfit(gomock.Any(), economy.ActionProfitRequest{ActionHrid: "/actions/milking/cow", Quantity: 10}).
		Return(&economy.ActionProfitResponse{Display: "1,000 coins/h"}, nil)
	eng.EXPECT().
		RewardTableValue(gomock.Any(), economy.RewardTableValueRequest{TableHrid: "/items/chest"}).
		Return(&economy.RewardTableValueResponse{Error: "unknown reward table"}, nil)
	eng.EXPECT().
		TaskProfit(gomock.Any(), economy.TaskProfitRequest{QuestID: 7}).
		Return(&economy.TaskProfitResponse{Profit: &economy.TaskProfit{Status: economy.TaskCombat}}, nil)
	eng.EXPECT().
		ConsumptionRates(gomock.Any(), economy.ConsumptionRatesRequest{}).
		Return(&economy.ConsumptionRatesResponse{Entity: "@local"}, nil)
	eng.EXPECT().MyListings(gomock.Any()).Return(&economy.MyListingsResponse{}, nil)
	eng.EXPECT().SessionStatus(gomock.Any()).Return(&economy.SessionStatusResponse{State: "ready"}, nil)

	resps := serve(t, eng,
		toolCall(1, "action_profit", `{"action_hrid":"/actions/milking/cow","quantity":10}`),
		toolCall(2, "reward_table_value", `{"table_hrid":"/items/chest"}`),
		toolCall(3, "task_profit", `{"quest_id":7}`),
		toolCall(4, "consumption_rates", `null`),
		toolCall(5, "my_listings", `{}`),
		toolCall(6, "session_status", `{}`),
	)
	if len(resps) != 6 {
		t.Fatalf("responses = %d, want 6", len(resps))
	}
	for _, r := range resps {
		if r.Error != nil {
			t.Fatalf("id %v: error %+v", r.ID, r.Error)
		}
	}

	text, isErr := toolText(t, resps[0])
	if isErr || !strings.Contains(text, "1,000 coins/h") {
		t.Errorf("action_profit text = %s, isError=%v", text, isErr)
	}
	if _, isErr := toolText(t, resps[1]); !isErr {
		t.Errorf("reward_table_value with error not flagged")
	}
	if text, _ := toolText(t, resps[2]); !strings.Contains(text, `"combat"`) {
		t.Errorf("task_profit text = %s", text)
	}
	if text, _ := toolText(t, resps[5]); !strings.Contains(text, `"ready"`) {
		t.Errorf("session_status text = %s", text)
	}
}

func TestToolCall_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	eng.EXPECT().
		ActionProfit(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("%w: action_hrid is required", engine.ErrInvalidRequest))
	eng.EXPECT().
		SessionStatus(gomock.Any()).
		Return(nil, errors.New("store closed"))

	resps := serve(t, eng,
		`not json`,
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
		toolCall(2, "nope", `{}`),
		toolCall(3, "action_profit", `{"action_hrid":5}`),
		toolCall(4, "action_profit", `{}`),
		toolCall(5, "session_status", `{}`),
	)
	want := []int{ErrCodeParse, ErrCodeMethodNotFound, ErrCodeInvalidParams, ErrCodeInvalidParams, ErrCodeInvalidParams, ErrCodeInternal}
	if len(resps) != len(want) {
		t.Fatalf("responses = %d, want %d", len(resps), len(want))
	}
	for i, r := range resps {
		if r.Error == nil || r.Error.Code != want[i] {
			t.Errorf("response %d = %+v, want code %d", i, r.Error, want[i])
		}
	}
}

func TestServe_StopsOnCancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewServer(mocks.NewMockEngine(ctrl), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Serve(ctx, strings.NewReader(""), io.Discard); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
}
