package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/draftagent/config"
)

// ScriptedChatModel replays canned responses in order and records every call.
type ScriptedChatModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	errs      []error
	calls     [][]*schema.Message
}

func NewScriptedChatModel(responses ...*schema.Message) *ScriptedChatModel {
	return &ScriptedChatModel{responses: responses}
}

// FailNext makes the next call return err instead of a response.
func (m *ScriptedChatModel) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
}

func (m *ScriptedChatModel) Push(responses ...*schema.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
}

func (m *ScriptedChatModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *ScriptedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, input)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("scripted chat model: no response left")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *ScriptedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ScriptedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// ToolCall builds an assistant message calling name with args encoded as JSON.
func ToolCall(name string, args any) *schema.Message {
	encoded, err := sonic.MarshalString(args)
	if err != nil {
		panic(err)
	}
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call_" + name,
			Type:     "function",
			Function: schema.FunctionCall{Name: name, Arguments: encoded},
		}},
	}
}

func Text(content string) *schema.Message {
	return schema.AssistantMessage(content, nil)
}

// InitChatModel returns a real chat model for live tests, configured from
// DRAFTAGENT_CONFIG (default ../config.yaml) and the DRAFTAGENT_* environment.
func InitChatModel(t *testing.T) model.ToolCallingChatModel {
	t.Helper()
	if os.Getenv("DRAFTAGENT_RUN_LIVE_TESTS") != "1" {
		t.Skip("set DRAFTAGENT_RUN_LIVE_TESTS=1 to run live LLM tests")
		return nil
	}
	path := os.Getenv("DRAFTAGENT_CONFIG")
	if path == "" {
		path = "../config.yaml"
	}
	if _, err := os.Stat(path); err != nil {
		path = ""
	}
	conf, err := config.Load(path)
	if err != nil {
		t.Skipf("failed to load config: %v", err)
		return nil
	}
	if conf.LLM.APIKey == "" {
		t.Skip("llm api_key is empty")
		return nil
	}
	chatModel, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:  conf.LLM.APIKey,
		Model:   conf.LLM.Model,
		BaseURL: conf.LLM.BaseURL,
	})
	if err != nil {
		t.Fatalf("failed to init chat model: %v", err)
		return nil
	}
	return chatModel
}
