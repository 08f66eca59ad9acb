package mcp

import (
	"encoding/json"
	"fmt"
)

// handleMessage dispatches one decoded Message, returning the response to
// write back (nil for notifications, which need no reply).
func (d *Dispatcher) handleMessage(msg *Message) *Message {
	if !msg.isRequest() {
		return nil
	}

	switch msg.Method {
	case "initialize":
		return newResultMessage(msg.ID, d.handleInitialize())
	case "tools/list":
		return newResultMessage(msg.ID, map[string]interface{}{"tools": d.Tools()})
	case "tools/call":
		return d.handleToolsCall(msg)
	case "ping":
		return newResultMessage(msg.ID, map[string]interface{}{})
	default:
		return newErrorMessage(msg.ID, MethodNotFound, fmt.Sprintf("method not found: %s", msg.Method))
	}
}

func (d *Dispatcher) handleInitialize() map[string]interface{} {
	return map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{"listChanged": true},
		},
		"serverInfo": map[string]interface{}{
			"name":    "kotadb",
			"version": "0.1.0",
		},
	}
}

// handleToolsCall implements tools/call. Every tool-level failure — missing
// params, invalid types, unknown tool, execution failure — is reported as
// JSON-RPC error -32603 (HTTP 200 at the transport layer), per §4.8.1's
// error code mapping.
func (d *Dispatcher) handleToolsCall(msg *Message) *Message {
	params, ok := msg.Params.(map[string]interface{})
	if !ok {
		return newErrorMessage(msg.ID, InvalidParams, "params must be an object")
	}
	name, ok := params["name"].(string)
	if !ok || name == "" {
		return newErrorMessage(msg.ID, InternalError, `"name" is required`)
	}
	args, _ := params["arguments"].(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := d.Call(name, args)
	if err != nil {
		return newErrorMessage(msg.ID, InternalError, err.Error())
	}

	return newResultMessage(msg.ID, wrapToolResult(result))
}

// wrapToolResult implements §4.8.1's tool result envelope: the tool's
// output is serialized to JSON and placed into a single text content
// block, so every client parses result.content[0].text as JSON.
func wrapToolResult(result interface{}) map[string]interface{} {
	text, err := json.Marshal(result)
	if err != nil {
		text = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": string(text)},
		},
	}
}
