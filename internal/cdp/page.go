package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// isolatedWorldName names the execution context created by EvaluateInFrame.
const isolatedWorldName = "cdpctl"

// TargetInfo describes an attachable target.
type TargetInfo struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Attached bool   `json:"attached"`
}

// VersionInfo is the reply of Browser.getVersion.
type VersionInfo struct {
	ProtocolVersion string `json:"protocolVersion"`
	Product         string `json:"product"`
	Revision        string `json:"revision"`
	UserAgent       string `json:"userAgent"`
	JSVersion       string `json:"jsVersion"`
}

// NavigateResult is the reply of Page.navigate.
type NavigateResult struct {
	FrameID   string `json:"frameId"`
	LoaderID  string `json:"loaderId,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

// Version returns browser version information.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	result, err := c.SendContext(ctx, "Browser.getVersion", nil)
	if err != nil {
		return nil, err
	}
	var info VersionInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, fmt.Errorf("parse version: %w", err)
	}
	return &info, nil
}

// Targets returns the page targets known to the browser.
func (c *Client) Targets(ctx context.Context) ([]TargetInfo, error) {
	result, err := c.SendContext(ctx, "Target.getTargets", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		TargetInfos []TargetInfo `json:"targetInfos"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}

	pages := make([]TargetInfo, 0, len(resp.TargetInfos))
	for _, t := range resp.TargetInfos {
		if t.Type == "page" {
			pages = append(pages, t)
		}
	}
	return pages, nil
}

// AttachToPage attaches to a target with flattened session semantics and
// returns the session id for scoped commands.
func (c *Client) AttachToPage(ctx context.Context, targetID string) (string, error) {
	result, err := c.SendContext(ctx, "Target.attachToTarget", map[string]any{
		"targetId": targetID,
		"flatten":  true,
	})
	if err != nil {
		return "", err
	}

	sessionID := gjson.GetBytes(result, "sessionId").String()
	if sessionID == "" {
		return "", fmt.Errorf("attach to %s: reply has no sessionId", targetID)
	}
	return sessionID, nil
}

// Navigate starts navigation of the session's page to url. It returns once
// the command is acknowledged; it does not wait for the page to load.
func (c *Client) Navigate(ctx context.Context, sessionID, url string) (*NavigateResult, error) {
	result, err := c.SendToSession(ctx, sessionID, "Page.navigate", map[string]any{
		"url": url,
	})
	if err != nil {
		return nil, err
	}

	var nav NavigateResult
	if err := json.Unmarshal(result, &nav); err != nil {
		return nil, fmt.Errorf("parse navigate response: %w", err)
	}
	return &nav, nil
}

// Evaluate evaluates expression in the session's page, awaiting a returned
// promise, and returns the result by value. The value is nil when the
// expression evaluates to undefined; values JSON cannot represent, such as
// NaN or a bigint, are returned as a JSON string like "NaN" or "10n".
func (c *Client) Evaluate(ctx context.Context, sessionID, expression string) (json.RawMessage, error) {
	return c.evaluate(ctx, sessionID, map[string]any{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  true,
	})
}

// EvaluateInFrame creates an isolated execution context bound to frameID and
// evaluates expression inside it.
func (c *Client) EvaluateInFrame(ctx context.Context, sessionID, frameID, expression string) (json.RawMessage, error) {
	result, err := c.SendToSession(ctx, sessionID, "Page.createIsolatedWorld", map[string]any{
		"frameId":             frameID,
		"worldName":           isolatedWorldName,
		"grantUniveralAccess": true,
	})
	if err != nil {
		return nil, err
	}

	contextID := gjson.GetBytes(result, "executionContextId")
	if !contextID.Exists() {
		return nil, fmt.Errorf("isolated world for frame %s: reply has no executionContextId", frameID)
	}

	return c.evaluate(ctx, sessionID, map[string]any{
		"expression":    expression,
		"contextId":     contextID.Int(),
		"returnByValue": true,
		"awaitPromise":  true,
	})
}

func (c *Client) evaluate(ctx context.Context, sessionID string, params map[string]any) (json.RawMessage, error) {
	result, err := c.SendToSession(ctx, sessionID, "Runtime.evaluate", params)
	if err != nil {
		return nil, err
	}

	if details := gjson.GetBytes(result, "exceptionDetails"); details.Exists() {
		return nil, &ExceptionError{
			Text:        details.Get("text").String(),
			Description: details.Get("exception.description").String(),
			Line:        int(details.Get("lineNumber").Int()),
			Column:      int(details.Get("columnNumber").Int()),
		}
	}

	value := gjson.GetBytes(result, "result.value")
	if value.Exists() {
		return json.RawMessage(value.Raw), nil
	}

	// NaN, Infinity, -0 and bigints have no JSON form; they come back as text.
	if u := gjson.GetBytes(result, "result.unserializableValue"); u.Exists() {
		return json.RawMessage(strconv.Quote(u.String())), nil
	}
	return nil, nil
}

// FrameTree returns the session's frame tree exactly as reported.
func (c *Client) FrameTree(ctx context.Context, sessionID string) (json.RawMessage, error) {
	result, err := c.SendToSession(ctx, sessionID, "Page.getFrameTree", nil)
	if err != nil {
		return nil, err
	}

	tree := gjson.GetBytes(result, "frameTree")
	if !tree.Exists() {
		return nil, fmt.Errorf("get frame tree: reply has no frameTree")
	}
	return json.RawMessage(tree.Raw), nil
}

// Frame is one node of a frame tree.
type Frame struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"`
	Name     string `json:"name,omitempty"`
	URL      string `json:"url"`
}

// FlattenFrames lists every frame of a tree returned by FrameTree,
// parents before children.
func FlattenFrames(tree json.RawMessage) ([]Frame, error) {
	var node frameNode
	if err := json.Unmarshal(tree, &node); err != nil {
		return nil, fmt.Errorf("parse frame tree: %w", err)
	}
	var frames []Frame
	node.walk(func(f Frame) {
		frames = append(frames, f)
	})
	return frames, nil
}

type frameNode struct {
	Frame       Frame       `json:"frame"`
	ChildFrames []frameNode `json:"childFrames"`
}

func (n frameNode) walk(fn func(Frame)) {
	fn(n.Frame)
	for _, child := range n.ChildFrames {
		child.walk(fn)
	}
}
