package engine

import (
	"context"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/hostbridge/hostbridge/internal/host"
	"github.com/hostbridge/hostbridge/internal/protocol"
	"github.com/hostbridge/hostbridge/internal/transport"
)

// handleEnvelope is the engine's message listener. Envelopes from any
// origin other than the attached surface are silently ignored;
// malformed payloads are logged and dropped.
func (e *Engine) handleEnvelope(env transport.Envelope) {
	e.mu.Lock()
	surface := e.surface
	e.mu.Unlock()

	if surface == nil || env.Origin != surface.Origin() {
		return
	}

	msg, err := protocol.Decode(env.Data)
	if err != nil {
		e.log.Warn("dropping malformed message", zap.Error(err))
		return
	}

	switch msg.Kind() {
	case protocol.KindResponse:
		e.handleResponse(msg)
	case protocol.KindRequest:
		// Requests may block on host-capability calls; service each on
		// its own goroutine so responses keep flowing.
		go e.serveRequest(surface, msg)
	case protocol.KindNotification:
		e.handleNotification(msg)
	default:
		e.log.Warn("dropping message with invalid shape")
	}
}

// handleResponse matches a guest response to its pending request by
// identifier alone; arrival order does not matter.
func (e *Engine) handleResponse(msg *protocol.Message) {
	id, ok := msg.NumericID()
	if !ok {
		e.log.Warn("dropping response with non-numeric id")
		return
	}
	pc := e.take(id)
	if pc == nil {
		e.log.Debug("ignoring stale or unknown response", zap.Int64("id", id))
		return
	}
	if msg.Error != nil {
		pc.resolve(callResult{err: msg.Error})
		return
	}
	pc.resolve(callResult{result: msg.Result})
}

// serveRequest dispatches one guest request and posts exactly one
// response, success or error. Handler failures become -32603 error
// responses; unrecognized methods become -32601.
func (e *Engine) serveRequest(surface transport.Surface, msg *protocol.Message) {
	resp := e.dispatchRequest(msg)

	encoded, err := resp.Encode()
	if err != nil {
		e.log.Error("failed to encode response", zap.String("method", msg.Method), zap.Error(err))
		encoded, _ = protocol.NewErrorResponse(msg.ID, protocol.CodeInternalError, "response encoding failed").Encode()
	}
	if err := surface.Post(encoded); err != nil {
		e.log.Warn("failed to post response",
			zap.String("method", msg.Method), zap.Error(err))
	}
}

func (e *Engine) dispatchRequest(msg *protocol.Message) *protocol.Message {
	ctx := context.Background()

	switch msg.Method {
	case protocol.MethodCallTool:
		var params protocol.CallToolParams
		if err := sonic.Unmarshal(msg.Params, &params); err != nil {
			return e.internalError(msg, "invalid tools/call params: "+err.Error())
		}
		if e.caps.Tools == nil {
			return e.internalError(msg, "tool invocation is not available")
		}
		result, err := e.caps.Tools.CallTool(ctx, params.Name, params.Arguments)
		if err != nil {
			return e.internalError(msg, err.Error())
		}
		return e.successResponse(msg, result)

	case protocol.MethodReadResource:
		var params protocol.ReadResourceParams
		if err := sonic.Unmarshal(msg.Params, &params); err != nil {
			return e.internalError(msg, "invalid resources/read params: "+err.Error())
		}
		if e.caps.Resources == nil {
			return e.internalError(msg, "resource reading is not available")
		}
		result, err := e.caps.Resources.ReadResource(ctx, params.URI)
		if err != nil {
			return e.internalError(msg, err.Error())
		}
		return e.successResponse(msg, result)

	case protocol.MethodOpenLink:
		var params protocol.OpenLinkParams
		if err := sonic.Unmarshal(msg.Params, &params); err != nil {
			return e.internalError(msg, "invalid ui/open-link params: "+err.Error())
		}
		target := params.Target
		if target == "" {
			target = "_blank"
		}
		open := e.caps.OpenLink
		if open == nil {
			open = host.OpenExternal
		}
		if err := open(ctx, params.URL, target); err != nil {
			return e.internalError(msg, err.Error())
		}
		return e.successResponse(msg, protocol.OpenLinkResult{Success: true})

	default:
		e.recordInbound(msg.Method, "method_not_found")
		return protocol.NewErrorResponse(msg.ID, protocol.CodeMethodNotFound, "method not found: "+msg.Method)
	}
}

func (e *Engine) successResponse(msg *protocol.Message, result any) *protocol.Message {
	resp, err := protocol.NewResponse(msg.ID, result)
	if err != nil {
		return e.internalError(msg, "marshal result: "+err.Error())
	}
	e.recordInbound(msg.Method, "ok")
	return resp
}

func (e *Engine) internalError(msg *protocol.Message, detail string) *protocol.Message {
	e.recordInbound(msg.Method, "error")
	return protocol.NewErrorResponse(msg.ID, protocol.CodeInternalError, detail)
}

// handleNotification forwards recognized guest notifications to the
// optional host callbacks; unrecognized methods are logged and ignored.
func (e *Engine) handleNotification(msg *protocol.Message) {
	switch msg.Method {
	case protocol.MethodSizeChanged:
		var params protocol.SizeChangedParams
		if err := sonic.Unmarshal(msg.Params, &params); err != nil {
			e.log.Warn("dropping malformed size-changed notification", zap.Error(err))
			return
		}
		if e.caps.OnSizeChanged != nil {
			e.caps.OnSizeChanged(params.Width, params.Height)
		}

	case protocol.MethodMessage:
		var params protocol.MessageParams
		if err := sonic.Unmarshal(msg.Params, &params); err != nil {
			e.log.Warn("dropping malformed conversation message", zap.Error(err))
			return
		}
		if e.caps.OnMessage != nil {
			e.caps.OnMessage(params.Role, params.Content)
		}

	default:
		e.log.Debug("ignoring unrecognized notification", zap.String("method", msg.Method))
	}
}
