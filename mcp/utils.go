package mcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	paymcp "github.com/paymcp/paymcp-go"
)

// PriceDisclosure is the sentence appended to a priced tool's description
func PriceDisclosure(price paymcp.Price) string {
	return fmt.Sprintf("This is a paid function: %s. Payment will be requested during execution.", price)
}

// DescribePriced appends the price disclosure to a tool description
func DescribePriced(description string, price paymcp.Price) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return PriceDisclosure(price)
	}
	return description + "\n\n" + PriceDisclosure(price)
}

// SessionKey derives the recovery key for a request: the transport session id,
// then the Mcp-Session-Id header, then the client-supplied _meta key. It returns
// "" when none is available, which is the case for stdio clients that do not send
// the _meta key.
func SessionKey(req *mcpsdk.CallToolRequest) string {
	if req == nil {
		return ""
	}
	if req.Session != nil {
		if id := req.Session.ID(); id != "" {
			return id
		}
	}
	if req.Extra != nil && req.Extra.Header != nil {
		if id := req.Extra.Header.Get(SessionIDHeader); id != "" {
			return id
		}
	}
	if req.Params != nil && req.Params.Meta != nil {
		if key, ok := req.Params.Meta[SessionKeyMetaKey].(string); ok {
			return strings.TrimSpace(key)
		}
	}
	return ""
}

// progressToken returns the request's progress token, or nil when the client did
// not ask for progress
func progressToken(req *mcpsdk.CallToolRequest) interface{} {
	if req == nil || req.Params == nil || req.Params.Meta == nil {
		return nil
	}
	return req.Params.Meta[progressTokenKey]
}

// supportsElicitation reports whether the client declared form elicitation when
// it initialized the session. A client declaring only URL elicitation cannot
// answer the confirmation form.
func supportsElicitation(session *mcpsdk.ServerSession) bool {
	params := session.InitializeParams()
	if params == nil || params.Capabilities == nil || params.Capabilities.Elicitation == nil {
		return false
	}
	caps := params.Capabilities.Elicitation
	return caps.Form != nil || caps.URL == nil
}

// isMethodNotFound reports whether a client rejected a request as an unknown
// method. Errors that did not come over the wire are matched by their text.
func isMethodNotFound(err error) bool {
	var wireErr *jsonrpc.Error
	if errors.As(err, &wireErr) {
		return wireErr.Code == jsonrpc.CodeMethodNotFound
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "method not found") ||
		strings.Contains(msg, "-32601") ||
		(strings.Contains(msg, "elicitation") && strings.Contains(msg, "not support"))
}
