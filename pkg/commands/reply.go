package commands

import (
	"encoding/json"

	"github.com/samvad-hq/webview-relay/pkg/relay"
)

// KindInternal labels failures that did not come from the relay taxonomy.
const KindInternal = "internal"

// Reply is the envelope both bridges write for every invocation.
type Reply struct {
	ID     json.RawMessage `json:"id,omitempty"`
	OK     bool            `json:"ok"`
	Result any             `json:"result,omitempty"`
	Error  *ReplyError     `json:"error,omitempty"`
}

// ReplyError carries the failure kind and its text.
type ReplyError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewReply wraps the outcome of an invocation.
func NewReply(result any, err error) Reply {
	if err != nil {
		return Reply{Error: &ReplyError{Kind: errorKind(err), Message: err.Error()}}
	}
	return Reply{OK: true, Result: result}
}

func errorKind(err error) string {
	if kind := relay.KindOf(err); kind != "" {
		return string(kind)
	}
	return KindInternal
}
