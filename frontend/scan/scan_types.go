package scan

import (
	"packtrack/infrastructure/lifecycle"
	"packtrack/infrastructure/scansession"
)

type CreateSessionRequest struct {
	Workflow  string `json:"workflow"`
	Mode      string `json:"mode"`
	Encargado string `json:"encargado"`
	Area      string `json:"area"`
}

// StartRequest selects a channel. DecoderStopped acknowledges that the
// client's camera loop has halted when switching away from the camera.
type StartRequest struct {
	Channel        string `json:"channel"`
	Encargado      string `json:"encargado"`
	DecoderStopped bool   `json:"decoder_stopped"`
}

type StopRequest struct {
	DecoderStopped bool `json:"decoder_stopped"`
}

// DecodeRequest is one camera decode result.
type DecodeRequest struct {
	Text   string `json:"text"`
	Format string `json:"format"`
}

type KeysRequest struct {
	Keys []string `json:"keys"`
}

type KeysResponse struct {
	Outcomes []scansession.Outcome `json:"outcomes"`
	Pending  bool                  `json:"pending"`
}

type ManualRequest struct {
	Code string `json:"code"`
}

type ResolveRequest struct {
	Confirmed bool `json:"confirmed"`
}

type ModeRequest struct {
	Mode string `json:"mode"`
}

type AssociateRequest struct {
	Packer string `json:"packer"`
}

// Failure is one code a batch commit could not move.
type Failure struct {
	Code      string           `json:"code"`
	From      lifecycle.Status `json:"from"`
	Attempted lifecycle.Verb   `json:"attempted"`
	Error     string           `json:"error"`
}

type CommitResponse struct {
	Updated []string  `json:"updated"`
	Failed  []Failure `json:"failed"`
}

func NewCommitResponse(res lifecycle.BatchResult) CommitResponse {
	out := CommitResponse{Updated: res.Updated, Failed: make([]Failure, 0, len(res.Failed))}
	if out.Updated == nil {
		out.Updated = []string{}
	}
	for _, f := range res.SortedFailures() {
		out.Failed = append(out.Failed, Failure{Code: f.Code, From: f.From, Attempted: f.Attempted, Error: f.Error()})
	}
	return out
}
