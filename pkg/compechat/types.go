package compechat

import "encoding/json"

// MessagePayload is one message record as delivered to clients, either in a
// fetch response or in a server push. The stamp field carries the resolved
// stamp URL, never the stamp id.
type MessagePayload struct {
	SendType  int     `json:"send_type"`
	MessageID int64   `json:"message_id"`
	CompeNo   int     `json:"compe_no"`
	MemberID  string  `json:"member_id"`
	Time      int64   `json:"time"`
	Message   *string `json:"message"`
	Stamp     *string `json:"stamp"`
}

// StampPayload is one stamp catalog entry as delivered to clients.
type StampPayload struct {
	StampID  int64  `json:"stamp_id"`
	StampURL string `json:"stamp_url"`
}

// Result is the outgoing response envelope. Status is always present and
// Method echoes the originating request, except for pushed messages which
// carry MethodMessagesFromSend so clients can tell pushes from responses.
type Result struct {
	Status   Status
	Method   Method
	Messages []*MessagePayload
	Stamps   []*StampPayload
}

// MarshalJSON keeps the payload keys out of plain status envelopes while an
// empty fetch result still serializes as "messages": []. A nil slice means
// the response carries no payload of that kind.
func (r *Result) MarshalJSON() ([]byte, error) {
	envelope := map[string]any{
		"status": r.Status,
		"method": r.Method,
	}
	if r.Messages != nil {
		envelope["messages"] = r.Messages
	}
	if r.Stamps != nil {
		envelope["stamps"] = r.Stamps
	}
	return json.Marshal(envelope)
}

// resultErrorJSON is the hand-built fallback envelope used when a result
// cannot be serialized; it must never itself depend on the encoder.
const resultErrorJSON = `{"status":90002,"method":0}`

// NewResult creates an envelope with the given status and no payload.
func NewResult(status Status) *Result {
	return &Result{Status: status}
}

// Encode serializes the envelope. When marshalling fails the fallback
// ResultError envelope is returned together with the error, so the caller
// can log the fault but still answer the client.
func (r *Result) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte(resultErrorJSON), err
	}
	return data, nil
}
