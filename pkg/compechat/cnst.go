package compechat

// Method identifies the request kind carried in the "method" field of a
// client frame. MethodMessagesFromSend is only ever sent by the server to
// tag pushed messages and is not accepted as a request.
type Method int

const (
	MethodUnknown          Method = 0
	MethodInit             Method = 1
	MethodGetMessages      Method = 2
	MethodSendMessage      Method = 3
	MethodGetStamps        Method = 4
	MethodGetNewMessages   Method = 5
	MethodMessagesFromSend Method = 99
)

// ParseMethod resolves a wire method code to a dispatchable request kind.
func ParseMethod(code int64) (Method, bool) {
	switch Method(code) {
	case MethodInit, MethodGetMessages, MethodSendMessage, MethodGetStamps, MethodGetNewMessages:
		return Method(code), true
	default:
		return MethodUnknown, false
	}
}

// String returns the wire name of the method, which doubles as the key of
// the method's parameter block in the request envelope.
func (m Method) String() string {
	switch m {
	case MethodInit:
		return "init"
	case MethodGetMessages:
		return "get_messages"
	case MethodSendMessage:
		return "send_message"
	case MethodGetStamps:
		return "get_stamps"
	case MethodGetNewMessages:
		return "get_new_messages"
	case MethodMessagesFromSend:
		return "messages_from_send"
	default:
		return "unknown"
	}
}

// Status is the result code returned in every response envelope. The values
// are part of the wire protocol and must not change.
type Status int

const (
	Success         Status = 0
	LoginError      Status = 90000
	ParamError      Status = 90001
	ResultError     Status = 90002
	MethodError     Status = 90003
	RepositoryError Status = 90004
	ValidationError Status = 90100
	ServerError     Status = 99999
)

// ReceptLevel controls which non-broadcast messages reach a participant.
type ReceptLevel int

const (
	// ReceptGallery receives broadcast and direct messages only.
	ReceptGallery ReceptLevel = 1
	// ReceptAll additionally receives event-wide messages.
	ReceptAll ReceptLevel = 2
)

// ParseReceptLevel resolves a wire reception level code.
func ParseReceptLevel(code int64) (ReceptLevel, bool) {
	switch ReceptLevel(code) {
	case ReceptGallery, ReceptAll:
		return ReceptLevel(code), true
	default:
		return 0, false
	}
}

// SendType is the visibility class of a message.
type SendType int

const (
	// SendAll is visible to every participant of the event.
	SendAll SendType = 1
	// SendCompe is visible to participants with reception level ReceptAll.
	SendCompe SendType = 2
	// SendUser is visible to the destination participant and the sender.
	SendUser SendType = 3
)

// ParseSendType resolves a wire send type code.
func ParseSendType(code int64) (SendType, bool) {
	switch SendType(code) {
	case SendAll, SendCompe, SendUser:
		return SendType(code), true
	default:
		return 0, false
	}
}

// String returns a stable label for metrics and logs.
func (t SendType) String() string {
	switch t {
	case SendAll:
		return "all"
	case SendCompe:
		return "compe"
	case SendUser:
		return "user"
	default:
		return "unknown"
	}
}
