package domain

// State is the dialogue state of a chat session.
type State string

const (
	// StateCollect waits for a new question.
	StateCollect State = "collect"
	// StateConfirm waits for a yes/no on a pending query.
	StateConfirm State = "confirm"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Format is a downloadable artifact format tag.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

// ParseFormat maps a download tag to a Format.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case FormatCSV, FormatExcel:
		return Format(s), true
	}
	return "", false
}

// Message is a single transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session holds one user's conversational context.
type Session struct {
	Messages        []Message         `json:"messages"`
	State           State             `json:"state"`
	PendingSQL      string            `json:"pending_sql,omitempty"`
	PendingQuestion string            `json:"pending_question,omitempty"`
	LatestFiles     map[Format]string `json:"latest_files,omitempty"`
}

// Valid reports whether the pending query fields agree with the state.
func (s *Session) Valid() bool {
	switch s.State {
	case StateCollect:
		return s.PendingSQL == "" && s.PendingQuestion == ""
	case StateConfirm:
		return s.PendingSQL != ""
	default:
		return false
	}
}

// Append adds a message to the transcript.
func (s *Session) Append(role Role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// Clone returns a copy that shares no mutable state with s.
func (s Session) Clone() Session {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	if s.LatestFiles != nil {
		out.LatestFiles = make(map[Format]string, len(s.LatestFiles))
		for k, v := range s.LatestFiles {
			out.LatestFiles[k] = v
		}
	}
	return out
}

// ClearPending drops the pending query and returns to collect.
func (s *Session) ClearPending() {
	s.State = StateCollect
	s.PendingSQL = ""
	s.PendingQuestion = ""
}
