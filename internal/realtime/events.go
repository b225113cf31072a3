package realtime

// Outbound event types.
const (
	EventAgentMessage   = "agent_message"
	EventScoringStarted = "scoring_started"
	EventLiveSignal     = "live_signal"
	EventAIInterrupt    = "ai_interrupt"
	EventPong           = "pong"
	EventError          = "error"
	EventScoreReady     = "score_ready"
)

// AgentMessage is spoken/shown agent text. Done marks the closing message.
type AgentMessage struct {
	Type       string `json:"type"`
	QuestionID *int64 `json:"question_id,omitempty"`
	Text       string `json:"text"`
	AudioURL   string `json:"audio_url,omitempty"`
	Done       bool   `json:"done,omitempty"`
}

// NewAgentMessage builds an agent message. questionID <= 0 omits the id.
func NewAgentMessage(questionID int64, text, audioURL string) AgentMessage {
	m := AgentMessage{Type: EventAgentMessage, Text: text, AudioURL: audioURL}
	if questionID > 0 {
		m.QuestionID = &questionID
	}
	return m
}

// NewClosingMessage builds the final agent message of an interview.
func NewClosingMessage(text string) AgentMessage {
	return AgentMessage{Type: EventAgentMessage, Text: text, Done: true}
}

type ScoringStarted struct {
	Type       string `json:"type"`
	TurnID     int64  `json:"turn_id"`
	QuestionID int64  `json:"question_id"`
	TaskID     string `json:"task_id"`
}

func NewScoringStarted(turnID, questionID int64, taskID string) ScoringStarted {
	return ScoringStarted{Type: EventScoringStarted, TurnID: turnID, QuestionID: questionID, TaskID: taskID}
}

type LiveSignal struct {
	Type        string `json:"type"`
	QuestionID  int64  `json:"question_id"`
	Confidence  string `json:"confidence"`
	WordCount   int    `json:"word_count"`
	FillerCount int    `json:"filler_count"`
	Drift       string `json:"drift,omitempty"`
}

type AIInterrupt struct {
	Type       string `json:"type"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	Reason     string `json:"reason"`
}

type Pong struct {
	Type string `json:"type"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) Error {
	return Error{Type: EventError, Message: message}
}

// ScoreReady is pushed once a question's score has been persisted.
type ScoreReady struct {
	Type          string   `json:"type"`
	QuestionID    int64    `json:"question_id"`
	Technical     int      `json:"technical"`
	Communication int      `json:"communication"`
	Completeness  int      `json:"completeness"`
	Overall       float64  `json:"overall"`
	Summary       string   `json:"summary"`
	OverallScore  *float64 `json:"overall_score,omitempty"`
}
