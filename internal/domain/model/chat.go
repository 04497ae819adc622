package model

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message        string          `json:"message"`
	UserName       string          `json:"userName,omitempty"`
	IsFirstMessage bool            `json:"isFirstMessage,omitempty"`
	Diagnostic     *DiagnosticInfo `json:"diagnosticInfo,omitempty"`
}

// DiagnosticInfo describes the calling client. It is logged and never reaches the prompt.
type DiagnosticInfo struct {
	IsMobile    bool   `json:"isMobile"`
	BrowserName string `json:"browserName,omitempty"`
	ScreenWidth int    `json:"screenWidth,omitempty"`
	Connection  string `json:"connection,omitempty"`
}

// ChatReply is the success body of POST /chat.
type ChatReply struct {
	Reply        string `json:"reply"`
	DetectedName string `json:"detectedName,omitempty"`
}
