package cursor

import "encoding/json"

// workspaceManifest is the optional workspace.json next to a
// workspace's state.vscdb, recovering the project path.
type workspaceManifest struct {
	Folder string `json:"folder"`
}

// composerHeader is one entry of a composer manifest's
// fullConversationHeadersOnly list: a pointer to a bubble row rather
// than the message body itself.
type composerHeader struct {
	BubbleID string `json:"bubbleId"`
	Type     int    `json:"type"`
}

// composerManifest is the session-level record read from either
// composer.composerData (modern) or workbench.panel.aichat entries
// (legacy). Older captures sometimes embed the conversation directly
// instead of pointing at bubble rows.
type composerManifest struct {
	ComposerID                  string           `json:"composerId"`
	Name                        string           `json:"name"`
	CreatedAt                   int64            `json:"createdAt"`
	LastUpdatedAt               int64            `json:"lastUpdatedAt"`
	FullConversationHeadersOnly []composerHeader `json:"fullConversationHeadersOnly"`
	Conversation                []bubbleData     `json:"conversation"`
}

// composerDataWrapper is the shape of the composer.composerData
// ItemTable value: a list of composer manifests, one per session.
type composerDataWrapper struct {
	AllComposers []composerManifest `json:"allComposers"`
}

// legacyChatData is workbench.panel.aichat.view.aichat.chatdata: a
// flat list of composer-like tabs, each carrying its own conversation.
type legacyChatData struct {
	Tabs []struct {
		TabID        string       `json:"tabId"`
		Conversation []bubbleData `json:"conversation"`
	} `json:"tabs"`
}

// bubbleData is one message row, whether read directly from a
// bubbleId:<sessionId>:<bubbleId> key or embedded in a manifest.
type bubbleData struct {
	Type      int             `json:"type"` // 1 = user, 2 = assistant
	Text      string          `json:"text"`
	RichText  json.RawMessage `json:"richText"`
	Content   json.RawMessage `json:"content"`
	Message   *struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	Timestamp int64 `json:"timestamp"` // epoch milliseconds
	ToolName  string `json:"toolName"`
}
