package domain

// EventKind 平台事件種類
type EventKind string

const (
	// EventKindMessage 一般訊息 (含指令)
	EventKindMessage EventKind = "message"
	// EventKindCallback 按下選單按鈕
	EventKindCallback EventKind = "callback"
)

// NormalizedEvent 由傳輸層轉換後的平台事件
type NormalizedEvent struct {
	// UpdateID: 平台的事件編號，用來過濾重送，0 代表沒有
	UpdateID int64 `json:"update_id,omitempty"`
	// Identity: 使用者 ID
	Identity string `json:"identity"`
	// Kind: message / callback
	Kind EventKind `json:"kind"`
	// Text: 訊息內容 (message)
	Text string `json:"text,omitempty"`
	// CallbackData: 按鈕的 action token (callback)
	CallbackData string `json:"callback_data,omitempty"`
	// Timestamp: 事件時間 (Unix 秒)，0 代表使用伺服器時間
	Timestamp int64 `json:"timestamp"`
}

// ActionKind 選單動作
type ActionKind string

const (
	ActionEarn        ActionKind = "earn"
	ActionBalance     ActionKind = "balance"
	ActionLeaderboard ActionKind = "leaderboard"
	ActionReferrals   ActionKind = "referrals"
	ActionWithdraw    ActionKind = "withdraw"
	ActionHelp        ActionKind = "help"
	ActionUnknown     ActionKind = "unknown"
)

// ParseAction 把 token 轉成 ActionKind，不認得的都是 ActionUnknown
func ParseAction(token string) ActionKind {
	switch kind := ActionKind(token); kind {
	case ActionEarn, ActionBalance, ActionLeaderboard, ActionReferrals, ActionWithdraw, ActionHelp:
		return kind
	default:
		return ActionUnknown
	}
}

// Button 選單按鈕
type Button struct {
	Label  string     `json:"label"`
	Action ActionKind `json:"action"`
}

// ButtonGrid 按鈕排列，一個 slice 是一列
type ButtonGrid [][]Button

// MainMenu 每次回覆都附上的固定選單
var MainMenu = ButtonGrid{
	{{Label: "💰 Earn", Action: ActionEarn}, {Label: "💳 Balance", Action: ActionBalance}},
	{{Label: "🏆 Leaderboard", Action: ActionLeaderboard}, {Label: "👥 Referrals", Action: ActionReferrals}},
	{{Label: "🏧 Withdraw", Action: ActionWithdraw}, {Label: "❓ Help", Action: ActionHelp}},
}

// Response 要送給使用者的訊息
type Response struct {
	// Identity: 收件人
	Identity string `json:"identity"`
	// Text: HTML 格式的內容
	Text string `json:"text"`
	// Menu: nil 代表不附選單 (例如推薦通知)
	Menu ButtonGrid `json:"menu,omitempty"`
}
