package usecase

import (
	"strings"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
)

// CommandKind 事件分類
type CommandKind uint8

const (
	// CommandIgnore 不需要回覆 (只確保帳戶存在)
	CommandIgnore CommandKind = iota
	// CommandStart /start [推薦碼]
	CommandStart
	// CommandAction 選單動作或對應的文字指令
	CommandAction
)

func (k CommandKind) String() string {
	switch k {
	case CommandStart:
		return "start"
	case CommandAction:
		return "action"
	default:
		return "ignore"
	}
}

// Command 分類後的事件
type Command struct {
	Kind     CommandKind
	Identity string
	// RefCode: /start 帶的推薦碼
	RefCode string
	// Action: CommandAction 的動作
	Action domain.ActionKind
}

// Classify 把事件分類成 start / action / ignore，不會讀寫任何狀態
func Classify(ev domain.NormalizedEvent) Command {
	cmd := Command{Kind: CommandIgnore, Identity: ev.Identity}
	switch ev.Kind {
	case domain.EventKindCallback:
		cmd.Kind = CommandAction
		cmd.Action = domain.ParseAction(ev.CallbackData)
	case domain.EventKindMessage:
		fields := strings.Fields(ev.Text)
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
			return cmd
		}
		// 群組裡的指令會帶 @botname
		name, _, _ := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
		if name == "start" {
			cmd.Kind = CommandStart
			if len(fields) > 1 {
				cmd.RefCode = fields[1]
			}
			return cmd
		}
		if action := domain.ParseAction(name); action != domain.ActionUnknown {
			cmd.Kind = CommandAction
			cmd.Action = action
		}
	}
	return cmd
}
