package webhook

import (
	"strconv"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
)

// Normalize 把 Telegram update 轉成 NormalizedEvent，不是訊息也不是按鈕時回傳 false
//
// 時間一律使用伺服器時間 (callback query 沒有時間欄位)
func Normalize(u gotgbot.Update, now time.Time) (domain.NormalizedEvent, bool) {
	ev := domain.NormalizedEvent{
		UpdateID:  u.UpdateId,
		Timestamp: now.Unix(),
	}
	switch {
	case u.Message != nil:
		ev.Identity = strconv.FormatInt(u.Message.Chat.Id, 10)
		ev.Kind = domain.EventKindMessage
		ev.Text = u.Message.Text
	case u.CallbackQuery != nil:
		// 和訊息一樣以 chat id 當帳戶，回覆才會送到按下按鈕的那個聊天室
		ev.Identity = strconv.FormatInt(callbackChatID(u.CallbackQuery), 10)
		ev.Kind = domain.EventKindCallback
		ev.CallbackData = u.CallbackQuery.Data
	default:
		return ev, false
	}
	return ev, true
}

// callbackChatID 按鈕所在訊息的 chat id；inline 模式的訊息沒有 chat，改用使用者 id (私訊中兩者相同)
func callbackChatID(q *gotgbot.CallbackQuery) int64 {
	if q.Message != nil {
		if id := q.Message.GetChat().Id; id != 0 {
			return id
		}
	}
	return q.From.Id
}
