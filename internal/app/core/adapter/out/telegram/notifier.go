package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
)

// Config Telegram Bot API 設定
type Config struct {
	Token       string        `yaml:"token"`
	BotUsername string        `yaml:"bot_username"`
	APIURL      string        `yaml:"api_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// NewBot 建立 gotgbot.Bot (不在啟動時呼叫 getMe)
func NewBot(cfg Config) (*gotgbot.Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is not set")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = gotgbot.DefaultAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = gotgbot.DefaultTimeout
	}
	return gotgbot.NewBot(cfg.Token, &gotgbot.BotOpts{
		DisableTokenCheck: true,
		BotClient: &gotgbot.BaseBotClient{
			Client: http.Client{},
			DefaultRequestOpts: &gotgbot.RequestOpts{
				Timeout: cfg.Timeout,
				APIURL:  cfg.APIURL,
			},
		},
	})
}

// Sender 送訊息的最小介面，*gotgbot.Bot 實作了它
type Sender interface {
	SendMessageWithContext(ctx context.Context, chatId int64, text string, opts *gotgbot.SendMessageOpts) (*gotgbot.Message, error)
}

// Notifier 透過 Telegram 送出回覆
type Notifier struct {
	sender Sender
}

// NewNotifier 建立 Notifier
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Send 送出一則 HTML 訊息，有選單時附上 inline keyboard
//
// ctx 取消或逾時會中斷對 Bot API 的請求
func (n *Notifier) Send(ctx context.Context, resp domain.Response) error {
	chatID, err := strconv.ParseInt(resp.Identity, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", resp.Identity, err)
	}
	opts := &gotgbot.SendMessageOpts{
		ParseMode: "HTML",
	}
	if resp.Menu != nil {
		opts.ReplyMarkup = Keyboard(resp.Menu)
	}
	if _, err := n.sender.SendMessageWithContext(ctx, chatID, resp.Text, opts); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

// Keyboard 把選單轉成 inline keyboard，callback data 就是 action token
func Keyboard(grid domain.ButtonGrid) gotgbot.InlineKeyboardMarkup {
	rows := make([][]gotgbot.InlineKeyboardButton, 0, len(grid))
	for _, row := range grid {
		buttons := make([]gotgbot.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, gotgbot.InlineKeyboardButton{
				Text:         b.Label,
				CallbackData: string(b.Action),
			})
		}
		rows = append(rows, buttons)
	}
	return gotgbot.InlineKeyboardMarkup{InlineKeyboard: rows}
}

var _ usecase.Notifier = (*Notifier)(nil)
