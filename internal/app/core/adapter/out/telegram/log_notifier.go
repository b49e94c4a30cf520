package telegram

import (
	"context"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
)

// LogNotifier 沒有設定 token 時使用，只把回覆寫進日誌 (本機開發)
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, resp domain.Response) error {
	n.logger.Info("response",
		zap.String("recipient", resp.Identity),
		zap.String("text", resp.Text),
		zap.Bool("menu", resp.Menu != nil),
	)
	return nil
}

var _ usecase.Notifier = (*LogNotifier)(nil)
