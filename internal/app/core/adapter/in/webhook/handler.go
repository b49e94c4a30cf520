package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
)

// SecretHeader Telegram setWebhook 的 secret_token 會放在這個 header
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxBodyBytes = 1 << 20

// Dispatcher 處理正規化後的事件，*usecase.CoreUseCase 實作了它
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.NormalizedEvent) (usecase.Result, error)
}

// Config webhook 設定
type Config struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
	// SecretToken: 空字串代表不檢查
	SecretToken string `yaml:"secret_token"`
	// RatePerSecond / RateBurst: 每個使用者的事件頻率限制，0 代表不限制
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

// Handler 接收 Telegram webhook
type Handler struct {
	router  *mux.Router
	core    Dispatcher
	limiter *Limiter
	secret  string
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler 建立 Handler 並註冊路由
//
//	POST {path}   Telegram update
//	GET  {path}   存活訊息
//	GET  /healthz
//	GET  /metrics Prometheus
func NewHandler(core Dispatcher, limiter *Limiter, cfg Config, logger *zap.Logger) *Handler {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	h := &Handler{
		router:  mux.NewRouter(),
		core:    core,
		limiter: limiter,
		secret:  cfg.SecretToken,
		logger:  logger,
		now:     time.Now,
	}
	h.router.Use(MiddlewareRecover(logger), MiddlewareMetrics())
	h.router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
	h.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	h.router.HandleFunc(cfg.Path, h.UpdateHandler).Methods(http.MethodPost)
	h.router.HandleFunc(cfg.Path, h.LiveHandler).Methods(http.MethodGet)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// HealthHandler 健康檢查
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// LiveHandler 用瀏覽器打開 webhook 網址時的回應
func (h *Handler) LiveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "Bot is live. Point the Telegram webhook at this URL.\n")
}

// UpdateHandler 處理一個 Telegram update
//
// 無法解析 -> 400；不需要處理 -> 200；提交失敗 -> 500 (讓 Telegram 重送)
func (h *Handler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn("webhook secret mismatch", zap.String("remote", r.RemoteAddr))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn("read update body", zap.Error(err))
		http.Error(w, "body is not readable", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var update gotgbot.Update
	if err := json.Unmarshal(body, &update); err != nil {
		h.logger.Warn("decode update", zap.Error(err), zap.Int("bytes", len(body)))
		http.Error(w, "body is not a telegram update", http.StatusBadRequest)
		return
	}

	ev, ok := Normalize(update, h.now())
	if !ok {
		h.logger.Debug("update ignored", zap.Int64("update_id", update.UpdateId))
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ignored": true})
		return
	}

	if !h.limiter.Allow(ev.Identity) {
		h.logger.Warn("rate limited", zap.String("identity", ev.Identity), zap.Int64("update_id", ev.UpdateID))
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "dropped": true})
		return
	}

	// 用戶端斷線不應中斷交易
	ctx := context.WithoutCancel(r.Context())
	res, err := h.core.Dispatch(ctx, ev)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":        true,
			"command":   res.Command.Kind.String(),
			"duplicate": res.Duplicate,
		})
	case errors.Is(err, domain.ErrInvalidEvent):
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ignored": true})
	default:
		// Dispatch 已經記錄錯誤
		http.Error(w, "event failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
