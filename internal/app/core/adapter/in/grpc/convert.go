package grpc

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
)

// structpb 只有 float64，點數與時間都在安全整數範圍內

func accountToMap(a domain.Account) map[string]any {
	return map[string]any{
		"id":          a.ID,
		"balance":     a.Balance,
		"last_earn":   a.LastEarn,
		"earns":       a.Earns,
		"referrals":   a.Referrals,
		"ref_code":    a.RefCode,
		"referred_by": a.ReferredBy,
		"seq":         a.Seq,
	}
}

// AccountFromStruct 把 GetAccount 的回應轉回 domain.Account
func AccountFromStruct(s *structpb.Struct) domain.Account {
	f := s.GetFields()
	return domain.Account{
		ID:         f["id"].GetStringValue(),
		Balance:    int64(f["balance"].GetNumberValue()),
		LastEarn:   int64(f["last_earn"].GetNumberValue()),
		Earns:      int64(f["earns"].GetNumberValue()),
		Referrals:  int64(f["referrals"].GetNumberValue()),
		RefCode:    f["ref_code"].GetStringValue(),
		ReferredBy: f["referred_by"].GetStringValue(),
		Seq:        uint64(f["seq"].GetNumberValue()),
	}
}

func standingsToMap(standings []domain.Standing) map[string]any {
	list := make([]any, 0, len(standings))
	for _, s := range standings {
		list = append(list, map[string]any{
			"rank":    s.Rank,
			"id":      s.ID,
			"balance": s.Balance,
		})
	}
	return map[string]any{"standings": list}
}

// StandingsFromStruct 把 Leaderboard 的回應轉回 []domain.Standing
func StandingsFromStruct(s *structpb.Struct) []domain.Standing {
	values := s.GetFields()["standings"].GetListValue().GetValues()
	out := make([]domain.Standing, 0, len(values))
	for _, v := range values {
		f := v.GetStructValue().GetFields()
		out = append(out, domain.Standing{
			Rank:    int(f["rank"].GetNumberValue()),
			ID:      f["id"].GetStringValue(),
			Balance: int64(f["balance"].GetNumberValue()),
		})
	}
	return out
}

// EventToStruct 把事件轉成 Dispatch 的請求
func EventToStruct(ev domain.NormalizedEvent) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"update_id":     ev.UpdateID,
		"identity":      ev.Identity,
		"kind":          string(ev.Kind),
		"text":          ev.Text,
		"callback_data": ev.CallbackData,
		"timestamp":     ev.Timestamp,
	})
}

func eventFromStruct(s *structpb.Struct) domain.NormalizedEvent {
	f := s.GetFields()
	return domain.NormalizedEvent{
		UpdateID:     int64(f["update_id"].GetNumberValue()),
		Identity:     f["identity"].GetStringValue(),
		Kind:         domain.EventKind(f["kind"].GetStringValue()),
		Text:         f["text"].GetStringValue(),
		CallbackData: f["callback_data"].GetStringValue(),
		Timestamp:    int64(f["timestamp"].GetNumberValue()),
	}
}

func responseToMap(r domain.Response) map[string]any {
	menu := make([]any, 0, len(r.Menu))
	for _, row := range r.Menu {
		buttons := make([]any, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, map[string]any{"label": b.Label, "action": string(b.Action)})
		}
		menu = append(menu, buttons)
	}
	return map[string]any{
		"identity": r.Identity,
		"text":     r.Text,
		"menu":     menu,
	}
}

func resultToMap(res usecase.Result, err error) map[string]any {
	m := map[string]any{
		"ok":        err == nil,
		"command":   res.Command.Kind.String(),
		"action":    string(res.Command.Action),
		"duplicate": res.Duplicate,
	}
	if err != nil {
		m["error"] = err.Error()
	}
	if res.Reply != nil {
		m["reply"] = responseToMap(*res.Reply)
	}
	notices := make([]any, 0, len(res.Notices))
	for _, n := range res.Notices {
		notices = append(notices, responseToMap(n))
	}
	m["notices"] = notices
	return m
}
