package domain

import (
	"cmp"
	"slices"
)

// Standing 排行榜上的一筆
type Standing struct {
	Rank    int    `json:"rank"`
	ID      string `json:"id"`
	Balance int64  `json:"balance"`
}

// Rank 依餘額由高到低取前 n 名
//
// 同分時依建立順序 (Seq) 排，再依 ID 排，所以結果是固定的
// accounts 不會被修改
func Rank(accounts []Account, n int) []Standing {
	if n <= 0 || len(accounts) == 0 {
		return []Standing{}
	}
	sorted := slices.Clone(accounts)
	slices.SortFunc(sorted, func(a, b Account) int {
		if c := cmp.Compare(b.Balance, a.Balance); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	standings := make([]Standing, 0, len(sorted))
	for i, a := range sorted {
		standings = append(standings, Standing{
			Rank:    i + 1,
			ID:      a.ID,
			Balance: a.Balance,
		})
	}
	return standings
}
