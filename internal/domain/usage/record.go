// Package usage 定义每日对话用量记录
package usage

import "time"

// DateLayout 日期格式
const DateLayout = "2006-01-02"

// Record 用量记录
type Record struct {
	Count         int    `json:"count"`
	Max           int    `json:"max"`
	LastResetDate string `json:"last_reset_date"`
	// Subject 记录所属身份，防止令牌在用户之间挪用
	Subject string `json:"sub,omitempty"`
}

// Fresh 当天的空记录
func Fresh(subject string, max int, today string) Record {
	return Record{Max: max, LastResetDate: today, Subject: subject}
}

// Roll 日期变化时清零
func (r *Record) Roll(today string) {
	if r.LastResetDate != today {
		r.Count = 0
		r.LastResetDate = today
	}
}

// TryConsume 未达上限时计数加一并返回 true
func (r *Record) TryConsume() bool {
	if r.Count >= r.Max {
		return false
	}
	r.Count++
	return true
}

// Remaining 当天剩余次数
func (r Record) Remaining() int {
	if n := r.Max - r.Count; n > 0 {
		return n
	}
	return 0
}

// Today 按指定时区格式化当天日期
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}
