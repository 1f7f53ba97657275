// Package usage 每日对话次数限制
package usage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainUsage "github.com/coursebot/backend/internal/domain/usage"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/log"
	"github.com/coursebot/backend/internal/infrastructure/token"
)

// TokenSealer 用量令牌加解密
type TokenSealer interface {
	Seal(r domainUsage.Record) (string, error)
	Open(token string) (domainUsage.Record, error)
}

// highWater 进程内记录的某身份当日最高计数
type highWater struct {
	mu    sync.Mutex
	date  string
	count int
}

// Limiter 用量限制器
// 计数保存在客户端令牌中，进程内高水位防止并发请求或重放旧令牌绕过上限
type Limiter struct {
	sealer TokenSealer
	max    int

	mu    sync.Mutex
	marks map[string]*highWater

	logger *slog.Logger
}

// NewLimiter 创建用量限制器
func NewLimiter(sealer *token.Sealer, cfg *config.ChatConfig) *Limiter {
	return newLimiter(sealer, cfg.DailyLimit)
}

func newLimiter(sealer TokenSealer, max int) *Limiter {
	return &Limiter{
		sealer: sealer,
		max:    max,
		marks:  make(map[string]*highWater),
		logger: log.NewModuleLogger("usage", "limiter"),
	}
}

// Max 每日上限
func (l *Limiter) Max() int {
	return l.max
}

func (l *Limiter) mark(identity string) *highWater {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.marks[identity]
	if !ok {
		m = &highWater{}
		l.marks[identity] = m
	}
	return m
}

// load 解析令牌，无效或属于其他身份时视为当天新记录
func (l *Limiter) load(identity, tok, today string) domainUsage.Record {
	rec, err := l.sealer.Open(tok)
	if err != nil || rec.Subject != identity {
		if tok != "" {
			l.logger.Debug("Discarding usage token", "identity", identity, "error", err)
		}
		rec = domainUsage.Fresh(identity, l.max, today)
	}
	// 上限以配置为准
	rec.Max = l.max
	rec.Roll(today)
	return rec
}

// CheckAndIncrement 检查并消耗一次对话额度，返回新的令牌
// 超出上限时 allowed 为 false，令牌仍会返回（日期已校正）
func (l *Limiter) CheckAndIncrement(identity, tok, today string) (string, bool, error) {
	rec := l.load(identity, tok, today)

	m := l.mark(identity)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.date == today && m.count > rec.Count {
		rec.Count = m.count
	}
	allowed := rec.TryConsume()
	m.date, m.count = today, rec.Count

	newToken, err := l.sealer.Seal(rec)
	if err != nil {
		return "", allowed, fmt.Errorf("failed to seal usage token: %w", err)
	}

	if !allowed {
		l.logger.Info("Daily chat limit reached", "identity", identity, "max", rec.Max)
	}
	return newToken, allowed, nil
}

// Remaining 当天剩余次数，不消耗额度
func (l *Limiter) Remaining(identity, tok, today string) int {
	rec := l.load(identity, tok, today)

	m := l.mark(identity)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.date == today && m.count > rec.Count {
		rec.Count = m.count
	}
	return rec.Remaining()
}

// Calendar 在配置时区下计算"今天"
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar 创建日历
func NewCalendar(cfg *config.ChatConfig) (*Calendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}
	return &Calendar{loc: loc, now: time.Now}, nil
}

// NewCalendarWithClock 使用指定时钟创建日历
func NewCalendarWithClock(loc *time.Location, now func() time.Time) *Calendar {
	return &Calendar{loc: loc, now: now}
}

// Now 当前时间
func (c *Calendar) Now() time.Time {
	return c.now()
}

// Today 当天日期
func (c *Calendar) Today() string {
	return domainUsage.Today(c.now(), c.loc)
}
