package sms

import (
	"context"
	"sync"
)

// SentMessage 内存网关记录的一条短信
type SentMessage struct {
	Phone    string
	Code     string
	Template string
}

// MemoryGateway 内存网关，测试中用于断言发送内容
type MemoryGateway struct {
	mu   sync.Mutex
	sent []SentMessage
	// Err 非空时每次发送都返回该错误
	Err error
	// Calls 累计调用次数（含失败）
	calls int
}

// NewMemoryGateway 创建内存网关
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{}
}

// Send 记录短信
func (g *MemoryGateway) Send(ctx context.Context, phone, code, template string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.Err != nil {
		return g.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	g.sent = append(g.sent, SentMessage{Phone: phone, Code: code, Template: template})
	return nil
}

// Sent 返回已发送短信副本
func (g *MemoryGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]SentMessage, len(g.sent))
	copy(out, g.sent)
	return out
}

// Last 返回最后一条短信
func (g *MemoryGateway) Last() (SentMessage, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sent) == 0 {
		return SentMessage{}, false
	}
	return g.sent[len(g.sent)-1], true
}

// Calls 返回调用次数
func (g *MemoryGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// SetErr 设置发送错误
func (g *MemoryGateway) SetErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Err = err
}
