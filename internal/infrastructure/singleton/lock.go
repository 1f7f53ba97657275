// Package singleton 保证同一端口上只运行一个服务实例
package singleton

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// HealthCheckTimeout 健康检查超时时间
const HealthCheckTimeout = 2 * time.Second

// wsaeaddrinuse Windows 下的地址占用错误码
const wsaeaddrinuse = syscall.Errno(10048)

// CheckAndLock 尝试占用端口
// 端口可用时返回 listener；已有健康实例运行时返回 nil listener 和 nil error（调用者应退出）
// 端口被其他进程占用时返回错误
func CheckAndLock(addr string) (net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err == nil {
		return listener, nil
	}

	if !isAddrInUse(err) {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if isInstanceRunning(addr) {
		return nil, nil
	}
	return nil, fmt.Errorf("address %s is in use by another process that failed the health check", addr)
}

// isAddrInUse 检查错误是否是地址已在使用
func isAddrInUse(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.EADDRINUSE) || errors.Is(err, wsaeaddrinuse) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "address already in use") ||
		strings.Contains(msg, "Only one usage of each socket address")
}

// healthURL 由监听地址得到健康检查地址
func healthURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Sprintf("http://localhost%s/health", addr)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s/health", net.JoinHostPort(host, port))
}

// isInstanceRunning 检查端口上是否是健康的本服务实例
func isInstanceRunning(addr string) bool {
	client := &http.Client{Timeout: HealthCheckTimeout}

	resp, err := client.Get(healthURL(addr))
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Status == "ok"
}
