//go:build integration
// +build integration

// TestServer 管理独立 coursebot 服务进程的启动与关闭
package framework

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// InstructorToken 测试进程使用的教师令牌
const InstructorToken = "integration-instructor"

// TestServer 测试服务进程
type TestServer struct {
	HTTPPort int
	DataDir  string

	cmd     *exec.Cmd
	baseURL string
}

// ServerOption 服务进程配置选项
type ServerOption func(*serverOptions)

type serverOptions struct {
	chatLimit int
	extraEnv  []string
}

// WithChatLimit 设置每日对话上限
func WithChatLimit(n int) ServerOption {
	return func(o *serverOptions) { o.chatLimit = n }
}

// WithEnv 追加环境变量
func WithEnv(kv ...string) ServerOption {
	return func(o *serverOptions) { o.extraEnv = append(o.extraEnv, kv...) }
}

// NewTestServer 创建测试服务进程，模型接口指向 openaiURL
func NewTestServer(binaryPath, openaiURL string, opts ...ServerOption) (*TestServer, error) {
	o := &serverOptions{chatLimit: 20}
	for _, opt := range opts {
		opt(o)
	}

	httpPort, err := getFreePort()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate HTTP port: %w", err)
	}

	// 隔离的数据目录，数据库和用量密钥都放在这里
	dataDir, err := os.MkdirTemp("", "coursebot-test-data-")
	if err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &TestServer{
		HTTPPort: httpPort,
		DataDir:  dataDir,
		baseURL:  fmt.Sprintf("http://localhost:%d", httpPort),
	}

	s.cmd = exec.Command(binaryPath)
	s.cmd.Dir = dataDir
	s.cmd.Env = append(os.Environ(),
		"COURSEBOT_DATA_DIR="+dataDir,
		fmt.Sprintf("COURSEBOT_HTTP_PORT=:%d", httpPort),
		"COURSEBOT_INSTRUCTOR_TOKEN="+InstructorToken,
		"COURSEBOT_CONFIG="+dataDir+"/config.yaml",
		"OPENAI_BASE_URL="+openaiURL+"/v1",
		"OPENAI_API_KEY=sk-integration",
		"CHAT_LIMIT="+strconv.Itoa(o.chatLimit),
		"GIN_MODE=test",
	)
	s.cmd.Env = append(s.cmd.Env, o.extraEnv...)
	s.cmd.Stdout = os.Stdout
	s.cmd.Stderr = os.Stderr

	return s, nil
}

// Start 启动服务进程并等待就绪
func (s *TestServer) Start() error {
	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return s.waitForReady(30 * time.Second)
}

// Stop 停止服务进程并清理数据目录
func (s *TestServer) Stop() error {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(os.Interrupt)

		done := make(chan error, 1)
		go func() {
			done <- s.cmd.Wait()
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			_ = s.cmd.Process.Kill()
			<-done
		}
	}
	return os.RemoveAll(s.DataDir)
}

// BaseURL 返回 HTTP 基础 URL
func (s *TestServer) BaseURL() string {
	return s.baseURL
}

// waitForReady 等待 health 端点就绪
func (s *TestServer) waitForReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(s.baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("server failed to become ready within %v", timeout)
}

// getFreePort 获取一个空闲的 TCP 端口
func getFreePort() (int, error) {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
