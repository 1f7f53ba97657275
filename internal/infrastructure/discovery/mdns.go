// Package discovery 通过 mDNS 在局域网内广播和发现 coursebot 服务
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/log"
)

const (
	// ServiceType mDNS 服务类型
	ServiceType = "_coursebot._tcp"
	// Domain mDNS 域
	Domain = "local."
	// Version 广播的协议版本
	Version = "1"
)

// Service 发现到的服务
type Service struct {
	Instance string   `json:"instance"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Addrs    []string `json:"addrs"`
	APIPath  string   `json:"api_path"`
	MCPPath  string   `json:"mcp_path"`
	Version  string   `json:"version"`
}

// BaseURL 第一个地址对应的 HTTP 地址
func (s Service) BaseURL() string {
	host := s.Host
	if len(s.Addrs) > 0 {
		host = s.Addrs[0]
	}
	return "http://" + net.JoinHostPort(strings.TrimSuffix(host, "."), strconv.Itoa(s.Port))
}

// Advertiser mDNS 服务广播器
type Advertiser struct {
	mu       sync.Mutex
	server   *zeroconf.Server
	instance string
	port     int
	logger   *slog.Logger
}

// ProvideAdvertiser 未开启广播时返回 nil
func ProvideAdvertiser(cfg *config.ServerConfig) (*Advertiser, error) {
	if !cfg.Advertise {
		return nil, nil
	}
	port, err := portOf(cfg.HTTPPort)
	if err != nil {
		return nil, err
	}
	return NewAdvertiser(instanceName(cfg.InstanceName), port), nil
}

// NewAdvertiser 创建 mDNS 广播器
func NewAdvertiser(instance string, port int) *Advertiser {
	return &Advertiser{
		instance: instance,
		port:     port,
		logger:   log.NewModuleLogger("discovery", "advertiser"),
	}
}

// Start 开始广播服务
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return fmt.Errorf("advertiser is already running")
	}

	server, err := zeroconf.Register(a.instance, ServiceType, Domain, a.port, txtRecords(), nil)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	a.server = server

	a.logger.Info("mDNS advertiser started",
		"instance", a.instance,
		"port", a.port,
	)
	return nil
}

// Stop 停止广播
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.logger.Info("mDNS advertiser stopped")
}

// Discover 在 timeout 内收集局域网内的服务
func Discover(ctx context.Context, timeout time.Duration) ([]Service, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 10)
	var services []Service
	done := make(chan struct{})
	go func() {
		defer close(done)
		seen := make(map[string]bool)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if entry == nil || seen[entry.Instance] {
					continue
				}
				seen[entry.Instance] = true
				services = append(services, parseEntry(entry))
			case <-browseCtx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(browseCtx, ServiceType, Domain, entries); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("failed to browse services: %w", err)
	}
	<-done

	return services, nil
}

func txtRecords() []string {
	return []string{
		"version=" + Version,
		"api=/api/v1",
		"mcp=/mcp/sse",
	}
}

func parseEntry(entry *zeroconf.ServiceEntry) Service {
	s := Service{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     entry.Port,
	}
	for _, ip := range entry.AddrIPv4 {
		s.Addrs = append(s.Addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		s.Addrs = append(s.Addrs, ip.String())
	}
	for _, txt := range entry.Text {
		k, v, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch k {
		case "version":
			s.Version = v
		case "api":
			s.APIPath = v
		case "mcp":
			s.MCPPath = v
		}
	}
	return s
}

// portOf 从 ":19970" 或 "0.0.0.0:19970" 中取出端口
func portOf(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid http port %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("invalid http port %q", addr)
	}
	return port, nil
}

func instanceName(configured string) string {
	if configured != "" {
		return configured
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return "coursebot-" + host
	}
	return "coursebot"
}
