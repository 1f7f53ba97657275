package config

import (
	"os"
	"path/filepath"
	"sync"
)

const (
	// EnvDataDir 数据目录环境变量名
	EnvDataDir = "COURSEBOT_DATA_DIR"
	// DefaultDataDirName 用户主目录下的默认数据目录
	DefaultDataDirName = ".coursebot"
)

var dataDir struct {
	once sync.Once
	path string
}

// GetDataDir 数据根目录：COURSEBOT_DATA_DIR，否则 ~/.coursebot
// 取不到主目录时退回到工作目录下的 .coursebot
func GetDataDir() string {
	dataDir.once.Do(func() {
		dataDir.path = resolveDataDir()
	})
	return dataDir.path
}

// DataPath 数据目录下的文件路径
// 数据库、配置文件、收件箱检查点和命令行用量凭证都在这里
func DataPath(name string) string {
	return filepath.Join(GetDataDir(), name)
}

// ResetDataDir 仅供测试
func ResetDataDir() {
	dataDir.once = sync.Once{}
	dataDir.path = ""
}

func resolveDataDir() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDirName
	}
	return filepath.Join(home, DefaultDataDirName)
}
