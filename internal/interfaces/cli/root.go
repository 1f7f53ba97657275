// Package cli coursectl 管理命令
package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/discovery"
	"github.com/coursebot/backend/internal/wire"
)

// Loader 构建命令行服务集合
type Loader func() (*wire.Toolkit, func(), error)

// app 命令共享的状态，服务集合在第一次使用时才构建
type app struct {
	load      Loader
	toolkit   *wire.Toolkit
	cleanup   func()
	tokenPath string
	discover  func(ctx context.Context, timeout time.Duration) ([]discovery.Service, error)
}

func (a *app) services() (*wire.Toolkit, error) {
	if a.toolkit != nil {
		return a.toolkit, nil
	}
	if a.load == nil {
		return nil, errors.New("toolkit loader not configured")
	}
	tk, cleanup, err := a.load()
	if err != nil {
		return nil, err
	}
	a.toolkit, a.cleanup = tk, cleanup
	return tk, nil
}

func (a *app) close() {
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}

// Execute 运行 coursectl
func Execute(load Loader) error {
	a := &app{
		load:      load,
		tokenPath: config.DataPath("cli_usage.token"),
		discover:  discovery.Discover,
	}
	defer a.close()
	return newRootCmd(a).Execute()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "coursectl",
		Short: "Manage course materials and talk to the course assistant",
		Long: `coursectl manages the course material index used by the assistant.
It talks to the index directly, so it works without the HTTP server running.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newUploadCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newDeleteAllCmd(a),
		newListCmd(a),
		newSearchCmd(a),
		newAskCmd(a),
		newDoctorCmd(a),
		newDiscoverCmd(a),
	)
	return root
}
