package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"marketbot/internal/pkg/bootstrap"
	"marketbot/internal/pkg/logger"
	"marketbot/internal/pkg/nacos"
	"marketbot/internal/service/inventory"
	"marketbot/internal/service/inventory/client"
)

// ServiceName 是 --discover 默认查找的服务名
const ServiceName = "inventory-service"

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ErrRejected 表示引擎返回了业务拒绝，结果已经输出，进程以 1 退出
var ErrRejected = errors.New("operation rejected")

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Endpoint   string
	Discover   bool
	Format     string
	Verbose    bool

	cfg bootstrap.Config
}

// NewRootCommand creates the root command for inventoryctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "inventoryctl",
		Short: "Operate the inventory reservation engine",
		Long: `Operate the inventory reservation engine.

By default commands run the engine in-process against the stores named in the
config file, taking the same ledger lock as the service. With --endpoint or
--discover they call a running inventory-service over HTTP instead.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			logger.InitWithWriter("inventoryctl", level, zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})

			cfg, err := bootstrap.LoadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", os.Getenv("INVENTORY_CONFIG"), "config file (yaml)")
	cmd.PersistentFlags().StringVar(&opts.Endpoint, "endpoint", "", "inventory-service base URL, e.g. http://localhost:8082")
	cmd.PersistentFlags().BoolVar(&opts.Discover, "discover", false, "resolve inventory-service through Nacos")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewStockCommand(opts))
	cmd.AddCommand(NewReserveCommand(opts))
	cmd.AddCommand(NewReserveCartCommand(opts))
	cmd.AddCommand(NewConfirmCommand(opts))
	cmd.AddCommand(NewReleaseCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) remote() bool {
	return o.Endpoint != "" || o.Discover
}

// openEngine 返回远程客户端或进程内引擎，close 必须调用
func (o *RootOptions) openEngine(ctx context.Context) (engine, func(), error) {
	if o.remote() {
		endpoint, err := o.resolveEndpoint(ctx)
		if err != nil {
			return nil, nil, err
		}
		return client.New(endpoint), func() {}, nil
	}
	c, err := o.openLocal(ctx)
	if err != nil {
		return nil, nil, err
	}
	return localEngine{svc: c.Service}, func() { c.Close(ctx) }, nil
}

func (o *RootOptions) openLocal(ctx context.Context) (*inventory.Components, error) {
	if o.remote() {
		return nil, errors.New("this command only runs in-process; drop --endpoint/--discover")
	}
	return inventory.Build(ctx, o.cfg, false)
}

func (o *RootOptions) resolveEndpoint(ctx context.Context) (string, error) {
	if o.Endpoint != "" {
		return o.Endpoint, nil
	}
	nc, err := nacos.NewNacosClient(ctx, o.cfg.Infra.Nacos)
	if err != nil {
		return "", err
	}
	defer nc.Close()
	return nc.DiscoverServiceURL(ServiceName)
}
