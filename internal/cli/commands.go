package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"marketbot/internal/service/inventory/domain"
	"marketbot/internal/service/inventory/domain/port"
)

func (o *RootOptions) output(cmd *cobra.Command) OutputFormatter {
	return OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// SeedFile 是 seed 命令读取的 YAML 文件格式
type SeedFile struct {
	Products domain.Dataset `json:"products"`
	Orders   []string       `json:"orders"`
}

// LoadSeedFile 读取 YAML 并按 JSON 字段名解码，与账本存储使用同一套字段名
func LoadSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("convert seed file: %w", err)
	}
	var seed SeedFile
	if err := json.Unmarshal(asJSON, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return &seed, nil
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed --file <dataset.yaml>",
		Short: "Replace the ledger dataset and create missing orders",
		Long: `Replace the ledger dataset and create missing orders.

Example file:
  products:
    seller-1:
      - base_sku: shirt
        stock: 10
        variations:
          - {variant_id: red, stock: 3, price_delta: "1.50"}
  orders: [o-1001, o-1002]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			seed, err := LoadSeedFile(file)
			if err != nil {
				return err
			}
			c, err := opts.openLocal(ctx)
			if err != nil {
				return err
			}
			defer c.Close(ctx)

			if err := c.Service.ReplaceDataset(ctx, seed.Products); err != nil {
				return err
			}
			created := 0
			for _, id := range seed.Orders {
				_, err := c.Orders.FindByID(ctx, id)
				if err == nil {
					continue
				}
				if !errors.Is(err, port.ErrOrderNotFound) {
					return err
				}
				if err := c.Orders.Create(ctx, &domain.Order{OrderID: id}); err != nil {
					return err
				}
				created++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d owner(s), created %d order(s)\n", len(seed.Products), created)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (yaml)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// NewStockCommand creates the stock command.
func NewStockCommand(opts *RootOptions) *cobra.Command {
	var qty int
	cmd := &cobra.Command{
		Use:   "stock [sku]",
		Short: "Show available stock for one sku, or the whole ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := opts.output(cmd)
			if len(args) == 1 {
				eng, closeFn, err := opts.openEngine(ctx)
				if err != nil {
					return err
				}
				defer closeFn()
				a, err := eng.Available(ctx, args[0], qty)
				if err != nil {
					return err
				}
				return out.Availability(a)
			}

			c, err := opts.openLocal(ctx)
			if err != nil {
				return err
			}
			defer c.Close(ctx)
			ds, err := c.Service.Snapshot(ctx)
			if err != nil {
				return err
			}
			return out.Stock(ds)
		},
	}
	cmd.Flags().IntVarP(&qty, "qty", "q", 1, "quantity to check")
	return cmd
}

// NewReserveCommand creates the reserve command.
func NewReserveCommand(opts *RootOptions) *cobra.Command {
	var qty int
	cmd := &cobra.Command{
		Use:   "reserve <order-id> <sku>",
		Short: "Reserve a single sku for an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, closeFn, err := opts.openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := eng.Reserve(ctx, args[0], args[1], qty)
			if err != nil {
				return err
			}
			return opts.output(cmd).Result(res)
		},
	}
	cmd.Flags().IntVarP(&qty, "qty", "q", 1, "quantity to reserve")
	return cmd
}

// ParseItemArgs 解析 "sku=qty" 形式的参数，省略 qty 时为 1
func ParseItemArgs(args []string) ([]domain.Item, error) {
	items := make([]domain.Item, 0, len(args))
	for _, arg := range args {
		sku, qtyText, found := cutLast(arg, "=")
		qty := 1
		if found {
			n, err := strconv.Atoi(qtyText)
			if err != nil {
				return nil, fmt.Errorf("invalid quantity in %q", arg)
			}
			qty = n
		}
		items = append(items, domain.Item{SKU: sku, Qty: qty})
	}
	return items, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

// NewReserveCartCommand creates the reserve-cart command.
func NewReserveCartCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "reserve-cart <order-id> <sku[=qty]>...",
		Short:   "Reserve every line of a cart, all or nothing",
		Example: "  inventoryctl reserve-cart o-1001 'shirt|red=2' mug",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			items, err := ParseItemArgs(args[1:])
			if err != nil {
				return err
			}
			eng, closeFn, err := opts.openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := eng.ReserveCart(ctx, args[0], items)
			if err != nil {
				return err
			}
			return opts.output(cmd).Result(res)
		},
	}
}

// NewConfirmCommand creates the confirm command.
func NewConfirmCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <order-id>",
		Short: "Turn an order's reservation into a permanent deduction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, closeFn, err := opts.openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := eng.Confirm(ctx, args[0])
			if err != nil {
				return err
			}
			return opts.output(cmd).Result(res)
		},
	}
}

// NewReleaseCommand creates the release command.
func NewReleaseCommand(opts *RootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "release <order-id>",
		Short: "Release an order's reservation or restock its deduction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, closeFn, err := opts.openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := eng.Release(ctx, args[0], reason)
			if err != nil {
				return err
			}
			return opts.output(cmd).Result(res)
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "manual", "release reason recorded on the order")
	return cmd
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare ledger reservations with reserved orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.openLocal(ctx)
			if err != nil {
				return err
			}
			defer c.Close(ctx)
			drifts, err := c.Service.Reconcile(ctx, fix)
			if err != nil {
				return err
			}
			return opts.output(cmd).Drifts(drifts, fix)
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "rewrite drifted reservations")
	return cmd
}
