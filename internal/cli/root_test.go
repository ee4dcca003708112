package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbot/internal/pkg/bootstrap"
	"marketbot/internal/service/inventory"
	"marketbot/internal/service/inventory/domain"
	"marketbot/internal/service/inventory/interfaces"
)

const seedYAML = `
products:
  seller-1:
    - base_sku: shirt
      stock: 10
      variations:
        - {variant_id: red, stock: 3, price_delta: "1.50"}
    - base_sku: mug
      stock: 5
orders: [o1, o2, c1]
`

// writeWorkspace 准备一个使用临时 SQLite 文件和进程内锁的配置
func writeWorkspace(t *testing.T) (configPath, seedPath string) {
	t.Helper()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "inventory.yaml")
	seedPath = filepath.Join(dir, "seed.yaml")
	config := "ledger:\n  backend: sqlite\nlock:\n  backend: local\n  timeout: 1s\ninfra:\n  sqlite:\n    path: " +
		filepath.Join(dir, "inventory.db") + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))
	require.NoError(t, os.WriteFile(seedPath, []byte(seedYAML), 0o600))
	return configPath, seedPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "inventoryctl", cmd.Use)

	for _, name := range []string{"seed", "stock", "reserve", "reserve-cart", "confirm", "release", "reconcile"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	configPath, _ := writeWorkspace(t)
	_, err := run(t, "--config", configPath, "--format", "xml", "stock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestParseItemArgs(t *testing.T) {
	items, err := ParseItemArgs([]string{"shirt|red=2", "mug", "a=b=3"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Item{{SKU: "shirt|red", Qty: 2}, {SKU: "mug", Qty: 1}, {SKU: "a=b", Qty: 3}}, items)

	_, err = ParseItemArgs([]string{"mug=x"})
	assert.Error(t, err)
}

func TestLoadSeedFile(t *testing.T) {
	_, seedPath := writeWorkspace(t)
	seed, err := LoadSeedFile(seedPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1", "o2", "c1"}, seed.Orders)
	require.Len(t, seed.Products["seller-1"], 2)
	shirt := seed.Products["seller-1"][0]
	assert.Equal(t, "shirt", shirt.BaseSKU)
	require.Len(t, shirt.Variations, 1)
	assert.Equal(t, "1.5", shirt.Variations[0].PriceDelta.String())
}

func TestLocalLifecycle(t *testing.T) {
	configPath, seedPath := writeWorkspace(t)
	cfg := []string{"--config", configPath}

	out, err := run(t, append(cfg, "seed", "--file", seedPath)...)
	require.NoError(t, err)
	assert.Contains(t, out, "created 3 order(s)")

	// 重复 seed 不会重复创建订单
	out, err = run(t, append(cfg, "seed", "--file", seedPath)...)
	require.NoError(t, err)
	assert.Contains(t, out, "created 0 order(s)")

	out, err = run(t, append(cfg, "reserve", "o1", "shirt|red", "-q", "2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "OK:")

	out, err = run(t, append(cfg, "reserve", "o2", "shirt|red", "-q", "5")...)
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, out, "REJECTED (out_of_stock)")
	assert.Contains(t, out, "[available=1]")

	out, err = run(t, append(cfg, "stock", "shirt|red")...)
	require.NoError(t, err)
	assert.Contains(t, out, "available=1")

	out, err = run(t, append(cfg, "reserve-cart", "c1", "mug=2", "shirt")...)
	require.NoError(t, err)
	assert.Contains(t, out, "OK:")

	_, err = run(t, append(cfg, "confirm", "o1")...)
	require.NoError(t, err)

	out, err = run(t, append(cfg, "release", "c1", "--reason", "expired")...)
	require.NoError(t, err)
	assert.Contains(t, out, "[released]")

	out, err = run(t, append(cfg, "reconcile")...)
	require.NoError(t, err)
	assert.Contains(t, out, "consistent")

	out, err = run(t, append(cfg, "--format", "json", "stock")...)
	require.NoError(t, err)
	var rows []stockRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	bySKU := map[string]stockRow{}
	for _, r := range rows {
		bySKU[r.SKU] = r
	}
	assert.Equal(t, stockRow{Owner: "seller-1", SKU: "shirt|red", Stock: 1, Reserved: 0, Available: 1}, bySKU["shirt|red"])
	assert.Equal(t, 5, bySKU["mug"].Available)
	assert.Equal(t, 10, bySKU["shirt"].Available)
}

func TestRemoteMode(t *testing.T) {
	configPath, seedPath := writeWorkspace(t)
	_, err := run(t, "--config", configPath, "seed", "--file", seedPath)
	require.NoError(t, err)

	ctx := context.Background()
	cfg, err := bootstrap.LoadConfig(configPath)
	require.NoError(t, err)
	components, err := inventory.Build(ctx, cfg, false)
	require.NoError(t, err)
	t.Cleanup(func() { components.Close(ctx) })

	mux := http.NewServeMux()
	interfaces.NewInventoryHandler(components.Service).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	remote := []string{"--config", configPath, "--endpoint", srv.URL}
	out, err := run(t, append(remote, "--format", "json", "reserve", "o1", "mug", "-q", "2")...)
	require.NoError(t, err)
	var res domain.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.OK)

	out, err = run(t, append(remote, "stock", "mug")...)
	require.NoError(t, err)
	assert.Contains(t, out, "available=3")

	_, err = run(t, append(remote, "reconcile")...)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}
