package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"acdmx.com/pkg/units"
	"github.com/holiman/uint256"
	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
)

var (
	apiAddr string
	caller  string
	timeout time.Duration
	human   bool
)

var rootCmd = &cobra.Command{
	Use:          "acdmctl",
	Short:        "Command line client for the ACDM platform service",
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&apiAddr, "api", envOr("ACDM_API", "http://127.0.0.1:8080"), "platform-service http address")
	f.StringVar(&caller, "from", os.Getenv("ACDM_FROM"), "caller address sent as "+HeaderCaller)
	f.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	f.BoolVar(&human, "human", false, "amounts are decimals (payment 18, ACDM 6) instead of base units")

	rootCmd.AddCommand(
		registerCmd,
		startSaleCmd,
		startTradeCmd,
		buyACDMCmd,
		addOrderCmd,
		removeOrderCmd,
		buyOrderCmd,
		setEditorCmd,
		setFractionCmd,
		roundCmd,
		orderCmd,
		ordersCmd,
		approveCmd,
		depositCmd,
		balancesCmd,
	)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// call 发请求并把 data 缩进打印
func call(cmd *cobra.Command, method, path string, body any) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	data, err := newClient(apiAddr, caller, timeout).do(ctx, method, path, body)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out.String())
	return err
}

// amount 把命令行金额转成服务端要的十进制整数串
func amount(s string, decimals int32) (string, error) {
	var (
		v   *uint256.Int
		err error
	)
	if human {
		v, err = units.ParseUnits(s, decimals)
	} else {
		v, err = units.Parse(s)
	}
	if err != nil {
		return "", err
	}
	return v.Dec(), nil
}

func requireCaller() error {
	if caller == "" {
		return fmt.Errorf("--from (or ACDM_FROM) is required")
	}
	return nil
}
