package main

import (
	"fmt"
	"net/http"

	"acdmx.com/pkg/units"
	"github.com/spf13/cobra"
)

// 单价是每个最小 ACDM 单位的支付资产最小单位，human 模式下按 “每个 ACDM 多少支付资产” 输入
const priceDecimals = units.PaymentDecimals - units.TokenDecimals

var registerUser string

var registerCmd = &cobra.Command{
	Use:   "register [referer]",
	Short: "Register the caller (or --user), optionally under a referer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		body := map[string]string{}
		if registerUser != "" {
			body["user"] = registerUser
		}
		if len(args) == 1 {
			body["referer"] = args[0]
		}
		return call(cmd, http.MethodPost, "/api/v1/users/register", body)
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerUser, "user", "", "address to register, defaults to --from")
}

var startSaleCmd = &cobra.Command{
	Use:   "start-sale-round",
	Short: "Start the next sale round",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, http.MethodPost, "/api/v1/rounds/sale", nil)
	},
}

var startTradeCmd = &cobra.Command{
	Use:   "start-trade-round",
	Short: "Close the sale round and open trading",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, http.MethodPost, "/api/v1/rounds/trade", nil)
	},
}

var buyACDMCmd = &cobra.Command{
	Use:   "buy-acdm <payment>",
	Short: "Buy ACDM from the platform in the current sale round",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		pay, err := amount(args[0], units.PaymentDecimals)
		if err != nil {
			return err
		}
		return call(cmd, http.MethodPost, "/api/v1/sale/buy", map[string]string{"payment": pay})
	},
}

var addOrderCmd = &cobra.Command{
	Use:   "add-order <amount> <price-per-unit>",
	Short: "List ACDM for sale in the current trade round",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		amt, err := amount(args[0], units.TokenDecimals)
		if err != nil {
			return err
		}
		price, err := amount(args[1], priceDecimals)
		if err != nil {
			return err
		}
		return call(cmd, http.MethodPost, "/api/v1/orders", map[string]string{"amount": amt, "price": price})
	},
}

var removeOrderCmd = &cobra.Command{
	Use:   "remove-order <id>",
	Short: "Cancel an order and take back the unsold ACDM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		return call(cmd, http.MethodDelete, "/api/v1/orders/"+args[0], nil)
	},
}

var buyOrderCmd = &cobra.Command{
	Use:   "buy-order <id> <payment>",
	Short: "Buy from an order, overpayment is refunded",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		pay, err := amount(args[1], units.PaymentDecimals)
		if err != nil {
			return err
		}
		return call(cmd, http.MethodPost, "/api/v1/orders/"+args[0]+"/buy", map[string]string{"payment": pay})
	},
}

var setEditorCmd = &cobra.Command{
	Use:   "set-editor <address>",
	Short: "Owner only: replace the parameter editor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		return call(cmd, http.MethodPut, "/api/v1/params/editor", map[string]string{"editor": args[0]})
	},
}

var setFractionCmd = &cobra.Command{
	Use:   "set-reward-fraction <sale-ref1|sale-ref2|trade-ref1|trade-ref2> <per-mille>",
	Short: "Editor only: change a referral reward fraction",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		// 千分比不受 --human 影响
		v, err := units.Parse(args[1])
		if err != nil {
			return err
		}
		return call(cmd, http.MethodPut, "/api/v1/params/"+args[0], map[string]string{"value": v.Dec()})
	},
}

var roundCmd = &cobra.Command{
	Use:   "round [number]",
	Short: "Show the current round, or a past round from the read model",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return call(cmd, http.MethodGet, "/api/v1/rounds/current", nil)
		}
		return call(cmd, http.MethodGet, "/api/v1/rounds/"+args[0], nil)
	},
}

var orderCmd = &cobra.Command{
	Use:   "order <id>",
	Short: "Show an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, http.MethodGet, "/api/v1/orders/"+args[0], nil)
	},
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List active orders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, http.MethodGet, "/api/v1/orders", nil)
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <amount|max>",
	Short: "Allow the platform to pull the caller's ACDM for orders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		amt := args[0]
		if amt != "max" {
			var err error
			if amt, err = amount(amt, units.TokenDecimals); err != nil {
				return err
			}
		}
		return call(cmd, http.MethodPost, "/api/v1/ledger/approve", map[string]string{"amount": amt})
	},
}

var depositCmd = &cobra.Command{
	Use:   "deposit <to> <amount>",
	Short: "Owner only: credit payment asset to an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCaller(); err != nil {
			return err
		}
		amt, err := amount(args[1], units.PaymentDecimals)
		if err != nil {
			return err
		}
		return call(cmd, http.MethodPost, "/api/v1/ledger/deposit", map[string]string{"to": args[0], "amount": amt})
	},
}

var balancesCmd = &cobra.Command{
	Use:   "balances <address>",
	Short: "Show ACDM, payment and allowance of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args[0]) == 0 {
			return fmt.Errorf("empty address")
		}
		return call(cmd, http.MethodGet, "/api/v1/ledger/"+args[0], nil)
	},
}
