package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rynott/cartcore/config"
	"github.com/rynott/cartcore/internal/app"
	"github.com/rynott/cartcore/internal/core/service"
	"github.com/rynott/cartcore/pkg/sigctx"
)

func main() {
	cfg := config.Load()

	application := app.New(cfg)
	defer application.Close()

	if err := newRootCmd(application).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(application *app.App) *cobra.Command {
	root := &cobra.Command{
		Use:           "cartctl",
		Short:         "Inspect and mutate the storefront cart",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	// parsed by the config package before cobra runs
	root.PersistentFlags().String("config", "/config.yaml", "config file")

	cart := application.Cart()
	root.AddCommand(
		newShowCmd(cart),
		newAddCmd(cart),
		newRemoveCmd(cart),
		newUpdateCmd(cart),
		newClearCmd(cart),
		newWatchCmd(application),
	)
	return root
}

func newShowCmd(cart *service.CartService) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Load and print the current cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cart.Load(cmd.Context()); err != nil {
				return err
			}
			printCart(cart.Snapshot())
			return nil
		},
	}
}

func newAddCmd(cart *service.CartService) *cobra.Command {
	var qty int
	cmd := &cobra.Command{
		Use:   "add <product-id | product-json>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cart.AddToCart(cmd.Context(), productArg(args[0]), qty); err != nil {
				return err
			}
			printCart(cart.Snapshot())
			return nil
		},
	}
	cmd.Flags().IntVar(&qty, "qty", 1, "quantity to add")
	return cmd
}

func newRemoveCmd(cart *service.CartService) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cart.RemoveFromCart(cmd.Context(), args[0]); err != nil {
				return err
			}
			printCart(cart.Snapshot())
			return nil
		},
	}
}

func newUpdateCmd(cart *service.CartService) *cobra.Command {
	return &cobra.Command{
		Use:   "update <product-id> <quantity>",
		Short: "Set the quantity of a cart line (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q: %w", args[1], err)
			}
			if err := cart.UpdateQuantity(cmd.Context(), args[0], qty); err != nil {
				return err
			}
			printCart(cart.Snapshot())
			return nil
		},
	}
}

func newClearCmd(cart *service.CartService) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cart.ClearCart(cmd.Context()); err != nil {
				return err
			}
			printCart(cart.Snapshot())
			return nil
		},
	}
}

func newWatchCmd(application *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow auth transitions and keep the cart in sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := sigctx.NotifyContext()
			defer stop()

			cart := application.Cart()
			if err := cart.Load(ctx); err != nil {
				return err
			}
			printCart(cart.Snapshot())

			return application.WatchAuth(ctx)
		},
	}
}

// productArg accepts either a bare product id or a JSON product
// payload of any supported shape.
func productArg(arg string) any {
	if !strings.HasPrefix(strings.TrimSpace(arg), "{") {
		return arg
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(arg), &payload); err != nil {
		return arg
	}
	return payload
}

func printCart(st service.State) {
	fmt.Printf("status: %s\n", st.Status)
	if st.LastError != nil {
		fmt.Printf("error: %v\n", st.LastError)
	}
	for _, item := range st.Cart.Items {
		fmt.Printf("  %s  %q  x%d  @%.2f\n",
			item.Product.ID, item.Product.Name, item.Quantity, item.UnitPrice())
	}
	fmt.Printf("items: %d  total: %.2f\n", st.Cart.TotalItems, st.Cart.TotalPrice)
}
