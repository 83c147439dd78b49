// Command pos is the cashier terminal: a local cart that survives restarts
// and checks out against the storefront API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storefront/internal/apiclient"
	"storefront/internal/cartstore"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/money"
)

const usage = `usage: pos <command> [flags]

commands:
  add       -product ID            add one unit of a product
  set       -product ID -qty N     set a line quantity (0 removes)
  remove    -product ID            remove a line
  show                             print the cart
  clear                            empty the cart
  customers -email PREFIX          look customers up by email
  checkout  -customer ID -payment cash|card|transfer -name -line1 -city -postal -country
`

var errUsage = errors.New("invalid usage")

// pendingKeyName holds the idempotency key of a checkout that has not been
// confirmed yet. A retry after a timeout reuses it, so the server returns the
// order it may already have stored instead of placing a second one.
const pendingKeyName = "storefront.checkout-key"

func main() {
	cfg := config.FromEnv()
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogPretty).With().Str("app", "pos").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, cfg, logger, os.Args[1:], os.Stdout)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	case err != nil:
		logger.Error().Err(err).Msg("pos command failed")
		os.Exit(1)
	}
}

type terminal struct {
	cart    *cartstore.Store
	storage cartstore.Storage
	api     *apiclient.Client
	out     io.Writer
	logger  zerolog.Logger
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	storage, err := cartstore.OpenBolt(cfg.POSCartPath)
	if err != nil {
		return fmt.Errorf("open cart: %w", err)
	}
	defer storage.Close()

	t := &terminal{
		cart:    cartstore.Open(storage, &logger),
		storage: storage,
		api:     apiclient.New(cfg.POSAPIURL, cfg.POSAPIToken),
		out:     out,
		logger:  logger,
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		return t.add(ctx, rest)
	case "set":
		return t.set(rest)
	case "remove":
		return t.remove(rest)
	case "show":
		t.show()
		return nil
	case "clear":
		return t.clear()
	case "customers":
		return t.customers(ctx, rest)
	case "checkout":
		return t.checkout(ctx, cfg, rest)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func parse(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func (t *terminal) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	productID := fs.String("product", "", "product id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *productID == "" {
		return fmt.Errorf("%w: -product is required", errUsage)
	}

	p, err := t.api.GetProduct(ctx, *productID)
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	if !p.Active {
		return fmt.Errorf("product %s is not for sale", p.SKU)
	}
	line, err := t.cart.Add(cartstore.Item{
		ProductID:      p.ID,
		Name:           p.Name,
		UnitPriceCents: p.PriceCents,
		ImageRef:       p.PrimaryImage(),
	})
	if err != nil {
		return err
	}
	if line.Quantity > p.Stock {
		fmt.Fprintf(t.out, "warning: only %d of %s in stock\n", p.Stock, p.Name)
	}
	fmt.Fprintf(t.out, "%s x%d\n", line.Name, line.Quantity)
	return nil
}

func (t *terminal) set(args []string) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	productID := fs.String("product", "", "product id")
	qty := fs.Int("qty", -1, "quantity")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *productID == "" || *qty < 0 {
		return fmt.Errorf("%w: -product and -qty are required", errUsage)
	}
	if err := t.cart.UpdateQuantity(*productID, *qty); err != nil {
		return err
	}
	t.show()
	return nil
}

func (t *terminal) remove(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	productID := fs.String("product", "", "product id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *productID == "" {
		return fmt.Errorf("%w: -product is required", errUsage)
	}
	if err := t.cart.Remove(*productID); err != nil {
		return err
	}
	t.show()
	return nil
}

func (t *terminal) clear() error {
	if err := t.cart.Clear(); err != nil {
		return err
	}
	if err := t.storage.Save(pendingKeyName, []byte{}); err != nil {
		return fmt.Errorf("reset checkout key: %w", err)
	}
	fmt.Fprintln(t.out, "cart cleared")
	return nil
}

func (t *terminal) show() {
	lines := t.cart.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(t.out, "cart is empty")
		return
	}
	for _, l := range lines {
		fmt.Fprintf(t.out, "%-36s  %-24s %3d x %10s = %10s\n",
			l.ProductID, l.Name, l.Quantity, money.Format(l.UnitPriceCents), money.Format(l.SubtotalCents()))
	}
	fmt.Fprintf(t.out, "%d items, total %s\n", t.cart.TotalItems(), money.Format(t.cart.TotalPrice()))
}

func (t *terminal) customers(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("customers", flag.ContinueOnError)
	email := fs.String("email", "", "email prefix")
	if err := parse(fs, args); err != nil {
		return err
	}
	list, err := t.api.FindCustomers(ctx, *email)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(t.out, "no customers found")
		return nil
	}
	for _, c := range list {
		fmt.Fprintf(t.out, "%s  %s\n", c.ID, c.Email)
	}
	return nil
}

func (t *terminal) checkout(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	var (
		req     checkout.Request
		payment string
	)
	fs.StringVar(&req.CustomerID, "customer", "", "customer id")
	fs.StringVar(&payment, "payment", string(domain.PaymentCash), "payment method")
	fs.StringVar(&req.ShippingAddress.FullName, "name", "", "recipient name")
	fs.StringVar(&req.ShippingAddress.Line1, "line1", "", "address line")
	fs.StringVar(&req.ShippingAddress.City, "city", "", "city")
	fs.StringVar(&req.ShippingAddress.PostalCode, "postal", "", "postal code")
	fs.StringVar(&req.ShippingAddress.Country, "country", "", "two-letter country code")
	fs.StringVar(&req.ShippingAddress.Phone, "phone", "", "phone")
	if err := parse(fs, args); err != nil {
		return err
	}
	req.PaymentMethod = domain.PaymentMethod(strings.ToLower(payment))
	req.ShippingAddress.Country = strings.ToUpper(req.ShippingAddress.Country)

	key, err := t.pendingKey()
	if err != nil {
		return err
	}
	req.IdempotencyKey = key

	sub := checkout.New(t.api,
		checkout.WithShipping(checkout.Shipping{
			FlatCents:     cfg.ShippingFlatCents,
			FreeOverCents: cfg.FreeShippingOverCents,
		}),
		checkout.WithLogger(t.logger),
	)
	res, err := sub.Submit(ctx, t.cart, req)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			return fmt.Errorf("%w (check POS_API_TOKEN)", err)
		}
		return err
	}
	if err := t.storage.Save(pendingKeyName, []byte{}); err != nil {
		t.logger.Warn().Err(err).Msg("reset checkout key")
	}

	fmt.Fprintf(t.out, "order %s placed, total %s\n", res.Order.ID, money.Format(res.Order.TotalAmountCents))
	for _, f := range res.StockFailures {
		fmt.Fprintf(t.out, "stock not updated for %s (x%d): %v\n", f.ProductID, f.Quantity, f.Err)
	}
	if !res.CartCleared {
		fmt.Fprintln(t.out, "warning: the local cart could not be cleared; run `pos clear`")
	}
	return nil
}

// pendingKey returns the key of the unconfirmed checkout, creating one when
// there is none.
func (t *terminal) pendingKey() (string, error) {
	raw, err := t.storage.Load(pendingKeyName)
	if err != nil {
		return "", fmt.Errorf("load checkout key: %w", err)
	}
	if len(raw) > 0 {
		return string(raw), nil
	}
	key := uuid.NewString()
	if err := t.storage.Save(pendingKeyName, []byte(key)); err != nil {
		return "", fmt.Errorf("save checkout key: %w", err)
	}
	return key, nil
}
