package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/rl1809/crm/internal/app"
	"github.com/rl1809/crm/internal/config"
	"github.com/rl1809/crm/internal/core/domain"
	"github.com/rl1809/crm/internal/core/service"
	"github.com/rl1809/crm/internal/platform/logger"
)

var seedCustomers = []service.CreateCustomerInput{
	{Name: "Alice Johnson", Email: "alice@example.com", Phone: "+1234567890"},
	{Name: "Bob Smith", Email: "bob@example.com", Phone: "123-456-7890"},
	{Name: "Carol Williams", Email: "carol@example.com", Phone: "+1987654321"},
	{Name: "David Brown", Email: "david@example.com", Phone: "456-789-0123"},
	{Name: "Eva Davis", Email: "eva@example.com"},
}

var seedProducts = []struct {
	name  string
	price string
	stock int
}{
	{"Laptop", "999.99", 10},
	{"Mouse", "29.99", 50},
	{"Keyboard", "79.99", 30},
	{"Monitor", "299.99", 15},
	{"Webcam", "49.99", 25},
	{"Headphones", "129.99", 20},
}

// customer index -> product indexes
var seedOrders = []struct {
	customer int
	products []int
}{
	{0, []int{0, 1, 2}},
	{1, []int{3, 4}},
	{2, []int{5}},
	{0, []int{3, 5}},
}

type summary struct {
	customers, products, orders int
}

func main() {
	cmd := &cli.App{
		Name:  "crm-seed",
		Usage: "load the sample customers, products and orders",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config",
				EnvVars: []string{"CRM_CONFIG"},
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String("config"))
		},
	}
	if err := cmd.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer application.Close()

	sum, err := seed(ctx, application.Mutations, application.Queries, log)
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	log.Info("database seeding completed",
		"customers_created", sum.customers,
		"products_created", sum.products,
		"orders_created", sum.orders,
	)
	return nil
}

// seed creates the sample data set. Records that already exist are reused,
// and orders are only placed when the seeded customers have none, so a
// second run changes nothing.
func seed(ctx context.Context, m *service.MutationService, q *service.QueryService, log *logger.Logger) (summary, error) {
	var sum summary

	customers := make([]domain.Customer, 0, len(seedCustomers))
	for _, in := range seedCustomers {
		c, created, err := findOrCreateCustomer(ctx, m, q, in)
		if err != nil {
			return sum, fmt.Errorf("customer %s: %w", in.Email, err)
		}
		if created {
			sum.customers++
		}
		log.Debug("seed customer", "email", c.Email, "created", created)
		customers = append(customers, *c)
	}

	products := make([]domain.Product, 0, len(seedProducts))
	for _, sp := range seedProducts {
		p, created, err := findOrCreateProduct(ctx, m, q, sp.name, decimal.RequireFromString(sp.price), sp.stock)
		if err != nil {
			return sum, fmt.Errorf("product %s: %w", sp.name, err)
		}
		if created {
			sum.products++
		}
		log.Debug("seed product", "name", p.Name, "price", p.Price.StringFixed(2), "created", created)
		products = append(products, *p)
	}

	existing, err := q.ListOrders(ctx, domain.OrderFilter{CustomerID: customers[0].ID})
	if err != nil {
		return sum, fmt.Errorf("list orders: %w", err)
	}
	if len(existing) > 0 {
		log.Info("orders already seeded, skipping")
		return sum, nil
	}

	for _, so := range seedOrders {
		ids := make([]int64, 0, len(so.products))
		for _, i := range so.products {
			ids = append(ids, products[i].ID)
		}
		o, err := m.CreateOrder(ctx, service.CreateOrderInput{CustomerID: customers[so.customer].ID, ProductIDs: ids})
		if err != nil {
			return sum, fmt.Errorf("order for %s: %w", customers[so.customer].Email, err)
		}
		sum.orders++
		log.Debug("seed order", "id", o.ID, "total", o.TotalAmount.StringFixed(2))
	}
	return sum, nil
}

func findOrCreateCustomer(ctx context.Context, m *service.MutationService, q *service.QueryService, in service.CreateCustomerInput) (*domain.Customer, bool, error) {
	list, err := q.ListCustomers(ctx, domain.CustomerFilter{EmailContains: in.Email})
	if err != nil {
		return nil, false, err
	}
	for _, c := range list {
		if c.Email == in.Email {
			return &c, false, nil
		}
	}
	c, _, err := m.CreateCustomer(ctx, in)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func findOrCreateProduct(ctx context.Context, m *service.MutationService, q *service.QueryService, name string, price decimal.Decimal, stock int) (*domain.Product, bool, error) {
	list, err := q.ListProducts(ctx, domain.ProductFilter{NameContains: name})
	if err != nil {
		return nil, false, err
	}
	for _, p := range list {
		if strings.EqualFold(p.Name, name) {
			return &p, false, nil
		}
	}
	p, err := m.CreateProduct(ctx, service.CreateProductInput{Name: name, Price: price, Stock: &stock})
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}
