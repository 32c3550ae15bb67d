package pricing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ConfigProvider sources the pricing rules for a calculation. Implementations
// are read per request so the engine itself stays free of hidden state.
type ConfigProvider interface {
	Config(ctx context.Context) (Config, error)
}

// DBPool matches the query method from *pgxpool.Pool that the provider uses.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	kindDiscount      = "discount"
	kindServiceCharge = "service_charge"
	kindTax           = "tax"
)

// PGConfigProvider loads active pricing rules from the pricing_rules table.
type PGConfigProvider struct {
	pool DBPool
}

func NewPGConfigProvider(pool DBPool) *PGConfigProvider {
	return &PGConfigProvider{pool: pool}
}

func (p *PGConfigProvider) Config(ctx context.Context) (Config, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, kind, name, percent, flat, taxable
		FROM pricing_rules
		WHERE active
		ORDER BY id
	`)
	if err != nil {
		return Config{}, fmt.Errorf("select pricing_rules: %w", err)
	}
	defer rows.Close()

	var cfg Config
	for rows.Next() {
		var (
			id, kind, name string
			percent, flat  decimal.Decimal
			taxable        bool
		)
		if err := rows.Scan(&id, &kind, &name, &percent, &flat, &taxable); err != nil {
			return Config{}, fmt.Errorf("scan pricing rule: %w", err)
		}

		switch kind {
		case kindDiscount:
			cfg.Discounts = append(cfg.Discounts, DiscountRule{ID: id, Name: name, Percent: percent, Flat: flat})
		case kindServiceCharge:
			cfg.ServiceCharges = append(cfg.ServiceCharges, ServiceChargeRule{ID: id, Name: name, Percent: percent, Flat: flat, Taxable: taxable})
		case kindTax:
			cfg.Taxes = append(cfg.Taxes, TaxRule{ID: id, Name: name, Percent: percent, Flat: flat})
		default:
			// tolerate unknown kinds so adding one later does not break old deploys
		}
	}
	if err := rows.Err(); err != nil {
		return Config{}, fmt.Errorf("rows: %w", err)
	}

	return cfg, nil
}

// StaticConfigProvider returns a fixed config; used in tests and for
// single-tenant deployments configured at boot.
type StaticConfigProvider struct {
	Cfg Config
}

func (p StaticConfigProvider) Config(ctx context.Context) (Config, error) {
	return p.Cfg, nil
}
