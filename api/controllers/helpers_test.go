package controllers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/asthahub/storefront-backend/internal/catalog"
	checkoutsvc "github.com/asthahub/storefront-backend/internal/checkout"
	"github.com/asthahub/storefront-backend/internal/coupon"
	"github.com/asthahub/storefront-backend/internal/notifications"
	"github.com/asthahub/storefront-backend/pkg/config"
	"github.com/asthahub/storefront-backend/pkg/enums"
	"github.com/asthahub/storefront-backend/pkg/outbox"
)

type txRunner struct {
	db *gorm.DB
}

func (r txRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	models := []any{
		&catalog.Product{},
		&coupon.Coupon{},
		&checkoutsvc.Order{},
		&notifications.Notification{},
		&outbox.Event{},
	}
	if err := conn.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func dec(value string) decimal.Decimal {
	d, _ := decimal.NewFromString(value)
	return d
}

func seedTea(t *testing.T, db *gorm.DB) {
	t.Helper()
	p := catalog.Product{
		ID:            "tea-100",
		Name:          "Green Tea",
		Category:      "grocery",
		Price:         dec("100.00"),
		Stock:         10,
		TaxPercent:    dec("5"),
		DiscountType:  enums.ProductDiscountPercent,
		DiscountValue: dec("10"),
		IsActive:      true,
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func newTestPreviewer(t *testing.T, db *gorm.DB) *checkoutsvc.Previewer {
	t.Helper()
	return checkoutsvc.NewPreviewer(
		catalog.NewRepository(db),
		coupon.NewRepository(db),
		nil,
		config.CheckoutConfig{},
		nil,
	)
}

func newTestCheckout(t *testing.T, db *gorm.DB) *checkoutsvc.Service {
	t.Helper()
	svc, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		DB:       txRunner{db: db},
		Products: catalog.NewRepository(db),
		Coupons:  coupon.NewRepository(db),
		Orders:   checkoutsvc.NewRepository(db),
		Events:   outbox.NewService(outbox.NewRepository(db), nil),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}
