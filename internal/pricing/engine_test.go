package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/asthahub/storefront-backend/pkg/enums"
	pkgerrors "github.com/asthahub/storefront-backend/pkg/errors"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testCatalog() map[string]Product {
	return map[string]Product{
		"tea-100": {
			ID:         "tea-100",
			Name:       "Premium Tea",
			Category:   "beverages",
			Price:      dec("250.00"),
			Stock:      40,
			StockKnown: true,
			TaxPercent: dec("5"),
		},
		"honey-7": {
			ID:            "honey-7",
			Name:          "Forest Honey",
			Category:      "grocery",
			Price:         dec("900.00"),
			Stock:         10,
			StockKnown:    true,
			TaxPercent:    dec("0"),
			DiscountType:  enums.ProductDiscountPercent,
			DiscountValue: dec("10"),
		},
		"dates-3": {
			ID:            "dates-3",
			Name:          "Ajwa Dates",
			Category:      "grocery",
			Price:         dec("1200.00"),
			Stock:         5,
			StockKnown:    true,
			TaxPercent:    dec("2.5"),
			DiscountType:  enums.ProductDiscountFixed,
			DiscountValue: dec("100"),
		},
		"oil-2": {
			ID:           "oil-2",
			Name:         "Mustard Oil",
			Category:     "grocery",
			Price:        dec("350.00"),
			Stock:        100,
			StockKnown:   true,
			TaxPercent:   dec("0"),
			DiscountFlat: dec("25"),
		},
		"soap-9": {
			ID:              "soap-9",
			Name:            "Herbal Soap",
			Category:        "care",
			Price:           dec("80.00"),
			Stock:           1000,
			StockKnown:      true,
			TaxPercent:      dec("0"),
			DiscountPercent: dec("50"),
		},
	}
}

func TestPriceSingleLineNoDiscount(t *testing.T) {
	res, err := Price([]Request{{ProductID: "tea-100", Quantity: 2}}, testCatalog(), Options{})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	line := res.Lines[0]
	if !line.Subtotal.Equal(dec("500.00")) {
		t.Fatalf("subtotal = %s", line.Subtotal)
	}
	if !line.TaxAmount.Equal(dec("25.00")) {
		t.Fatalf("tax = %s", line.TaxAmount)
	}
	if !line.Total.Equal(dec("525.00")) {
		t.Fatalf("total = %s", line.Total)
	}
	if !res.Summary.FinalTotal.Equal(dec("525.00")) {
		t.Fatalf("final = %s", res.Summary.FinalTotal)
	}
}

func TestPriceStructuredPercentBeatsLegacy(t *testing.T) {
	catalog := testCatalog()
	p := catalog["honey-7"]
	p.DiscountFlat = dec("500") // legacy field must be ignored
	catalog["honey-7"] = p

	res, err := Price([]Request{{ProductID: "honey-7", Quantity: 1}}, catalog, Options{})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if !res.Lines[0].DiscountAmount.Equal(dec("90.00")) {
		t.Fatalf("discount = %s, want 90.00", res.Lines[0].DiscountAmount)
	}
}

func TestPriceFixedDiscountScalesWithQty(t *testing.T) {
	res, err := Price([]Request{{ProductID: "dates-3", Quantity: 3}}, testCatalog(), Options{})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	line := res.Lines[0]
	if !line.DiscountAmount.Equal(dec("300.00")) {
		t.Fatalf("discount = %s", line.DiscountAmount)
	}
	// tax on the discounted amount: (3600-300) * 2.5% = 82.50
	if !line.TaxAmount.Equal(dec("82.50")) {
		t.Fatalf("tax = %s", line.TaxAmount)
	}
	if !line.Total.Equal(dec("3382.50")) {
		t.Fatalf("total = %s", line.Total)
	}
}

func TestPriceLegacyFlatFallback(t *testing.T) {
	res, err := Price([]Request{{ProductID: "oil-2", Quantity: 4}}, testCatalog(), Options{})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if !res.Lines[0].DiscountAmount.Equal(dec("100.00")) {
		t.Fatalf("discount = %s", res.Lines[0].DiscountAmount)
	}
}

func TestPriceDiscountNeverExceedsGross(t *testing.T) {
	catalog := testCatalog()
	p := catalog["oil-2"]
	p.DiscountFlat = dec("1000") // larger than the unit price
	catalog["oil-2"] = p

	res, err := Price([]Request{{ProductID: "oil-2", Quantity: 2}}, catalog, Options{})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	line := res.Lines[0]
	if !line.DiscountAmount.Equal(line.Subtotal) {
		t.Fatalf("discount %s should be clamped to gross %s", line.DiscountAmount, line.Subtotal)
	}
	if line.Total.IsNegative() {
		t.Fatalf("line total went negative: %s", line.Total)
	}
}

func TestPriceQuantityClamps(t *testing.T) {
	cases := []struct {
		name    string
		qty     int
		stock   int
		wantQty int
	}{
		{"below one", 0, 40, 1},
		{"negative", -5, 40, 1},
		{"above stock", 99, 40, 40},
		{"above hard cap", 4000, 5000, 450},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			catalog := testCatalog()
			p := catalog["tea-100"]
			p.Stock = tc.stock
			catalog["tea-100"] = p

			res, err := Price([]Request{{ProductID: "tea-100", Quantity: tc.qty}}, catalog, Options{})
			if err != nil {
				t.Fatalf("Price: %v", err)
			}
			if res.Lines[0].Quantity != tc.wantQty {
				t.Fatalf("qty = %d, want %d", res.Lines[0].Quantity, tc.wantQty)
			}
		})
	}
}

func TestPriceZeroStockZeroesTheLine(t *testing.T) {
	catalog := testCatalog()
	p := catalog["tea-100"]
	p.Stock = 0
	catalog["tea-100"] = p

	res, err := Price([]Request{{ProductID: "tea-100", Quantity: 3}}, catalog, Options{})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if res.Lines[0].Quantity != 0 {
		t.Fatalf("qty = %d, want 0", res.Lines[0].Quantity)
	}
	if !res.Lines[0].Total.IsZero() {
		t.Fatalf("total = %s, want 0", res.Lines[0].Total)
	}
}

func TestPriceMissingProductPlaceholder(t *testing.T) {
	res, err := Price([]Request{{ProductID: "ghost-1", Quantity: 2}}, testCatalog(), Options{
		MissingProduct: MissingZeroPlaceholder,
	})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	line := res.Lines[0]
	if !line.Missing {
		t.Fatalf("expected missing flag")
	}
	if !line.Total.IsZero() {
		t.Fatalf("placeholder line should cost nothing, got %s", line.Total)
	}
}

func TestPriceMissingProductFailPolicy(t *testing.T) {
	_, err := Price([]Request{{ProductID: "ghost-1", Quantity: 1}}, testCatalog(), Options{
		MissingProduct: MissingFail,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeProductNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPriceRoundsAtEveryStep(t *testing.T) {
	catalog := map[string]Product{
		"odd-1": {
			ID:              "odd-1",
			Name:            "Odd Priced",
			Category:        "misc",
			Price:           dec("33.335"),
			Stock:           100,
			StockKnown:      true,
			TaxPercent:      dec("7.5"),
			DiscountPercent: dec("3"),
		},
	}
	res, err := Price([]Request{{ProductID: "odd-1", Quantity: 3}}, catalog, Options{})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	line := res.Lines[0]
	// gross = 100.005 -> discount = 3.00, after = 97.01, tax = 7.28, total = 104.29
	if !line.DiscountAmount.Equal(dec("3.00")) {
		t.Fatalf("discount = %s", line.DiscountAmount)
	}
	if !line.TaxAmount.Equal(dec("7.28")) {
		t.Fatalf("tax = %s", line.TaxAmount)
	}
	if !line.Total.Equal(dec("104.29")) {
		t.Fatalf("total = %s", line.Total)
	}
}

func TestPriceIsDeterministic(t *testing.T) {
	reqs := []Request{
		{ProductID: "tea-100", Quantity: 2},
		{ProductID: "honey-7", Quantity: 1},
		{ProductID: "soap-9", Quantity: 12},
	}
	first, err := Price(reqs, testCatalog(), Options{})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	for i := 0; i < 50; i++ {
		next, err := Price(reqs, testCatalog(), Options{})
		if err != nil {
			t.Fatalf("Price: %v", err)
		}
		if !next.Summary.FinalTotal.Equal(first.Summary.FinalTotal) {
			t.Fatalf("run %d diverged: %s vs %s", i, next.Summary.FinalTotal, first.Summary.FinalTotal)
		}
	}
}

func TestPriceSummaryMatchesLineSums(t *testing.T) {
	reqs := []Request{
		{ProductID: "tea-100", Quantity: 3},
		{ProductID: "dates-3", Quantity: 2},
		{ProductID: "oil-2", Quantity: 5},
	}
	res, err := Price(reqs, testCatalog(), Options{})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}

	sumSubtotal, sumDiscount, sumTax, sumTotal := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, line := range res.Lines {
		sumSubtotal = sumSubtotal.Add(line.Subtotal)
		sumDiscount = sumDiscount.Add(line.DiscountAmount)
		sumTax = sumTax.Add(line.TaxAmount)
		sumTotal = sumTotal.Add(line.Total)
	}
	if !res.Summary.Subtotal.Equal(sumSubtotal) {
		t.Fatalf("subtotal %s != %s", res.Summary.Subtotal, sumSubtotal)
	}
	if !res.Summary.TotalDiscount.Equal(sumDiscount) {
		t.Fatalf("discount %s != %s", res.Summary.TotalDiscount, sumDiscount)
	}
	if !res.Summary.TotalTax.Equal(sumTax) {
		t.Fatalf("tax %s != %s", res.Summary.TotalTax, sumTax)
	}
	if !res.Summary.FinalTotal.Equal(sumTotal) {
		t.Fatalf("final %s != %s", res.Summary.FinalTotal, sumTotal)
	}
}
