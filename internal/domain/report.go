package domain

import (
	"sort"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	StockStatusOutOfStock StockStatus = "out-of-stock"
	StockStatusLowStock   StockStatus = "low-stock"
	StockStatusInStock    StockStatus = "in-stock"
)

var statusRank = map[StockStatus]int{
	StockStatusOutOfStock: 0,
	StockStatusLowStock:   1,
	StockStatusInStock:    2,
}

func ClassifyStock(stock, threshold int) StockStatus {
	switch {
	case stock <= 0:
		return StockStatusOutOfStock
	case stock <= threshold:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

type ReportItem struct {
	ProductID  uuid.UUID       `json:"product_id"`
	Name       string          `json:"name"`
	CategoryID string          `json:"category_id,omitempty"`
	Stock      int             `json:"stock"`
	Price      decimal.Decimal `json:"price"`
	Threshold  int             `json:"threshold"`
	Value      decimal.Decimal `json:"value"`
	Status     StockStatus     `json:"status"`
}

type ReportSummary struct {
	TotalProducts int             `json:"total_products"`
	OutOfStock    int             `json:"out_of_stock"`
	LowStock      int             `json:"low_stock"`
	InStock       int             `json:"in_stock"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// BuildReport classifies products and orders them out-of-stock, low-stock,
// in-stock, by name within a group. Products without an explicit active
// threshold use defaultThreshold.
func BuildReport(products []*types.Product, thresholds map[uuid.UUID]int, defaultThreshold int) ([]ReportItem, ReportSummary) {
	items := make([]ReportItem, 0, len(products))
	summary := ReportSummary{TotalValue: decimal.Zero}

	for _, p := range products {
		threshold, ok := thresholds[p.ID]
		if !ok {
			threshold = defaultThreshold
		}
		value := p.Price.Mul(decimal.NewFromInt(int64(p.Stock)))
		status := ClassifyStock(p.Stock, threshold)

		items = append(items, ReportItem{
			ProductID:  p.ID,
			Name:       p.Name,
			CategoryID: p.CategoryID,
			Stock:      p.Stock,
			Price:      p.Price,
			Threshold:  threshold,
			Value:      value,
			Status:     status,
		})

		summary.TotalValue = summary.TotalValue.Add(value)
		switch status {
		case StockStatusOutOfStock:
			summary.OutOfStock++
		case StockStatusLowStock:
			summary.LowStock++
		default:
			summary.InStock++
		}
	}
	summary.TotalProducts = len(items)

	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := statusRank[items[i].Status], statusRank[items[j].Status]
		if ri != rj {
			return ri < rj
		}
		return items[i].Name < items[j].Name
	})

	return items, summary
}
