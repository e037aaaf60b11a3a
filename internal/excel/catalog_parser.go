package excel

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"grocerystock/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var headerAliases = map[string]string{
	"sku":               "sku",
	"item code":         "sku",
	"name":              "name",
	"product":           "name",
	"product name":      "name",
	"description":       "description",
	"category":          "category",
	"barcode":           "barcode",
	"ean":               "barcode",
	"unit":              "unit",
	"current stock":     "current_stock",
	"stock":             "current_stock",
	"quantity":          "current_stock",
	"qty":               "current_stock",
	"min stock level":   "min_stock_level",
	"min stock":         "min_stock_level",
	"minimum":           "min_stock_level",
	"max stock level":   "max_stock_level",
	"max stock":         "max_stock_level",
	"maximum":           "max_stock_level",
	"cost price":        "cost_price",
	"cost":              "cost_price",
	"selling price":     "selling_price",
	"sell price":        "selling_price",
	"price":             "selling_price",
	"reorder quantity":  "reorder_quantity",
	"reorder qty":       "reorder_quantity",
	"supplier":          "supplier_name",
	"supplier name":     "supplier_name",
	"supplier email":    "supplier_email",
	"supplier phone":    "supplier_phone",
}

var requiredColumns = []string{
	"sku",
	"name",
	"category",
	"unit",
	"current_stock",
	"min_stock_level",
	"max_stock_level",
	"cost_price",
	"reorder_quantity",
	"supplier_name",
	"supplier_email",
}

// ParseCatalogRows reads products from the first sheet of a workbook. The
// header row may use any of the known column aliases in any order. Rows
// without a SKU are skipped.
func ParseCatalogRows(reader io.Reader) ([]domain.Product, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}

	colMap := mapColumns(rows[0])
	for _, col := range requiredColumns {
		if _, ok := colMap[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	result := make([]domain.Product, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		sku := strings.TrimSpace(readCell(cells, colMap["sku"]))
		if sku == "" {
			continue
		}
		p, err := parseRow(cells, colMap)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", index+1, err)
		}
		p.SKU = sku
		result = append(result, p)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("excel file has no valid data rows")
	}
	return result, nil
}

func parseRow(cells []string, colMap map[string]int) (domain.Product, error) {
	text := func(col string) string {
		idx, ok := colMap[col]
		if !ok {
			return ""
		}
		return strings.TrimSpace(readCell(cells, idx))
	}

	p := domain.Product{
		Name:        text("name"),
		Description: text("description"),
		Category:    text("category"),
		Unit:        text("unit"),
		Supplier: domain.Supplier{
			Name:  text("supplier_name"),
			Email: text("supplier_email"),
			Phone: text("supplier_phone"),
		},
		IsActive: true,
	}
	if barcode := text("barcode"); barcode != "" {
		p.Barcode = &barcode
	}

	counters := []struct {
		col string
		dst *int
	}{
		{"current_stock", &p.CurrentStock},
		{"min_stock_level", &p.MinStockLevel},
		{"max_stock_level", &p.MaxStockLevel},
		{"reorder_quantity", &p.ReorderQuantity},
	}
	for _, c := range counters {
		value, err := parseInt(text(c.col))
		if err != nil {
			return domain.Product{}, fmt.Errorf("invalid %s: %w", c.col, err)
		}
		*c.dst = value
	}

	cost, err := parseMoney(text("cost_price"))
	if err != nil {
		return domain.Product{}, fmt.Errorf("invalid cost_price: %w", err)
	}
	p.CostPrice = cost

	if raw := text("selling_price"); raw != "" {
		selling, err := parseMoney(raw)
		if err != nil {
			return domain.Product{}, fmt.Errorf("invalid selling_price: %w", err)
		}
		p.SellingPrice = selling
	}
	return p, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		normalized := normalizeHeader(col)
		if normalized == "" {
			continue
		}
		canonical, ok := headerAliases[normalized]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseInt(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}

	asFloat, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	return int(asFloat), nil
}

func parseMoney(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, fmt.Errorf("value is empty")
	}
	value = strings.TrimPrefix(strings.ReplaceAll(value, ",", ""), "$")
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	return parsed, nil
}
