package admin

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tealeg/xlsx"
)

var exportHeaders = []string{
	"ID", "CreatedAt", "Status", "Total", "Customer", "Phone", "Address", "State",
	"PaymentMethod", "PaymentRef", "Items",
}

// ExportOrders writes every order as a row of an .xlsx workbook.
func (s *Service) ExportOrders(ctx context.Context, w io.Writer) error {
	orders, err := s.ListOrders(ctx)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, h := range exportHeaders {
		headerRow.AddCell().SetString(h)
	}

	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetString(o.ID.String())
		row.AddCell().SetString(o.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetString(string(o.Status))
		row.AddCell().SetString(o.Total.StringFixed(2))
		row.AddCell().SetString(o.DeliveryName)
		row.AddCell().SetString(o.DeliveryPhone)
		row.AddCell().SetString(o.DeliveryAddress)
		row.AddCell().SetString(o.DeliveryState)
		row.AddCell().SetString(o.PaymentMethod)
		row.AddCell().SetString(o.PaymentRef)

		var items []string
		for _, it := range o.Items {
			name := it.ProductName
			if name == "" {
				name = it.ProductID.String()
			}
			items = append(items, fmt.Sprintf("%s x%d", name, it.Quantity))
		}
		row.AddCell().SetString(strings.Join(items, ", "))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
