package httpapi

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/HAB39/3laNota/internal/domain"
)

// csvPageSize fetches every row of a report in one page.
const csvPageSize = 1 << 30

// salesReportToCSV writes one row per sale followed by the summary rows.
// Client names are free text, so fields go through encoding/csv quoting.
func salesReportToCSV(report domain.SalesReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{"transaction_id", "date", "client", "items", "total"}}
	for _, tx := range report.Transactions.Items {
		rows = append(rows, []string{
			tx.ID,
			tx.Date,
			tx.ClientName,
			strconv.Itoa(len(tx.Items)),
			tx.Total.StringFixed(2),
		})
	}
	rows = append(rows,
		[]string{},
		[]string{"summary", "from", report.From},
		[]string{"summary", "to", report.To},
		[]string{"summary", "count", strconv.Itoa(report.Count)},
		[]string{"summary", "total_sales", report.TotalSales.StringFixed(2)},
		[]string{"summary", "average_sale", report.AverageSale.StringFixed(2)},
	)

	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
