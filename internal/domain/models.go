package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Snapshot files carry prices and totals as bare JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Client struct {
	ID              ID     `json:"id"`
	Name            string `json:"name"`
	Mobile          string `json:"mobile"`
	LastPaymentDate string `json:"lastPaymentDate"`
}

func (c Client) RecordID() string { return string(c.ID) }

type Product struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

func (p Product) RecordID() string { return string(p.ID) }

type LineItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Transaction is a confirmed sale. Records are immutable once written.
type Transaction struct {
	ID       string          `json:"id"`
	ClientID Ref             `json:"clientId"`
	Date     string          `json:"date"`
	Items    []LineItem      `json:"items"`
	Total    decimal.Decimal `json:"total"`
}

func (t Transaction) RecordID() string { return t.ID }

// ItemsTotal sums the line item prices.
func (t Transaction) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range t.Items {
		sum = sum.Add(item.Price)
	}
	return sum
}

// UnmarshalJSON tolerates records written by older clients: items that are
// not a list decode as empty and a total that is not numeric decodes as zero.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       json.RawMessage `json:"id"`
		ClientID json.RawMessage `json:"clientId"`
		Date     json.RawMessage `json:"date"`
		Items    json.RawMessage `json:"items"`
		Total    json.RawMessage `json:"total"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.ID = rawText(raw.ID)
	t.ClientID = Ref(NormalizeID(rawText(raw.ClientID)))
	t.Date = rawText(raw.Date)

	t.Items = []LineItem{}
	if len(raw.Items) > 0 {
		var items []LineItem
		if err := json.Unmarshal(raw.Items, &items); err == nil && items != nil {
			t.Items = items
		}
	}

	t.Total = decimal.Zero
	if total, err := decimal.NewFromString(rawText(raw.Total)); err == nil {
		t.Total = total
	}
	return nil
}

type DailyCounter struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func (c DailyCounter) RecordID() string { return c.ID }

// UnmarshalJSON accepts the day key as text or as a JSON number.
func (c *DailyCounter) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    json.RawMessage `json:"id"`
		Value int             `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ID = strings.TrimSpace(rawText(raw.ID))
	c.Value = raw.Value
	return nil
}

// Snapshot is the portable backup of the whole ledger.
type Snapshot struct {
	Clients       []Client       `json:"clients"`
	Products      []Product      `json:"products"`
	Transactions  []Transaction  `json:"transactions"`
	DailyCounters []DailyCounter `json:"transactionCounters"`
}

type ClientInput struct {
	Name            string `json:"name"`
	Mobile          string `json:"mobile"`
	LastPaymentDate string `json:"lastPaymentDate"`
}

type ProductInput struct {
	Name string `json:"name"`
}

type SaleRequest struct {
	ClientID Ref        `json:"clientId"`
	Date     string     `json:"date"`
	Items    []LineItem `json:"items"`
}

type TransactionView struct {
	Transaction
	ClientName string `json:"clientName"`
}

type ClientDue struct {
	Client
	DueAmount decimal.Decimal `json:"dueAmount"`
}

type StatementEntry struct {
	TransactionID string          `json:"transaction_id"`
	Date          string          `json:"date"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

type Statement struct {
	Client  Client               `json:"client"`
	Entries Page[StatementEntry] `json:"entries"`
	Total   decimal.Decimal      `json:"total"`
}

type SalesReport struct {
	From         string                `json:"from"`
	To           string                `json:"to"`
	TotalSales   decimal.Decimal       `json:"total_sales"`
	Count        int                   `json:"count"`
	AverageSale  decimal.Decimal       `json:"average_sale"`
	Transactions Page[TransactionView] `json:"transactions"`
}

type AccumulationPoint struct {
	Key     string          `json:"key"`
	Revenue decimal.Decimal `json:"revenue"`
	Count   int             `json:"count"`
}

type MergeCount struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

type ImportResult struct {
	Clients       MergeCount `json:"clients"`
	Products      MergeCount `json:"products"`
	Transactions  MergeCount `json:"transactions"`
	DailyCounters MergeCount `json:"transaction_counters"`
}

// rawText returns the text of a JSON string or number token, or "" for
// anything else.
func rawText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return s
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return strings.TrimSpace(string(trimmed))
	default:
		return ""
	}
}
