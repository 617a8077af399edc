package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mahatab-code/settlement-automation/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// ReportRow is one line of the settlement-day export: merchant, store and
// the free-text withdraw-days descriptor.
type ReportRow struct {
	MerchantName string
	StoreName    string
	StoreID      string
	WithdrawDays string
}

// TransactionRow is one line of the merchant-daily-trx export.
type TransactionRow struct {
	MerchantName string
	StoreName    string
	Date         time.Time
}

var parenthetical = regexp.MustCompile(`\([^)]*\)`)
var nonLetter = regexp.MustCompile(`[^a-z]+`)

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// ParseWithdrawDays extracts the scheduled weekdays from a free-text
// descriptor like "Monday, Wednesday (excluding holidays), Friday".
// Parenthetical notes are stripped first so their contents can never match.
// Anything unparseable degrades to no days matched.
func ParseWithdrawDays(descriptor string) map[time.Weekday]bool {
	days := make(map[time.Weekday]bool)

	cleaned := parenthetical.ReplaceAllString(descriptor, " ")
	for strings.Contains(cleaned, "(") || strings.Contains(cleaned, ")") {
		// unbalanced leftovers
		cleaned = strings.NewReplacer("(", " ", ")", " ").Replace(cleaned)
	}
	cleaned = strings.ToLower(cleaned)
	cleaned = nonLetter.ReplaceAllString(cleaned, " ")

	tokens := strings.Fields(cleaned)
	for _, day := range weekdays {
		name := strings.ToLower(day.String())
		for _, tok := range tokens {
			if tok == name {
				days[day] = true
				break
			}
		}
	}
	return days
}

// ReadScheduleReport parses a downloaded settlement-day XLSX export.
// Columns are located by header name so the console can reorder them
// without breaking the importer.
func ReadScheduleReport(path string) ([]ReportRow, error) {
	rows, err := readSheet(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data found in report %s", path)
	}

	cols := headerIndex(rows[0])
	merchantCol, ok := pickColumn(cols, "merchant", "merchant name")
	if !ok {
		return nil, fmt.Errorf("report %s has no Merchant column", path)
	}
	storeCol, ok := pickColumn(cols, "store", "store name")
	if !ok {
		return nil, fmt.Errorf("report %s has no Store column", path)
	}
	daysCol, ok := pickColumn(cols, "withdraw days", "withdraw day")
	if !ok {
		return nil, fmt.Errorf("report %s has no Withdraw Days column", path)
	}
	storeIDCol, hasStoreID := pickColumn(cols, "store id")

	var out []ReportRow
	for _, row := range rows[1:] {
		r := ReportRow{
			MerchantName: cell(row, merchantCol),
			StoreName:    cell(row, storeCol),
			WithdrawDays: cell(row, daysCol),
		}
		if hasStoreID {
			r.StoreID = cell(row, storeIDCol)
		}
		out = append(out, r)
	}
	return out, nil
}

// ReadTransactionReport parses a downloaded merchant-daily-trx XLSX export.
// Rows with unparseable dates are logged and skipped.
func ReadTransactionReport(path string) ([]TransactionRow, error) {
	rows, err := readSheet(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data found in report %s", path)
	}

	cols := headerIndex(rows[0])
	merchantCol, ok := pickColumn(cols, "merchant name", "merchant")
	if !ok {
		return nil, fmt.Errorf("report %s has no Merchant Name column", path)
	}
	storeCol, ok := pickColumn(cols, "store name", "store")
	if !ok {
		return nil, fmt.Errorf("report %s has no Store Name column", path)
	}
	dateCol, ok := pickColumn(cols, "date", "trx date")
	if !ok {
		return nil, fmt.Errorf("report %s has no Date column", path)
	}

	var out []TransactionRow
	for i, row := range rows[1:] {
		raw := cell(row, dateCol)
		date, err := parseReportDate(raw)
		if err != nil {
			logger.Warn("Skipping transaction row with unparseable date", map[string]interface{}{
				"row":  i + 2,
				"date": raw,
			})
			continue
		}
		out = append(out, TransactionRow{
			MerchantName: cell(row, merchantCol),
			StoreName:    cell(row, storeCol),
			Date:         date,
		})
	}
	return out, nil
}

func readSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in %s", path)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return rows, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func pickColumn(cols map[string]int, names ...string) (int, bool) {
	for _, name := range names {
		if i, ok := cols[name]; ok {
			return i, true
		}
	}
	return 0, false
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseReportDate accepts the date shapes the console's exports have used.
func parseReportDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	layouts := []string{"02-01-2006", "02/01/2006", "2006-01-02", "01-02-06"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
