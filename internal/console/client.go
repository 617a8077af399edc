package console

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mahatab-code/settlement-automation/config"
	"github.com/mahatab-code/settlement-automation/internal/app/model"
	"github.com/mahatab-code/settlement-automation/pkg/logger"
)

// Console page paths, relative to the admin base URL.
const (
	settlementDayPath    = "spadmin/merchant/settlement-day"
	trxReportPath        = "spadmin/report/merchant-daily-trx"
	settlementCreatePath = "accounts/settlement/create"
	loggedInURLFragment  = "/spadmin"
)

// Date formats the console's forms expect.
const (
	createFormDateFormat = "02/01/2006"
	trxFilterDateFormat  = "02-01-2006"
)

// Known controls. Selector lists carry the variants the console has shipped;
// the driver walks them in order.
var (
	ctlEmail          = Control{Name: "login email", Selectors: []string{"#email", `input[name="email"]`}}
	ctlPassword       = Control{Name: "login password", Selectors: []string{"#password-field", `input[type="password"]`}}
	ctlLoginSubmit    = Control{Name: "login submit", Selectors: []string{`//button[@type='submit']`, `button[type="submit"]`}}
	ctlMerchantSelect = Control{Name: "merchant select", Selectors: []string{"#select2-merchant_id-container"}}
	ctlMerchantSearch = Control{Name: "merchant search box", Selectors: []string{"input.select2-search__field"}}
	ctlStoreSelect    = Control{Name: "store select", Selectors: []string{"#store_id", `select[name="store_id"]`}}
	ctlFromDate       = Control{Name: "from date", Selectors: []string{"#fromDate", `input[name="fromDate"]`}}
	ctlToDate         = Control{Name: "to date", Selectors: []string{"#toDate", `input[name="toDate"]`}}
	ctlCreateButton   = Control{Name: "create settlement", Selectors: []string{"#create_settlement", `//button[contains(text(),'Create')]`}}
	ctlInfoAlert      = Control{Name: "info alert", Selectors: []string{".alert-info", ".alert-warning", ".alert"}}
	ctlDaySelect      = Control{Name: "day filter", Selectors: []string{"#select2-day-container"}}
	ctlTableLength    = Control{Name: "table length", Selectors: []string{`select[name="withdraw_days_table_length"]`}}
	ctlFilterSearch   = Control{Name: "filter search", Selectors: []string{"#filter_search", `input[id="filter_search"]`}}
	ctlExcelExport    = Control{Name: "excel export", Selectors: []string{`//button[contains(@class,'buttons-excel')]`, "button.buttons-excel"}}
)

// merchantOption locates a select2 result by its exact visible text.
func merchantOption(name string) Control {
	return Control{
		Name: "merchant option " + name,
		Selectors: []string{
			fmt.Sprintf(`//li[contains(@class,'select2-results__option') and text()=%s]`, xpathString(name)),
		},
	}
}

func dayOption(day string) Control {
	return Control{
		Name: "day option " + day,
		Selectors: []string{
			fmt.Sprintf(`//li[contains(@class,'select2-results__option') and text()=%s]`, xpathString(day)),
		},
	}
}

// phrases the console uses when a settlement window has nothing to settle
var noEligiblePhrases = []string{
	"no eligible transaction",
	"no transaction",
	"nothing to settle",
}

// Client automates the payment-admin console. It satisfies the submitter's
// SettlementConsole contract and gives the importer its report downloads.
type Client struct {
	driver      Driver
	admin       config.AdminConfig
	submitWait  time.Duration
	downloadDir string
	loggedIn    bool
}

// NewClient wraps a driver with the console's flows.
func NewClient(driver Driver, admin config.AdminConfig, browser config.BrowserConfig) *Client {
	return &Client{
		driver:      driver,
		admin:       admin,
		submitWait:  browser.SubmitWait,
		downloadDir: browser.DownloadDir,
	}
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.admin.BaseURL, "/") + "/" + path
}

// Login signs into the console and waits for the post-login redirect.
func (c *Client) Login(ctx context.Context) error {
	c.loggedIn = false

	if err := c.driver.Navigate(ctx, c.admin.BaseURL); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}
	if err := c.driver.WaitVisible(ctx, ctlEmail); err != nil {
		return err
	}
	if err := c.driver.Fill(ctx, ctlEmail, c.admin.Email); err != nil {
		return err
	}
	if err := c.driver.Fill(ctx, ctlPassword, c.admin.Password); err != nil {
		return err
	}
	if err := c.driver.Click(ctx, ctlLoginSubmit); err != nil {
		return err
	}

	if err := c.waitForURLFragment(ctx, loggedInURLFragment, c.submitWait); err != nil {
		return fmt.Errorf("login did not redirect to the admin area: %w", err)
	}

	c.loggedIn = true
	logger.Info("Logged into admin console")
	return nil
}

// OpenCreationForm navigates to the settlement-creation page.
func (c *Client) OpenCreationForm(ctx context.Context) error {
	if err := c.driver.Navigate(ctx, c.url(settlementCreatePath)); err != nil {
		return err
	}
	return c.driver.WaitVisible(ctx, ctlMerchantSelect)
}

// EnsureReady logs in (once) and lands on the creation form.
func (c *Client) EnsureReady(ctx context.Context) error {
	if !c.loggedIn {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}
	return c.OpenCreationForm(ctx)
}

// Recover returns the session to the creation form; when plain navigation
// fails it rebuilds the session from a fresh login.
func (c *Client) Recover(ctx context.Context) error {
	if err := c.OpenCreationForm(ctx); err == nil {
		return nil
	}
	logger.Warn("Creation form unreachable, re-logging in")
	if err := c.Login(ctx); err != nil {
		return err
	}
	return c.OpenCreationForm(ctx)
}

// CreateSettlement fills and submits the creation form for one merchant/
// store window, then watches for a classifiable outcome within the bounded
// wait.
func (c *Client) CreateSettlement(ctx context.Context, req model.SettlementRequest) (model.SubmissionStatus, error) {
	// a successful submission navigates away from the form, so every row
	// starts by returning to it
	if err := c.OpenCreationForm(ctx); err != nil {
		return model.SubmissionUnclassified, err
	}

	// merchant: select2 search-and-pick by exact name
	if err := c.driver.Click(ctx, ctlMerchantSelect); err != nil {
		return model.SubmissionUnclassified, err
	}
	if err := c.driver.Fill(ctx, ctlMerchantSearch, req.MerchantName); err != nil {
		return model.SubmissionUnclassified, err
	}
	if err := c.driver.Click(ctx, merchantOption(req.MerchantName)); err != nil {
		return model.SubmissionUnclassified, fmt.Errorf("merchant %q not found in console: %w", req.MerchantName, err)
	}

	// store: by visible name first, store_id value as fallback
	if err := c.driver.SelectByText(ctx, ctlStoreSelect, req.StoreName); err != nil {
		if req.StoreID == "" {
			return model.SubmissionUnclassified, fmt.Errorf("store %q not found for merchant %q: %w", req.StoreName, req.MerchantName, err)
		}
		if err := c.driver.SelectByValue(ctx, ctlStoreSelect, req.StoreID); err != nil {
			return model.SubmissionUnclassified, fmt.Errorf("store %q (id %s) not found for merchant %q: %w", req.StoreName, req.StoreID, req.MerchantName, err)
		}
	}

	if err := c.driver.Fill(ctx, ctlFromDate, req.FromDate.Format(createFormDateFormat)); err != nil {
		return model.SubmissionUnclassified, err
	}
	if err := c.driver.Fill(ctx, ctlToDate, req.ToDate.Format(createFormDateFormat)); err != nil {
		return model.SubmissionUnclassified, err
	}

	beforeURL, _ := c.driver.CurrentURL(ctx)
	if err := c.driver.Click(ctx, ctlCreateButton); err != nil {
		return model.SubmissionUnclassified, err
	}

	return c.classifySubmission(ctx, beforeURL)
}

// classifySubmission polls for one of the two positive signals until the
// wait bound expires: navigation away from the creation form (accepted) or
// an informational alert saying there was nothing to settle.
func (c *Client) classifySubmission(ctx context.Context, beforeURL string) (model.SubmissionStatus, error) {
	deadline := time.Now().Add(c.submitWait)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return model.SubmissionUnclassified, err
		}

		if text, err := c.driver.Text(ctx, ctlInfoAlert); err == nil && text != "" {
			lower := strings.ToLower(text)
			for _, phrase := range noEligiblePhrases {
				if strings.Contains(lower, phrase) {
					return model.SubmissionNoEligible, nil
				}
			}
		}

		if url, err := c.driver.CurrentURL(ctx); err == nil && url != beforeURL {
			return model.SubmissionAccepted, nil
		}

		time.Sleep(2 * time.Second)
	}
	return model.SubmissionUnclassified, nil
}

// Screenshot captures the current console page.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	return c.driver.Screenshot(ctx)
}

// DownloadSettlementDayReport drives the settlement-day page: filter to the
// given weekday, show all rows, export to Excel. Returns the downloaded
// file's path.
func (c *Client) DownloadSettlementDayReport(ctx context.Context, weekday time.Weekday) (string, error) {
	if !c.loggedIn {
		if err := c.Login(ctx); err != nil {
			return "", err
		}
	}

	if err := c.driver.Navigate(ctx, c.url(settlementDayPath)); err != nil {
		return "", err
	}
	if err := c.driver.Click(ctx, ctlDaySelect); err != nil {
		return "", err
	}
	if err := c.driver.Click(ctx, dayOption(weekday.String())); err != nil {
		return "", err
	}
	// -1 = show all rows so the export covers the full table
	if err := c.driver.SelectByValue(ctx, ctlTableLength, "-1"); err != nil {
		return "", err
	}
	if err := c.driver.Click(ctx, ctlFilterSearch); err != nil {
		return "", err
	}

	return c.export(ctx)
}

// DownloadTransactionReport drives the merchant-daily-trx page for a single
// date and exports it to Excel.
func (c *Client) DownloadTransactionReport(ctx context.Context, date time.Time) (string, error) {
	if !c.loggedIn {
		if err := c.Login(ctx); err != nil {
			return "", err
		}
	}

	if err := c.driver.Navigate(ctx, c.url(trxReportPath)); err != nil {
		return "", err
	}
	filterDate := date.Format(trxFilterDateFormat)
	if err := c.driver.Fill(ctx, ctlFromDate, filterDate); err != nil {
		return "", err
	}
	if err := c.driver.Fill(ctx, ctlToDate, filterDate); err != nil {
		return "", err
	}
	if err := c.driver.Click(ctx, ctlFilterSearch); err != nil {
		return "", err
	}

	return c.export(ctx)
}

func (c *Client) export(ctx context.Context) (string, error) {
	// let the datatable finish loading before exporting
	time.Sleep(10 * time.Second)

	started := time.Now()
	if err := c.driver.Click(ctx, ctlExcelExport); err != nil {
		return "", err
	}

	path, err := c.waitForDownload(ctx, started)
	if err != nil {
		return "", err
	}
	logger.Info("Report downloaded", map[string]interface{}{"path": path})
	return path, nil
}

// waitForDownload polls the download directory for a spreadsheet newer than
// the export click, skipping Chrome's in-flight .crdownload files.
func (c *Client) waitForDownload(ctx context.Context, since time.Time) (string, error) {
	deadline := time.Now().Add(c.submitWait)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		entries, err := os.ReadDir(c.downloadDir)
		if err != nil {
			return "", fmt.Errorf("failed to read download dir: %w", err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasSuffix(name, ".crdownload") {
				continue
			}
			ext := strings.ToLower(filepath.Ext(name))
			if ext != ".xlsx" && ext != ".xls" && ext != ".csv" {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().Before(since) {
				continue
			}
			return filepath.Join(c.downloadDir, name), nil
		}
		time.Sleep(time.Second)
	}
	return "", fmt.Errorf("no report appeared in %s within %s", c.downloadDir, c.submitWait)
}

func (c *Client) waitForURLFragment(ctx context.Context, fragment string, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		url, err := c.driver.CurrentURL(ctx)
		if err == nil && strings.Contains(url, fragment) {
			return nil
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("url never contained %q", fragment)
}

// xpathString quotes a literal for use inside an XPath expression.
func xpathString(s string) string {
	if !strings.Contains(s, `'`) {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, `'`)
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+part+"'")
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}
