package console

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/mahatab-code/settlement-automation/config"
	"github.com/mahatab-code/settlement-automation/pkg/logger"
)

// ChromedpDriver drives a single headless Chrome session through chromedp.
// One session, one row at a time; no parallel tabs.
type ChromedpDriver struct {
	ctx         context.Context
	cancels     []context.CancelFunc
	stepTimeout time.Duration
}

// NewChromedpDriver launches the browser and points downloads at the
// configured directory.
func NewChromedpDriver(cfg *config.BrowserConfig) (*ChromedpDriver, error) {
	downloadDir, err := filepath.Abs(cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve download dir: %w", err)
	}
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	d := &ChromedpDriver{
		ctx:         browserCtx,
		cancels:     []context.CancelFunc{cancelBrowser, cancelAlloc},
		stepTimeout: cfg.StepTimeout,
	}

	// starts the browser and routes downloads before any navigation
	if err := chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir),
	); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Info("Browser session started", map[string]interface{}{
		"headless":     cfg.Headless,
		"download_dir": downloadDir,
	})
	return d, nil
}

// Close tears the browser session down.
func (d *ChromedpDriver) Close() error {
	for _, cancel := range d.cancels {
		cancel()
	}
	return nil
}

func (d *ChromedpDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	stepCtx, cancel := mergeDeadline(ctx, d.ctx, d.stepTimeout)
	defer cancel()
	return chromedp.Run(stepCtx, actions...)
}

// mergeDeadline runs a step on the browser context, bounded by the step
// timeout and cancelled if the caller's context ends first.
func mergeDeadline(caller, browserCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	stepCtx, cancelStep := context.WithTimeout(browserCtx, timeout)
	stop := context.AfterFunc(caller, cancelStep)
	return stepCtx, func() {
		stop()
		cancelStep()
	}
}

func (d *ChromedpDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url))
}

func (d *ChromedpDriver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (d *ChromedpDriver) WaitVisible(ctx context.Context, c Control) error {
	return d.tryEach(ctx, c, func(sel string, opt chromedp.QueryOption) chromedp.Action {
		return chromedp.WaitVisible(sel, opt)
	})
}

func (d *ChromedpDriver) Click(ctx context.Context, c Control) error {
	return d.tryEach(ctx, c, func(sel string, opt chromedp.QueryOption) chromedp.Action {
		return chromedp.Click(sel, opt)
	})
}

func (d *ChromedpDriver) Fill(ctx context.Context, c Control, value string) error {
	return d.tryEach(ctx, c, func(sel string, opt chromedp.QueryOption) chromedp.Action {
		return chromedp.Tasks{
			chromedp.WaitVisible(sel, opt),
			chromedp.Clear(sel, opt),
			chromedp.SendKeys(sel, value, opt),
		}
	})
}

// SelectByText picks the option whose visible text matches, then fires a
// change event so select2-style widgets pick the value up.
func (d *ChromedpDriver) SelectByText(ctx context.Context, c Control, text string) error {
	return d.selectOption(ctx, c, text, "text")
}

// SelectByValue picks the option by its value attribute.
func (d *ChromedpDriver) SelectByValue(ctx context.Context, c Control, value string) error {
	return d.selectOption(ctx, c, value, "value")
}

func (d *ChromedpDriver) selectOption(ctx context.Context, c Control, wanted, by string) error {
	return d.tryEach(ctx, c, func(sel string, opt chromedp.QueryOption) chromedp.Action {
		script := fmt.Sprintf(selectOptionJS, jsString(sel), jsString(wanted), jsString(by))
		var ok bool
		return chromedp.Tasks{
			chromedp.WaitVisible(sel, opt),
			chromedp.Evaluate(script, &ok),
			chromedp.ActionFunc(func(context.Context) error {
				if !ok {
					return fmt.Errorf("no option matching %q", wanted)
				}
				return nil
			}),
		}
	})
}

const selectOptionJS = `(() => {
	const sel = document.querySelector(%s);
	if (!sel) return false;
	const wanted = %s;
	const by = %s;
	for (const opt of sel.options) {
		const candidate = by === "value" ? opt.value : opt.textContent.trim();
		if (candidate === wanted) {
			sel.value = opt.value;
			sel.dispatchEvent(new Event("change", { bubbles: true }));
			return true;
		}
	}
	return false;
})()`

// Text probes quickly: a missing control answers ErrControlNotFound after a
// short wait instead of blocking the whole step timeout.
func (d *ChromedpDriver) Text(ctx context.Context, c Control) (string, error) {
	probeCtx, cancel := mergeDeadline(ctx, d.ctx, 2*time.Second)
	defer cancel()

	var lastErr error
	for _, sel := range c.Selectors {
		var text string
		err := chromedp.Run(probeCtx, chromedp.Text(sel, &text, selectorOption(sel)))
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("%s: %w (%v)", c.Name, ErrControlNotFound, lastErr)
}

func (d *ChromedpDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// tryEach attempts the control's locator strategies in order; the first
// one that completes wins.
func (d *ChromedpDriver) tryEach(ctx context.Context, c Control, build func(sel string, opt chromedp.QueryOption) chromedp.Action) error {
	var lastErr error
	for _, sel := range c.Selectors {
		err := d.run(ctx, build(sel, selectorOption(sel)))
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Debug("Selector failed, trying next", map[string]interface{}{
			"control":  c.Name,
			"selector": sel,
		})
	}
	return fmt.Errorf("%s: %w (%v)", c.Name, ErrControlNotFound, lastErr)
}

func selectorOption(sel string) chromedp.QueryOption {
	if strings.HasPrefix(sel, "//") || strings.HasPrefix(sel, "(//") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func jsString(s string) string {
	return fmt.Sprintf("%q", s)
}
