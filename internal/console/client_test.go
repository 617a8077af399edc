package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahatab-code/settlement-automation/config"
	"github.com/mahatab-code/settlement-automation/internal/app/model"
)

// pageDriver models the console's page state: the creation-form controls
// only exist while the session is actually on the creation form, and a
// successful create click navigates away from it.
type pageDriver struct {
	url     string
	onForm  bool
	submits int
}

func (d *pageDriver) Navigate(ctx context.Context, url string) error {
	d.url = url
	d.onForm = strings.Contains(url, settlementCreatePath)
	return nil
}

func (d *pageDriver) CurrentURL(ctx context.Context) (string, error) {
	return d.url, nil
}

func (d *pageDriver) WaitVisible(ctx context.Context, c Control) error {
	if c.Name == ctlMerchantSelect.Name && !d.onForm {
		return fmt.Errorf("%s: %w", c.Name, ErrControlNotFound)
	}
	return nil
}

func (d *pageDriver) Click(ctx context.Context, c Control) error {
	switch {
	case c.Name == ctlLoginSubmit.Name:
		d.url = "https://admin.example.com/spadmin/dashboard"
		d.onForm = false
		return nil
	case c.Name == ctlCreateButton.Name:
		if !d.onForm {
			return fmt.Errorf("%s: %w", c.Name, ErrControlNotFound)
		}
		d.submits++
		d.url = fmt.Sprintf("https://admin.example.com/spadmin/settlement/%d", d.submits)
		d.onForm = false
		return nil
	case c.Name == ctlMerchantSelect.Name, strings.HasPrefix(c.Name, "merchant option"):
		if !d.onForm {
			return fmt.Errorf("%s: %w", c.Name, ErrControlNotFound)
		}
		return nil
	}
	return nil
}

func (d *pageDriver) Fill(ctx context.Context, c Control, value string) error {
	if c.Name == ctlEmail.Name || c.Name == ctlPassword.Name {
		return nil
	}
	if !d.onForm {
		return fmt.Errorf("%s: %w", c.Name, ErrControlNotFound)
	}
	return nil
}

func (d *pageDriver) SelectByText(ctx context.Context, c Control, text string) error {
	if !d.onForm {
		return fmt.Errorf("%s: %w", c.Name, ErrControlNotFound)
	}
	return nil
}

func (d *pageDriver) SelectByValue(ctx context.Context, c Control, value string) error {
	if !d.onForm {
		return fmt.Errorf("%s: %w", c.Name, ErrControlNotFound)
	}
	return nil
}

func (d *pageDriver) Text(ctx context.Context, c Control) (string, error) {
	return "", fmt.Errorf("%s: %w", c.Name, ErrControlNotFound)
}

func (d *pageDriver) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, nil
}

func (d *pageDriver) Close() error {
	return nil
}

func newPageClient(d Driver) *Client {
	admin := config.AdminConfig{
		BaseURL:  "https://admin.example.com/",
		Email:    "ops@example.com",
		Password: "secret",
	}
	browser := config.BrowserConfig{SubmitWait: 5 * time.Second}
	return NewClient(d, admin, browser)
}

func TestClient_CreateSettlement_ConsecutiveRows(t *testing.T) {
	driver := &pageDriver{}
	client := newPageClient(driver)
	ctx := context.Background()

	require.NoError(t, client.EnsureReady(ctx))

	// each accepted submission leaves the creation form; every following
	// row must still go through cleanly
	for _, merchant := range []string{"Acme", "Beta", "Gamma"} {
		status, err := client.CreateSettlement(ctx, model.SettlementRequest{
			MerchantName: merchant,
			StoreName:    merchant + " Store",
			FromDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			ToDate:       time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err, merchant)
		assert.Equal(t, model.SubmissionAccepted, status, merchant)
	}
	assert.Equal(t, 3, driver.submits)
}

func TestClient_CreateSettlement_ReturnsToFormAfterNavigation(t *testing.T) {
	driver := &pageDriver{}
	client := newPageClient(driver)
	ctx := context.Background()

	require.NoError(t, client.EnsureReady(ctx))

	// the session wandered off the creation form (as it does after a
	// success); CreateSettlement must not depend on where it starts
	require.NoError(t, driver.Navigate(ctx, "https://admin.example.com/spadmin/dashboard"))

	status, err := client.CreateSettlement(ctx, model.SettlementRequest{
		MerchantName: "Acme",
		StoreName:    "Acme Store",
		FromDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ToDate:       time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionAccepted, status)
}

func TestClient_Recover_FallsBackToLogin(t *testing.T) {
	driver := &failingNavDriver{pageDriver: &pageDriver{}, failNext: 1}
	client := newPageClient(driver)
	ctx := context.Background()

	require.NoError(t, client.Recover(ctx))
	assert.True(t, driver.onForm)
}

// failingNavDriver fails the first N navigations, then behaves normally.
type failingNavDriver struct {
	*pageDriver
	failNext int
}

func (d *failingNavDriver) Navigate(ctx context.Context, url string) error {
	if d.failNext > 0 {
		d.failNext--
		return errors.New("net::ERR_CONNECTION_RESET")
	}
	return d.pageDriver.Navigate(ctx, url)
}
