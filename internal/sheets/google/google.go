package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"hisab/internal/core"
	ports "hisab/internal/sheets"
)

const defaultConcurrency = 3

var ErrMissingSpreadsheetID = errors.New("missing GOOGLE_SPREADSHEET_ID")

// Config selects the spreadsheet and the service account used to write it.
// CredentialsJSON wins over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	// Concurrency bounds parallel tab writes (default 3).
	Concurrency int
}

// Client mirrors the dataset into a spreadsheet, one tab per collection.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	concurrency   int
	now           func() time.Time
}

var _ ports.DatasetMirror = (*Client)(nil)

// New creates a client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, ErrMissingSpreadsheetID
	}
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "component", "sheets", "spreadsheet_id", cfg.SpreadsheetID)
	return NewWithService(svc, cfg.SpreadsheetID, cfg.Concurrency), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test
// endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID string, concurrency int) *Client {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, concurrency: concurrency, now: time.Now}
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// Mirror makes sure every tab exists, then clears and rewrites them in
// parallel.
func (c *Client) Mirror(ctx context.Context, ds core.Dataset, revision int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	tables := ports.Tables(ds, revision, c.now())
	if err := c.ensureTabs(ctx, tables); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, t := range tables {
		g.Go(func() error {
			return c.writeTable(gctx, t)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("mirror revision %d: %w", revision, err)
	}

	slog.InfoContext(ctx, "Mirrored dataset to Google Sheets",
		"component", "sheets", "revision", revision, "tabs", len(tables))
	return nil
}

func (c *Client) ensureTabs(ctx context.Context, tables []ports.Table) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}

	existing := make(map[string]bool, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			existing[sh.Properties.Title] = true
		}
	}

	var requests []*gsheet.Request
	for _, t := range tables {
		if !existing[t.Name] {
			requests = append(requests, &gsheet.Request{
				AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: t.Name}},
			})
		}
	}
	if len(requests) == 0 {
		return nil
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: requests}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add %d tabs: %w", len(requests), err)
	}
	return nil
}

// valueInputRaw stores cells as typed so user text starting with "=" is
// never evaluated as a formula.
const valueInputRaw = "RAW"

func (c *Client) writeTable(ctx context.Context, t ports.Table) error {
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, t.Name, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", t.Name, err)
	}

	vr := &gsheet.ValueRange{Values: t.Values()}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, t.Name+"!A1", vr).
		ValueInputOption(valueInputRaw).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", t.Name, err)
	}
	return nil
}
