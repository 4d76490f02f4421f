// Package google implements the export port on the Google Sheets API using
// OAuth user credentials.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"planora/internal/export"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ export.RowAppender = (*Client)(nil)

// Config carries the spreadsheet target and OAuth material. Inline JSON
// takes precedence over file paths.
type Config struct {
	SpreadsheetID string
	SheetName     string
	ClientJSON    string
	ClientFile    string
	TokenJSON     string
	TokenFile     string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.SheetName == "" {
		return nil, errors.New("missing sheet name")
	}

	clientBytes, err := readMaterial(cfg.ClientJSON, cfg.ClientFile)
	if err != nil {
		return nil, fmt.Errorf("load oauth client: %w", err)
	}
	tokenBytes, err := readMaterial(cfg.TokenJSON, cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("load oauth token: %w", err)
	}

	oauthCfg, err := goauth.ConfigFromJSON(clientBytes, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenBytes, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	httpClient := oauthCfg.Client(ctx, &token)
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
	}, nil
}

func readMaterial(inline, file string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		return os.ReadFile(file)
	default:
		return nil, errors.New("neither inline JSON nor file path provided")
	}
}

// Append adds rows at the bottom of the configured sheet in one API call.
func (c *Client) Append(ctx context.Context, rows []export.Row) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		values = append(values, []any{
			row.Date, row.OwnerID, row.Scope, row.Kind, row.Category, row.Note, row.Amount,
		})
	}

	rng := fmt.Sprintf("%s!A:G", c.sheetName)
	vr := &gsheet.ValueRange{Values: values}

	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	slog.InfoContext(ctx, "Rows appended to sheet",
		"sheet", c.sheetName,
		"rows", len(rows))

	return nil
}
