package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"spendtracker/internal/core"
	ports "spendtracker/internal/sheets"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// lastColumn bounds the ledger columns (six fields, A..F).
const lastColumn = "F"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ ports.Ledger = (*Client)(nil)

// Config selects the spreadsheet and the credentials used to reach it.
// Credentials are tried in order: service account JSON, service account file,
// OAuth client + token files, then Application Default Credentials.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientFile    string
	OAuthTokenFile     string
}

// New authenticates once and returns a client bound to one worksheet.
// Extra options are appended after the credential options.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Sheet1"
	}

	authOpts, err := credentialOptions(ctx, cfg)
	if err != nil {
		return nil, ports.AuthError(err)
	}
	svc, err := gsheet.NewService(ctx, append(authOpts, opts...)...)
	if err != nil {
		return nil, ports.AuthError(fmt.Errorf("create sheets service: %w", err))
	}

	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID, "sheet", sheetName)
	return NewWithService(svc, spreadsheetID, sheetName), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func credentialOptions(ctx context.Context, cfg Config) ([]goption.ClientOption, error) {
	scopes := goption.WithScopes(gsheet.SpreadsheetsScope)
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []goption.ClientOption{goption.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)), scopes}, nil
	case cfg.ServiceAccountFile != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Using service account credentials file", "path", cfg.ServiceAccountFile, "size", len(b))
		return []goption.ClientOption{goption.WithCredentialsJSON(b), scopes}, nil
	case cfg.OAuthClientFile != "" && cfg.OAuthTokenFile != "":
		ts, err := oauthTokenSource(ctx, cfg.OAuthClientFile, cfg.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Using OAuth user credentials", "client_file", cfg.OAuthClientFile)
		return []goption.ClientOption{goption.WithTokenSource(ts)}, nil
	default:
		slog.InfoContext(ctx, "Using application default credentials")
		return []goption.ClientOption{scopes}, nil
	}
}

func oauthTokenSource(ctx context.Context, clientFile, tokenFile string) (oauth2.TokenSource, error) {
	b, err := os.ReadFile(clientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	conf, err := oauthgoogle.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	f, err := os.Open(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("open oauth token file: %w", err)
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	return conf.TokenSource(ctx, &tok), nil
}

// Append writes e as one new row. When the worksheet is still empty the
// canonical header row is written in the same call.
func (c *Client) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", ports.WriteError(errors.New("sheets service not initialized"))
	}

	head, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.a1("A1:"+lastColumn+"1")).Context(ctx).Do()
	if err != nil {
		return "", classify(ports.WriteError, fmt.Errorf("read header of %s: %w", c.sheetName, err))
	}

	var values [][]any
	if len(head.Values) == 0 {
		values = append(values, headerRow())
	}
	values = append(values, []any{
		e.EnteredBy,
		e.Category,
		e.PaymentMethod,
		e.Amount.Float(),
		e.FormattedTimestamp(),
		e.Location.String(),
	})

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.a1("A:"+lastColumn), &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", classify(ports.WriteError, fmt.Errorf("append to %s: %w", c.sheetName, err))
	}

	ref := c.sheetName
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// ReadAll returns the whole worksheet. The first row is treated as the
// header, like a spreadsheet "get all records" listing.
func (c *Client) ReadAll(ctx context.Context) (core.Table, error) {
	if c.svc == nil {
		return core.Table{}, ports.ReadError(errors.New("sheets service not initialized"))
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.a1("")).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return core.Table{}, classify(ports.ReadError, fmt.Errorf("read %s: %w", c.sheetName, err))
	}
	return parseValues(resp.Values), nil
}

// a1 builds an A1 range on the configured worksheet. An empty cells part
// addresses the whole sheet.
func (c *Client) a1(cells string) string {
	name := "'" + strings.ReplaceAll(c.sheetName, "'", "''") + "'"
	if cells == "" {
		return name
	}
	return name + "!" + cells
}

func headerRow() []any {
	out := make([]any, len(core.Headers))
	for i, h := range core.Headers {
		out[i] = h
	}
	return out
}

// classify maps authentication failures to ports.ErrAuth and everything else
// to the operation's error class.
func classify(class func(error) error, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		return ports.AuthError(err)
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return ports.AuthError(err)
	}
	return class(err)
}
