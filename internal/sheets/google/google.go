// Package google runs the check sheet actions directly against the Google
// Sheets API. The sheet has a header row naming the columns; rows are kept
// or dropped by the same rules as the web app so positional ids agree.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cheques/internal/core"
	"cheques/internal/log"
	"cheques/internal/sheets"
)

// Ensure interface conformance
var _ sheets.Backend = (*Client)(nil)

// Config selects the spreadsheet and how to authenticate. A service
// account takes precedence over an OAuth client and token.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location
	now           func() time.Time
	logger        *log.Logger
}

// New authenticates and returns a client.
func New(ctx context.Context, cfg Config, loc *time.Location, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	cred, err := credentialOption(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, cred, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, loc, logger), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, loc *time.Location, logger *log.Logger) *Client {
	if sheetName == "" {
		sheetName = "Cheques"
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		loc:           loc,
		now:           time.Now,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func readSecret(inline, file string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if f := strings.TrimSpace(file); f != "" {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		return b, nil
	}
	return nil, nil
}

func credentialOption(ctx context.Context, cfg Config) (goption.ClientOption, error) {
	sa, err := readSecret(cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("service account: %w", err)
	}
	if sa != nil {
		return goption.WithCredentialsJSON(sa), nil
	}

	client, err := readSecret(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client: %w", err)
	}
	if client == nil {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_OAUTH_CLIENT_JSON, GOOGLE_OAUTH_CLIENT_FILE)")
	}
	tokenJSON, err := readSecret(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	oc, err := gauth.ConfigFromJSON(client, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	tok, err := ParseToken(tokenJSON)
	if err != nil {
		return nil, err
	}
	return goption.WithTokenSource(oc.TokenSource(ctx, tok)), nil
}

// Fetch reads the whole sheet.
func (c *Client) Fetch(ctx context.Context) ([]core.Check, error) {
	snap, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	return snap.rows, nil
}

func (c *Client) read(ctx context.Context) (snapshot, error) {
	rng := fmt.Sprintf("%s!A:Z", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return snapshot{}, transport("fetch", err)
	}
	return parseValues(resp.Values, c.loc), nil
}

// Submit executes one action.
func (c *Client) Submit(ctx context.Context, req sheets.Request) (sheets.Response, error) {
	if err := req.Validate(); err != nil {
		return sheets.Response{}, err
	}
	snap, err := c.read(ctx)
	if err != nil {
		return sheets.Response{}, err
	}

	switch req.Action {
	case sheets.ActionAdd:
		err = c.add(ctx, snap, req)
	case sheets.ActionEdit:
		err = c.edit(ctx, snap, req)
	case sheets.ActionDelete:
		err = c.delete(ctx, snap, *req.ID)
	case sheets.ActionPayment:
		err = c.payment(ctx, snap, *req.ID, *req.IsPaid)
	}
	if err != nil {
		return sheets.Response{Message: err.Error()}, err
	}
	c.logger.InfoContext(ctx, "sheet updated", log.FieldAction, string(req.Action))
	return sheets.Response{Success: true}, nil
}

func (c *Client) add(ctx context.Context, snap snapshot, req sheets.Request) error {
	chk, err := req.Apply(core.Check{}, c.loc)
	if err == nil {
		err = chk.Validate()
	}
	if err != nil {
		return &sheets.ApplicationError{Action: req.Action, Message: err.Error()}
	}
	vr := &gsheet.ValueRange{Values: [][]any{snap.rowValues(req.Fields)}}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.sheetName+"!A1", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return transport(string(req.Action), err)
}

func (c *Client) edit(ctx context.Context, snap snapshot, req sheets.Request) error {
	row, err := snap.sheetRow(req.Action, *req.ID)
	if err != nil {
		return err
	}
	if _, err := req.Apply(snap.rows[*req.ID], c.loc); err != nil {
		return &sheets.ApplicationError{Action: req.Action, Message: err.Error()}
	}
	data, err := snap.cellUpdates(c.sheetName, row, req.Fields)
	if err != nil {
		return &sheets.ApplicationError{Action: req.Action, Message: err.Error()}
	}
	return c.batchValues(ctx, string(req.Action), data)
}

func (c *Client) payment(ctx context.Context, snap snapshot, id int, paid bool) error {
	row, err := snap.sheetRow(sheets.ActionPayment, id)
	if err != nil {
		return err
	}
	next := snap.rows[id].MarkPaid(paid, c.now())
	fields := map[core.Field]string{
		core.FieldPaid:        next.Paid.String(),
		core.FieldPaymentDate: "",
	}
	if next.PaymentDate != nil {
		fields[core.FieldPaymentDate] = next.PaymentDate.Format(time.RFC3339)
	}
	data, err := snap.cellUpdates(c.sheetName, row, fields)
	if err != nil {
		return &sheets.ApplicationError{Action: sheets.ActionPayment, Message: err.Error()}
	}
	return c.batchValues(ctx, string(sheets.ActionPayment), data)
}

func (c *Client) delete(ctx context.Context, snap snapshot, id int) error {
	row, err := snap.sheetRow(sheets.ActionDelete, id)
	if err != nil {
		return err
	}
	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(row - 1),
			EndIndex:   int64(row),
		}},
	}}}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	return transport(string(sheets.ActionDelete), err)
}

func (c *Client) batchValues(ctx context.Context, op string, data []*gsheet.ValueRange) error {
	req := &gsheet.BatchUpdateValuesRequest{ValueInputOption: "USER_ENTERED", Data: data}
	_, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	return transport(op, err)
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets(properties(sheetId,title))").Context(ctx).Do()
	if err != nil {
		return 0, transport("lookup sheet", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheetName {
			return s.Properties.SheetId, nil
		}
	}
	return 0, &sheets.ApplicationError{Action: sheets.ActionDelete, Message: fmt.Sprintf("sheet %q not found", c.sheetName)}
}

// transport wraps an API error, keeping the HTTP status when there is one.
func transport(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &sheets.TransportError{Op: op, Status: gerr.Code, Err: err}
	}
	return &sheets.TransportError{Op: op, Err: err}
}

// ParseToken decodes a token saved by the sheets-auth command.
func ParseToken(b []byte) (*oauth2.Token, error) {
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return tok, nil
}
