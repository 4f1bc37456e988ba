package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ewhitten/gleaner/record"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Custom errors for spreadsheet operations
var (
	ErrSpreadsheetNotFound = errors.New("spreadsheet not found")
	ErrWorksheetNotFound   = errors.New("worksheet not found")
	ErrInvalidMode         = errors.New("mode must be replace or append")
)

// Worksheet write modes
const (
	ModeReplace = "replace"
	ModeAppend  = "append"
)

// Dimensions for newly created worksheets.
const (
	defaultRows = 1000
	defaultCols = 26
)

// Uploader writes scraped records to Google Sheets using service account
// credentials. Drive access is needed for opening spreadsheets by title and
// for sharing newly created ones.
type Uploader struct {
	sheets *sheets.Service
	drive  *drive.Service
	now    func() time.Time
}

// NewUploader authenticates with a service account JSON key file.
func NewUploader(ctx context.Context, credentialsFile string) (*Uploader, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	jwt, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	ts := jwt.TokenSource(ctx)

	sheetsSrv, err := sheets.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	driveSrv, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client: %w", err)
	}

	slog.Info("authenticated with Google Sheets")
	return &Uploader{
		sheets: sheetsSrv,
		drive:  driveSrv,
		now:    time.Now,
	}, nil
}

// Create makes a new spreadsheet. When shareWith is non-empty the
// spreadsheet is shared with that email as a writer; without sharing, a
// service-account-owned spreadsheet is invisible to the user.
func (u *Uploader) Create(ctx context.Context, title, shareWith string) (string, error) {
	ss, err := u.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create spreadsheet: %w", err)
	}
	slog.Info("created spreadsheet", "title", title, "id", ss.SpreadsheetId)

	if shareWith != "" {
		_, err := u.drive.Permissions.Create(ss.SpreadsheetId, &drive.Permission{
			Type:         "user",
			Role:         "writer",
			EmailAddress: shareWith,
		}).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("failed to share spreadsheet with %s: %w", shareWith, err)
		}
		slog.Info("shared spreadsheet", "with", shareWith)
	}

	return ss.SpreadsheetId, nil
}

// DefaultTitle is the title used when creating a spreadsheet without a
// configured one.
func (u *Uploader) DefaultTitle() string {
	return "Scraped Data - " + u.now().Format("2006-01-02 15:04:05")
}

// Open verifies a spreadsheet ID exists and is reachable with the current
// credentials, returning the canonical ID.
func (u *Uploader) Open(ctx context.Context, spreadsheetID string) (string, error) {
	ss, err := u.sheets.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: id %q: %v", ErrSpreadsheetNotFound, spreadsheetID, err)
	}
	return ss.SpreadsheetId, nil
}

// OpenByTitle finds an existing spreadsheet by exact title via a Drive
// query and returns its ID.
func (u *Uploader) OpenByTitle(ctx context.Context, title string) (string, error) {
	query := fmt.Sprintf(
		"name = '%s' and mimeType = 'application/vnd.google-apps.spreadsheet' and trashed = false",
		strings.ReplaceAll(title, "'", `\'`),
	)
	list, err := u.drive.Files.List().Q(query).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to search for spreadsheet %q: %w", title, err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("%w: title %q", ErrSpreadsheetNotFound, title)
	}

	id := list.Files[0].Id
	slog.Info("opened spreadsheet by title", "title", title, "id", id)
	return id, nil
}

// EnsureWorksheet returns the sheet ID of the named worksheet, creating it
// when missing.
func (u *Uploader) EnsureWorksheet(ctx context.Context, spreadsheetID, name string) (int64, error) {
	ss, err := u.sheets.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get spreadsheet %s: %w", spreadsheetID, err)
	}

	for _, sheet := range ss.Sheets {
		if sheet.Properties.Title == name {
			return sheet.Properties.SheetId, nil
		}
	}

	resp, err := u.sheets.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: name,
					GridProperties: &sheets.GridProperties{
						RowCount:    defaultRows,
						ColumnCount: defaultCols,
					},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to create worksheet %q: %w", name, err)
	}

	slog.Info("created worksheet", "name", name)
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// Upload writes records to a worksheet. In replace mode existing content is
// cleared and a header row is written before the data; in append mode rows
// are added after existing content with no header. Returns the spreadsheet
// URL. Empty input is logged and skipped.
func (u *Uploader) Upload(ctx context.Context, spreadsheetID, worksheet string, records []*record.Record, fields []string, mode string) (string, error) {
	if mode != ModeReplace && mode != ModeAppend {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if len(records) == 0 {
		slog.Warn("no records to upload")
		return "", nil
	}

	if len(fields) == 0 {
		fields = record.Fields(records)
	}

	if _, err := u.EnsureWorksheet(ctx, spreadsheetID, worksheet); err != nil {
		return "", err
	}

	rows := make([][]any, 0, len(records)+1)
	if mode == ModeReplace {
		header := make([]any, len(fields))
		for i, f := range fields {
			header[i] = f
		}
		rows = append(rows, header)
	}
	for _, rec := range records {
		values := rec.Row(fields)
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
		}
		rows = append(rows, row)
	}

	vr := &sheets.ValueRange{Values: rows}
	rangeName := fmt.Sprintf("'%s'", worksheet)

	switch mode {
	case ModeReplace:
		_, err := u.sheets.Spreadsheets.Values.Clear(spreadsheetID, rangeName, &sheets.ClearValuesRequest{}).
			Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("failed to clear worksheet %q: %w", worksheet, err)
		}
		_, err = u.sheets.Spreadsheets.Values.Update(spreadsheetID, rangeName+"!A1", vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("failed to write rows: %w", err)
		}
		slog.Info("replaced worksheet data", "worksheet", worksheet, "records", len(records))

	case ModeAppend:
		_, err := u.sheets.Spreadsheets.Values.Append(spreadsheetID, rangeName, vr).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("failed to append rows: %w", err)
		}
		slog.Info("appended worksheet data", "worksheet", worksheet, "records", len(records))
	}

	return SpreadsheetURL(spreadsheetID), nil
}

// FormatHeader bolds the first row, gives it a light grey background, and
// freezes it so the header stays visible while scrolling.
func (u *Uploader) FormatHeader(ctx context.Context, spreadsheetID, worksheet string) error {
	sheetID, err := u.findWorksheet(ctx, spreadsheetID, worksheet)
	if err != nil {
		return err
	}

	grey := &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9}
	_, err = u.sheets.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:       sheetID,
						StartRowIndex: 0,
						EndRowIndex:   1,
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							TextFormat:      &sheets.TextFormat{Bold: true},
							BackgroundColor: grey,
						},
					},
					Fields: "userEnteredFormat(textFormat,backgroundColor)",
				},
			},
			{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId: sheetID,
						GridProperties: &sheets.GridProperties{
							FrozenRowCount: 1,
						},
					},
					Fields: "gridProperties.frozenRowCount",
				},
			},
		},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to format worksheet %q: %w", worksheet, err)
	}

	slog.Info("formatted header row", "worksheet", worksheet)
	return nil
}

// findWorksheet resolves a worksheet title to its sheet ID.
func (u *Uploader) findWorksheet(ctx context.Context, spreadsheetID, worksheet string) (int64, error) {
	ss, err := u.sheets.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get spreadsheet %s: %w", spreadsheetID, err)
	}
	for _, sheet := range ss.Sheets {
		if sheet.Properties.Title == worksheet {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrWorksheetNotFound, worksheet)
}

// UploadSplit writes column subsets of the same records to multiple
// worksheets in one spreadsheet, e.g. prices to one tab and descriptions to
// another. Each target worksheet is replaced.
func (u *Uploader) UploadSplit(ctx context.Context, spreadsheetID string, mappings map[string][]string, records []*record.Record) error {
	if len(records) == 0 {
		slog.Warn("no records to upload")
		return nil
	}

	for worksheet, fields := range mappings {
		if _, err := u.Upload(ctx, spreadsheetID, worksheet, records, fields, ModeReplace); err != nil {
			return fmt.Errorf("failed to upload worksheet %q: %w", worksheet, err)
		}
	}
	return nil
}

// SpreadsheetURL returns the browser URL for a spreadsheet ID.
func SpreadsheetURL(spreadsheetID string) string {
	return "https://docs.google.com/spreadsheets/d/" + spreadsheetID + "/edit"
}
