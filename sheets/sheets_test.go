package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ewhitten/gleaner/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeBackend records Sheets/Drive API calls and serves canned responses.
type fakeBackend struct {
	mu       []call
	sheetsIn []string // worksheet titles that "exist"
}

type call struct {
	method string
	path   string
	body   string
}

func (f *fakeBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu = append(f.mu, call{method: r.Method, path: r.URL.Path, body: string(body)})

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, ":batchUpdate"):
			fmt.Fprint(w, `{"replies":[{"addSheet":{"properties":{"sheetId":77,"title":"New Sheet"}}}]}`)
		case strings.Contains(r.URL.Path, "/values/"):
			fmt.Fprint(w, `{}`)
		case strings.Contains(r.URL.Path, "/files"):
			fmt.Fprint(w, `{"files":[{"id":"found-by-title","name":"My Sheet"}]}`)
		case strings.Contains(r.URL.Path, "/v4/spreadsheets/"):
			props := make([]string, 0, len(f.sheetsIn))
			for i, title := range f.sheetsIn {
				props = append(props, fmt.Sprintf(`{"properties":{"sheetId":%d,"title":%q}}`, i, title))
			}
			fmt.Fprintf(w, `{"spreadsheetId":"ss1","sheets":[%s]}`, strings.Join(props, ","))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/spreadsheets"):
			fmt.Fprint(w, `{"spreadsheetId":"created-id","properties":{"title":"T"}}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	})
}

// lastCall returns the most recent call whose path contains substr.
func (f *fakeBackend) lastCall(substr string) *call {
	for i := len(f.mu) - 1; i >= 0; i-- {
		if strings.Contains(f.mu[i].path, substr) {
			return &f.mu[i]
		}
	}
	return nil
}

func newTestUploader(t *testing.T, backend *fakeBackend) *Uploader {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	ctx := context.Background()
	sheetsSrv, err := sheets.NewService(ctx,
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	driveSrv, err := drive.NewService(ctx,
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	return &Uploader{
		sheets: sheetsSrv,
		drive:  driveSrv,
		now: func() time.Time {
			return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
		},
	}
}

func uploadRecords() []*record.Record {
	a := record.New()
	a.Set("title", "Blue Widget")
	a.Set("price", "$9.99")

	b := record.New()
	b.Set("title", "Red Widget")
	b.Set("price", "$14.99")

	return []*record.Record{a, b}
}

// TestUploadReplace verifies replace mode clears then writes header+rows
func TestUploadReplace(t *testing.T) {
	backend := &fakeBackend{sheetsIn: []string{"Scraped Data"}}
	u := newTestUploader(t, backend)

	url, err := u.Upload(context.Background(), "ss1", "Scraped Data", uploadRecords(), nil, ModeReplace)
	require.NoError(t, err)
	assert.Equal(t, SpreadsheetURL("ss1"), url)

	clear := backend.lastCall(":clear")
	require.NotNil(t, clear, "replace mode must clear first")

	update := backend.lastCall("/values/")
	require.NotNil(t, update)

	var vr struct {
		Values [][]string `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(update.body), &vr))
	require.Len(t, vr.Values, 3, "header plus two rows")
	assert.Equal(t, []string{"title", "price"}, vr.Values[0])
	assert.Equal(t, []string{"Blue Widget", "$9.99"}, vr.Values[1])
}

// TestUploadAppend verifies append mode writes rows without a header
func TestUploadAppend(t *testing.T) {
	backend := &fakeBackend{sheetsIn: []string{"Scraped Data"}}
	u := newTestUploader(t, backend)

	_, err := u.Upload(context.Background(), "ss1", "Scraped Data", uploadRecords(), nil, ModeAppend)
	require.NoError(t, err)

	assert.Nil(t, backend.lastCall(":clear"), "append must not clear")

	appendCall := backend.lastCall(":append")
	require.NotNil(t, appendCall)

	var vr struct {
		Values [][]string `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(appendCall.body), &vr))
	require.Len(t, vr.Values, 2, "no header row in append mode")
	assert.Equal(t, []string{"Blue Widget", "$9.99"}, vr.Values[0])
}

// TestUploadCreatesWorksheet verifies a missing worksheet is added
func TestUploadCreatesWorksheet(t *testing.T) {
	backend := &fakeBackend{sheetsIn: []string{"Other Tab"}}
	u := newTestUploader(t, backend)

	_, err := u.Upload(context.Background(), "ss1", "Scraped Data", uploadRecords(), nil, ModeReplace)
	require.NoError(t, err)

	add := backend.lastCall(":batchUpdate")
	require.NotNil(t, add)
	assert.Contains(t, add.body, `"addSheet"`)
	assert.Contains(t, add.body, `"Scraped Data"`)
}

// TestUploadEmpty verifies empty input makes no API calls
func TestUploadEmpty(t *testing.T) {
	backend := &fakeBackend{}
	u := newTestUploader(t, backend)

	url, err := u.Upload(context.Background(), "ss1", "Scraped Data", nil, nil, ModeReplace)
	require.NoError(t, err)
	assert.Empty(t, url)
	assert.Empty(t, backend.mu, "no requests should be made")
}

// TestUploadBadMode verifies invalid modes are rejected
func TestUploadBadMode(t *testing.T) {
	u := newTestUploader(t, &fakeBackend{})
	_, err := u.Upload(context.Background(), "ss1", "Scraped Data", uploadRecords(), nil, "upsert")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

// TestUploadFieldOrder verifies a configured column order is honored
func TestUploadFieldOrder(t *testing.T) {
	backend := &fakeBackend{sheetsIn: []string{"Scraped Data"}}
	u := newTestUploader(t, backend)

	_, err := u.Upload(context.Background(), "ss1", "Scraped Data", uploadRecords(),
		[]string{"price", "title"}, ModeReplace)
	require.NoError(t, err)

	update := backend.lastCall("/values/")
	require.NotNil(t, update)

	var vr struct {
		Values [][]string `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(update.body), &vr))
	assert.Equal(t, []string{"price", "title"}, vr.Values[0])
	assert.Equal(t, []string{"$9.99", "Blue Widget"}, vr.Values[1])
}

// TestCreate verifies spreadsheet creation and sharing
func TestCreate(t *testing.T) {
	backend := &fakeBackend{}
	u := newTestUploader(t, backend)

	id, err := u.Create(context.Background(), "My Data", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "created-id", id)

	share := backend.lastCall("/permissions")
	require.NotNil(t, share, "sharing should create a drive permission")
	assert.Contains(t, share.body, "user@example.com")
	assert.Contains(t, share.body, `"writer"`)
}

// TestOpen verifies an existing spreadsheet ID resolves
func TestOpen(t *testing.T) {
	backend := &fakeBackend{}
	u := newTestUploader(t, backend)

	id, err := u.Open(context.Background(), "ss1")
	require.NoError(t, err)
	assert.Equal(t, "ss1", id)
}

// TestOpenByTitle verifies the drive title query
func TestOpenByTitle(t *testing.T) {
	backend := &fakeBackend{}
	u := newTestUploader(t, backend)

	id, err := u.OpenByTitle(context.Background(), "My Sheet")
	require.NoError(t, err)
	assert.Equal(t, "found-by-title", id)
}

// TestFormatHeader verifies the formatting batch request
func TestFormatHeader(t *testing.T) {
	backend := &fakeBackend{sheetsIn: []string{"Scraped Data"}}
	u := newTestUploader(t, backend)

	require.NoError(t, u.FormatHeader(context.Background(), "ss1", "Scraped Data"))

	format := backend.lastCall(":batchUpdate")
	require.NotNil(t, format)
	assert.Contains(t, format.body, `"repeatCell"`)
	assert.Contains(t, format.body, `"frozenRowCount":1`)
	assert.Contains(t, format.body, `"bold":true`)
}

// TestFormatHeaderMissingWorksheet verifies the not-found error
func TestFormatHeaderMissingWorksheet(t *testing.T) {
	backend := &fakeBackend{sheetsIn: []string{"Other"}}
	u := newTestUploader(t, backend)

	err := u.FormatHeader(context.Background(), "ss1", "Scraped Data")
	assert.ErrorIs(t, err, ErrWorksheetNotFound)
}

// TestDefaultTitle verifies the timestamped default title
func TestDefaultTitle(t *testing.T) {
	u := newTestUploader(t, &fakeBackend{})
	assert.Equal(t, "Scraped Data - 2026-08-29 12:00:00", u.DefaultTitle())
}
