package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"hotelbook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const timestampLayout = "2006-01-02 15:04:05"

var errRowNotFound = errors.New("booking row not found")

var ledgerHeader = []interface{}{
	"Booking ID", "User ID", "Email", "Hotel", "Room ID", "Room", "From", "To", "Nights", "Price", "Total", "Created At",
}

// SheetsLedger mirrors admitted bookings into a spreadsheet, one row per
// booking keyed by the ID in column A.
type SheetsLedger struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
}

func NewSheetsLedger(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*SheetsLedger, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newSheetsLedger(srv, spreadsheetID, sheetName), nil
}

func newSheetsLedger(srv *sheets.Service, spreadsheetID, sheetName string) *SheetsLedger {
	if sheetName == "" {
		sheetName = "Bookings"
	}
	return &SheetsLedger{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowCache:      make(map[int64]int),
	}
}

// TestConnection reads the header cell of the ledger sheet.
func (s *SheetsLedger) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the column titles into the first row.
func (s *SheetsLedger) EnsureHeader(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetName+"!A1:L1", &sheets.ValueRange{
		Values: [][]interface{}{ledgerHeader},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *SheetsLedger) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)

	for i, row := range resp.Values {
		if id, ok := cellID(row); ok {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// AppendBooking writes the booking row, overwriting the existing row for the
// same booking so that a retried task does not duplicate it.
func (s *SheetsLedger) AppendBooking(ctx context.Context, notice *models.BookingNotice) error {
	if notice == nil || notice.Booking.ID == 0 {
		return fmt.Errorf("booking id is required")
	}

	rowIdx, err := s.findBookingRow(ctx, notice.Booking.ID)
	if errors.Is(err, errRowNotFound) {
		_, err = s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A:A", &sheets.ValueRange{
			Values: [][]interface{}{ledgerRow(notice)},
		}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		return err
	}
	if err != nil {
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:L%d", s.sheetName, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{ledgerRow(notice)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// findBookingRow locates the 1-based row for bookingID in column A.
func (s *SheetsLedger) findBookingRow(ctx context.Context, bookingID int64) (int, error) {
	if row, ok := s.getCachedRow(bookingID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if id, ok := cellID(row); ok && id == bookingID {
			s.setCachedRow(bookingID, i+1)
			return i + 1, nil
		}
	}
	return 0, errRowNotFound
}

func cellID(row []interface{}) (int64, bool) {
	if len(row) == 0 {
		return 0, false
	}
	switch v := row[0].(type) {
	case float64:
		return int64(v), v > 0
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil && id > 0
	}
	return 0, false
}

func (s *SheetsLedger) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsLedger) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func ledgerRow(n *models.BookingNotice) []interface{} {
	b := n.Booking
	return []interface{}{
		b.ID,
		b.UserID,
		n.Email,
		n.HotelName,
		b.RoomID,
		n.RoomName,
		b.DateFrom.Format(models.DateLayout),
		b.DateTo.Format(models.DateLayout),
		b.TotalDays(),
		b.Price,
		b.TotalCost(),
		b.CreatedAt.Format(timestampLayout),
	}
}
