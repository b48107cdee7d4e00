package export

import (
	"fmt"
	"io"

	"hotelbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

var header = []interface{}{"Booking ID", "Hotel", "Location", "Room", "User ID", "From", "To", "Nights", "Price", "Total", "Created At"}

// FileName is the attachment name of a bookings report for stay.
func FileName(stay models.Stay) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", stay.From.Format(models.DateLayout), stay.To.Format(models.DateLayout))
}

// WriteBookings renders rows as an XLSX workbook into w. The first row holds
// the reported period, the second the column titles.
func WriteBookings(w io.Writer, stay models.Stay, rows []models.BookingReportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	lastCol, _ := excelize.ColumnNumberToName(len(header))
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s", stay))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	if err := f.SetSheetRow(sheetName, "A2", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(sheetName, "A2", lastCol+"2", headerStyle)

	var total int64
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		values := []interface{}{
			r.ID,
			r.HotelName,
			r.Location,
			r.RoomName,
			r.UserID,
			r.DateFrom.Format(models.DateLayout),
			r.DateTo.Format(models.DateLayout),
			r.TotalDays(),
			r.Price,
			r.TotalCost(),
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
		total += r.TotalCost()
	}

	totalRow := len(rows) + 3
	_ = f.SetCellValue(sheetName, fmt.Sprintf("I%d", totalRow), "Total")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("J%d", totalRow), total)

	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "B", "D", 25)
	_ = f.SetColWidth(sheetName, "E", lastCol, 14)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
