package member

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/adamsassn/membership/core"
)

var ErrInvalidPeriod = errors.New("invalid report period")

// Report periods
const (
	PeriodThisMonth   = "this_month"
	PeriodLastMonth   = "last_month"
	PeriodLast3Months = "last_3_months"
	PeriodLast6Months = "last_6_months"
	PeriodLastYear    = "last_year"
	PeriodCustom      = "custom"
)

var memberExportHeader = []string{
	"Full Name", "Username", "Email", "Gender", "WhatsApp Number", "Mobile Number",
	"District", "Blood Group", "Category", "Educational Status", "University",
	"Country", "Year of Joining", "Year of Completion", "Date of Payment", "MID",
}

func memberExportRow(mbr Member) []interface{} {
	return []interface{}{
		mbr.FullName, mbr.Username, mbr.Email, mbr.Gender, mbr.WhatsappNumber, mbr.MobileNumber,
		mbr.District, mbr.BloodGroup, string(mbr.Category), mbr.EducationalStatus, mbr.UniversityName,
		mbr.CountryOfUniversity, mbr.YearOfJoining, mbr.YearOfCompletion, mbr.DateTimeOfPayment, mbr.MID,
	}
}

// ExportCategoryMembers renders the approved members of a category as a spreadsheet.
func (svc *service) ExportCategoryMembers(ctx context.Context, category Category) ([]byte, error) {
	members, err := svc.repo.QueryMembers(ctx,
		&QueryFilter{Status: string(StatusApproved), Category: string(category)},
		[]core.DBOrdering{{Field: "full_name", Ascending: true}},
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying members")
	}

	sheet := "Members"
	rows := make([][]interface{}, 0, len(members))
	for _, mbr := range members {
		rows = append(rows, memberExportRow(mbr))
	}
	return renderSheet(sheet, memberExportHeader, rows)
}

// PeriodRange resolves a report period name to a [from, to) interval.
// For PeriodCustom the provided bounds are used as is.
func PeriodRange(period string, from, to time.Time, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	switch period {
	case PeriodThisMonth:
		return monthStart, now, nil
	case PeriodLastMonth:
		return monthStart.AddDate(0, -1, 0), monthStart, nil
	case PeriodLast3Months:
		return monthStart.AddDate(0, -3, 0), now, nil
	case PeriodLast6Months:
		return monthStart.AddDate(0, -6, 0), now, nil
	case PeriodLastYear:
		return monthStart.AddDate(-1, 0, 0), now, nil
	case PeriodCustom:
		if from.IsZero() || to.IsZero() || to.Before(from) {
			return time.Time{}, time.Time{}, ErrInvalidPeriod
		}
		return from.UTC(), to.UTC(), nil
	}
	return time.Time{}, time.Time{}, ErrInvalidPeriod
}

// RegistrationsReport renders the registrations received over a period as a spreadsheet.
func (svc *service) RegistrationsReport(ctx context.Context, period string, from, to time.Time) ([]byte, error) {
	from, to, err := PeriodRange(period, from, to, time.Now())
	if err != nil {
		return nil, err
	}

	members, err := svc.repo.QueryMembers(ctx,
		&QueryFilter{CreatedFrom: from, CreatedTo: to},
		[]core.DBOrdering{{Field: "created_at", Ascending: false}},
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying members")
	}

	header := []string{"Full Name", "Username", "Email", "Category", "Status", "Registered At"}
	rows := make([][]interface{}, 0, len(members))
	for _, mbr := range members {
		rows = append(rows, []interface{}{
			mbr.FullName, mbr.Username, mbr.Email, string(mbr.Category), string(mbr.Status),
			mbr.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return renderSheet("Registrations", header, rows)
}

// renderSheet builds a single-sheet workbook with a styled header row.
func renderSheet(sheet string, header []string, rows [][]interface{}) ([]byte, error) {
	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), sheet)

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}

	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, errors.Wrap(err, "computing header cell")
		}
		if err = f.SetCellValue(sheet, cell, h); err != nil {
			return nil, errors.Wrap(err, "writing header cell")
		}
		if err = f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return nil, errors.Wrap(err, "styling header cell")
		}
	}

	for r, row := range rows {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, errors.Wrap(err, "computing cell")
			}
			if err = f.SetCellValue(sheet, cell, val); err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("writing cell %s", cell))
			}
		}
	}

	buff, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "rendering workbook")
	}
	return buff.Bytes(), nil
}
