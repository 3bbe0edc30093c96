package services

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"brokerdesk/apperror"
	"brokerdesk/logger"
	"brokerdesk/models"
)

// ImportResult counts the outcome of a firm import.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	// Rejected maps a 1-based data row number to the reason it was skipped.
	Rejected map[int]string `json:"rejected,omitempty"`
}

// ImportFirms creates one firm per CSV row. The header names the columns:
// firmType, name, locationType, city, country, comment, sectors, coverages,
// regionSectors, regionFocus, globalExposure, indianExposure. List columns
// are separated by ";". Rows that fail validation or name an existing firm
// are skipped, including rows with missing columns.
func (s *FirmService) ImportFirms(ctx context.Context, r io.Reader, createdBy string) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	// Short or long rows are validated like any other row.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	headerIndex := make(map[string]int, len(header))
	for i, h := range header {
		headerIndex[strings.TrimSpace(h)] = i
	}

	log := logger.FromContext(ctx)
	result := &ImportResult{Rejected: map[int]string{}}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, errors.Wrapf(err, "read csv row %d", row)
		}

		input := firmInputFromRow(record, headerIndex)
		if _, _, err := s.Create(ctx, input, createdBy); err != nil {
			if apperror.KindOf(err) == apperror.KindInternal {
				return result, err
			}
			result.Skipped++
			result.Rejected[row] = err.Error()
			log.Warn("Firm row skipped", zap.Int("row", row), zap.Error(err))
			continue
		}
		result.Inserted++
	}
	return result, nil
}

func firmInputFromRow(row []string, headerIndex map[string]int) models.FirmInput {
	field := func(name string) string {
		if idx, ok := headerIndex[name]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}
	list := func(name string) []string {
		value := field(name)
		if value == "" {
			return nil
		}
		return strings.Split(value, ";")
	}
	number := func(name string) *float64 {
		value, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return nil
		}
		return &value
	}

	input := models.FirmInput{
		FirmType:      field("firmType"),
		Name:          field("name"),
		LocationType:  field("locationType"),
		Comment:       field("comment"),
		Sectors:       list("sectors"),
		Coverages:     list("coverages"),
		RegionSectors: list("regionSectors"),
		RegionFocus:   list("regionFocus"),
	}
	if city, country := field("city"), field("country"); city != "" || country != "" {
		input.Address = &models.Address{City: city, Country: country}
	}
	if global, indian := number("globalExposure"), number("indianExposure"); global != nil || indian != nil {
		input.FundSize = &models.FundSize{GlobalExposure: global, IndianExposure: indian}
	}
	return input
}
