package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/internal/policy"
	"github.com/indicadores/apiserver/internal/storage"
	"github.com/indicadores/apiserver/internal/store"
	"github.com/indicadores/apiserver/types"
)

// ReportStore is the object storage used for exported reports.
type ReportStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

const (
	reportPrefix      = "reports/"
	reportContentType = "text/csv"
)

var reportHeader = []string{
	"id", "indicator_id", "indicator_name", "user_id", "real_value", "target_value",
	"compliance_percentage", "period", "state", "observations", "created_at", "updated_at",
}

// ReportService exports indicator calculations to object storage.
type ReportService struct {
	calculations CalculationRepository
	indicators   IndicatorRepository
	objects      ReportStore
	now          func() time.Time
}

func NewReportService(calculations CalculationRepository, indicators IndicatorRepository, objects ReportStore) *ReportService {
	return &ReportService{
		calculations: calculations,
		indicators:   indicators,
		objects:      objects,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ExportIndicator writes every active calculation of the indicator to a CSV
// object and returns its metadata.
func (s *ReportService) ExportIndicator(ctx context.Context, caller policy.Caller, indicatorID int) (types.Report, error) {
	if err := policy.Authorize(caller, policy.ExportReports); err != nil {
		return types.Report{}, err
	}
	indicator, err := s.indicators.Get(ctx, indicatorID)
	if err != nil {
		return types.Report{}, translate(err, indicatorNotFound, indicatorExists)
	}
	calculations, err := s.calculations.List(ctx, store.CalculationFilter{IndicatorID: &indicatorID})
	if err != nil {
		return types.Report{}, translate(err, calculationNotFound, calculationConflict)
	}

	var buf bytes.Buffer
	if err := writeReport(&buf, indicator, calculations); err != nil {
		return types.Report{}, apperr.Internal("failed to build report", err)
	}

	report := types.Report{
		Key:         fmt.Sprintf("%sindicator-%d/%s.csv", reportPrefix, indicatorID, uuid.NewString()),
		IndicatorID: indicatorID,
		Rows:        len(calculations),
		Size:        int64(buf.Len()),
		ContentType: reportContentType,
		CreatedBy:   caller.UserID,
		CreatedAt:   s.now(),
	}
	if err := s.objects.Put(ctx, report.Key, &buf, report.Size, report.ContentType); err != nil {
		return types.Report{}, apperr.Internal("failed to store report", err)
	}
	return report, nil
}

// Open streams a previously exported report. The caller must close the reader.
func (s *ReportService) Open(ctx context.Context, caller policy.Caller, key string) (io.ReadCloser, error) {
	if err := policy.Authorize(caller, policy.ExportReports); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(key, reportPrefix) || strings.Contains(key, "..") {
		return nil, apperr.Validation("invalid report key")
	}
	rc, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, apperr.NotFound("report not found")
		}
		return nil, apperr.Internal("failed to read report", err)
	}
	return rc, nil
}

func writeReport(w io.Writer, indicator types.Indicator, calculations []types.Calculation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for _, c := range calculations {
		record := []string{
			strconv.Itoa(c.ID),
			strconv.Itoa(c.IndicatorID),
			indicator.Name,
			strconv.Itoa(c.UserID),
			strconv.FormatFloat(c.RealValue, 'f', -1, 64),
			strconv.FormatFloat(c.TargetValue, 'f', -1, 64),
			strconv.FormatFloat(c.CompliancePercentage, 'f', 2, 64),
			c.Period,
			string(c.State),
			c.Observations,
			c.CreatedAt.UTC().Format(time.RFC3339),
			c.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
