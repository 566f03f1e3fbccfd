package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"
)

const defaultTopLimitFallback = 5

// AnalyticsHandler отдаёт отчёт по продажам.
type AnalyticsHandler struct {
	service SalesAnalyticsProvider
	log     *logger.Logger
	cfg     *config.AnalyticsConfig
}

// NewAnalyticsHandler создает новый обработчик аналитики.
func NewAnalyticsHandler(service SalesAnalyticsProvider, log *logger.Logger, cfg *config.AnalyticsConfig) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		log:     log,
		cfg:     cfg,
	}
}

// SalesReport возвращает отчёт по продажам в JSON или CSV.
func (h *AnalyticsHandler) SalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter, format, err := parseSalesFilter(r, h.cfg, time.Now().UTC())
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analyticsTimeout(h.cfg))
	defer cancel()

	report, err := h.service.SalesReport(ctx, filter)
	if err != nil {
		h.log.WithError(err).Error("Failed to load sales report")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to load analytics")
		return
	}

	if format == "csv" {
		if err := writeSalesCSV(w, report); err != nil {
			h.log.WithError(err).Warn("Failed to stream sales CSV")
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, report)
}

func parseSalesFilter(r *http.Request, cfg *config.AnalyticsConfig, now time.Time) (*models.SalesFilter, string, error) {
	query := r.URL.Query()

	to := endOfDay(now)
	if toParam := query.Get("to"); toParam != "" {
		parsed, err := time.Parse("2006-01-02", toParam)
		if err != nil {
			return nil, "", fmt.Errorf("invalid 'to' date, expected YYYY-MM-DD")
		}
		to = endOfDay(parsed)
	}

	maxRangeDays := 365
	if cfg != nil && cfg.MaxRangeDays > 0 {
		maxRangeDays = cfg.MaxRangeDays
	}

	from := startOfDay(to.AddDate(0, 0, -maxRangeDays+1))
	if fromParam := query.Get("from"); fromParam != "" {
		parsed, err := time.Parse("2006-01-02", fromParam)
		if err != nil {
			return nil, "", fmt.Errorf("invalid 'from' date, expected YYYY-MM-DD")
		}
		from = startOfDay(parsed)
	}

	if from.After(to) {
		return nil, "", fmt.Errorf("'from' date must be before 'to' date")
	}
	if from.Before(startOfDay(to.AddDate(0, 0, -maxRangeDays+1))) {
		return nil, "", fmt.Errorf("date range too wide, max %d days", maxRangeDays)
	}

	groupBy := models.SalesGroupBy(strings.ToLower(query.Get("group_by")))
	if groupBy == "" {
		groupBy = models.SalesGroupNone
		if cfg != nil && models.SalesGroupBy(cfg.DefaultGroupBy).Valid() {
			groupBy = models.SalesGroupBy(cfg.DefaultGroupBy)
		}
	} else if !groupBy.Valid() {
		return nil, "", fmt.Errorf("group_by must be one of: day, week, month, none")
	}

	topDefault := defaultTopLimitFallback
	if cfg != nil && cfg.DefaultTopLimit > 0 {
		topDefault = cfg.DefaultTopLimit
	}

	format := strings.ToLower(query.Get("format"))
	if format != "" && format != "json" && format != "csv" {
		return nil, "", fmt.Errorf("format must be json or csv")
	}

	filter := &models.SalesFilter{
		From:     from,
		To:       to,
		GroupBy:  groupBy,
		TopLimit: parseIntWithDefault(query.Get("top_limit"), topDefault),
	}
	return filter, format, nil
}

func parseIntWithDefault(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}

	return parsed
}

func writeSalesCSV(w http.ResponseWriter, report *models.SalesReport) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=sales.csv")
	w.WriteHeader(http.StatusOK)

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"section", "period", "revenue", "orders_count", "average_check", "discount_total"})
	rangeLabel := fmt.Sprintf("%s..%s", report.From.Format("2006-01-02"), report.To.Format("2006-01-02"))
	_ = writer.Write([]string{
		"summary",
		rangeLabel,
		fmt.Sprintf("%.2f", report.Revenue),
		strconv.Itoa(report.OrdersCount),
		fmt.Sprintf("%.2f", report.AverageCheck),
		fmt.Sprintf("%.2f", report.DiscountTotal),
	})

	for _, period := range report.Periods {
		_ = writer.Write([]string{"period", period.Period, fmt.Sprintf("%.2f", period.Revenue), strconv.Itoa(period.OrdersCount), "", ""})
	}

	_ = writer.Write([]string{})
	_ = writer.Write([]string{"section", "product_id", "title", "quantity", "revenue"})
	for _, item := range report.TopProducts {
		_ = writer.Write([]string{"top_product", item.ProductID.String(), item.Title, strconv.Itoa(item.Quantity), fmt.Sprintf("%.2f", item.Revenue)})
	}

	writer.Flush()
	return writer.Error()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Millisecond*999), time.UTC)
}

func analyticsTimeout(cfg *config.AnalyticsConfig) time.Duration {
	if cfg != nil && cfg.RequestTimeoutSeconds > 0 {
		return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	return 5 * time.Second
}
