package services

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/money"
	"storefront/internal/redis"
)

const (
	DefaultTopProductsLimit = 5
	defaultStatsCacheTTL    = 10 * time.Minute
)

// soldOrderCondition отбирает оплаченные и не отменённые заказы
const soldOrderCondition = `o.is_paid = TRUE AND o.status <> 'cancelled' AND o.created_at BETWEEN $1 AND $2`

// SalesAnalyticsService считает выручку по оплаченным заказам и кеширует отчёты в Redis.
type SalesAnalyticsService struct {
	db             *database.DB
	redis          *redis.Client
	log            *logger.Logger
	cacheTTL       time.Duration
	defaultTop     int
	defaultGroupBy models.SalesGroupBy
	now            func() time.Time
}

// NewSalesAnalyticsService создает сервис отчётов по продажам.
func NewSalesAnalyticsService(db *database.DB, redisClient *redis.Client, log *logger.Logger, cfg *config.AnalyticsConfig) *SalesAnalyticsService {
	s := &SalesAnalyticsService{
		db:             db,
		redis:          redisClient,
		log:            log,
		cacheTTL:       defaultStatsCacheTTL,
		defaultTop:     DefaultTopProductsLimit,
		defaultGroupBy: models.SalesGroupNone,
		now:            time.Now,
	}

	if cfg != nil {
		if cfg.CacheTTLMinutes > 0 {
			s.cacheTTL = time.Duration(cfg.CacheTTLMinutes) * time.Minute
		}
		if cfg.DefaultTopLimit > 0 {
			s.defaultTop = cfg.DefaultTopLimit
		}
		if g := models.SalesGroupBy(cfg.DefaultGroupBy); g.Valid() {
			s.defaultGroupBy = g
		}
	}
	return s
}

// SalesReport возвращает сводку, разбивку по периодам и топ товаров.
func (s *SalesAnalyticsService) SalesReport(ctx context.Context, filter *models.SalesFilter) (*models.SalesReport, error) {
	filter = s.normalizeFilter(filter)
	cacheKey := s.buildCacheKey(filter)

	var cached models.SalesReport
	if s.tryGetFromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	report := &models.SalesReport{
		From:        filter.From,
		To:          filter.To,
		GroupBy:     filter.GroupBy,
		GeneratedAt: s.now(),
	}

	if err := s.fetchSummary(ctx, filter, report); err != nil {
		return nil, err
	}

	periods, err := s.fetchPeriods(ctx, filter)
	if err != nil {
		return nil, err
	}
	report.Periods = periods

	top, err := s.fetchTopProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	report.TopProducts = top

	s.saveToCache(ctx, cacheKey, report)
	return report, nil
}

func (s *SalesAnalyticsService) fetchSummary(ctx context.Context, filter *models.SalesFilter, report *models.SalesReport) error {
	query := `
		SELECT COALESCE(SUM(o.total_amount), 0) AS revenue,
		       COUNT(*) AS orders_count,
		       COALESCE(AVG(o.total_amount), 0) AS average_check,
		       COALESCE(SUM(o.discount_amount), 0) AS discount_total
		FROM orders o
		WHERE ` + soldOrderCondition

	row := s.db.QueryRowContext(ctx, query, filter.From, filter.To)
	if err := row.Scan(&report.Revenue, &report.OrdersCount, &report.AverageCheck, &report.DiscountTotal); err != nil {
		return fmt.Errorf("failed to load sales summary: %w", err)
	}

	report.Revenue = money.Round2(report.Revenue)
	report.AverageCheck = money.Round2(report.AverageCheck)
	report.DiscountTotal = money.Round2(report.DiscountTotal)
	return nil
}

func (s *SalesAnalyticsService) fetchPeriods(ctx context.Context, filter *models.SalesFilter) ([]models.SalesPeriod, error) {
	if filter.GroupBy == models.SalesGroupNone {
		return nil, nil
	}

	// значение GroupBy проверено в normalizeFilter
	query := fmt.Sprintf(`
		SELECT date_trunc('%s', o.created_at) AS period,
		       COALESCE(SUM(o.total_amount), 0) AS revenue,
		       COUNT(*) AS orders_count
		FROM orders o
		WHERE %s
		GROUP BY period
		ORDER BY period ASC
	`, filter.GroupBy, soldOrderCondition)

	rows, err := s.db.QueryContext(ctx, query, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales periods: %w", err)
	}
	defer rows.Close()

	var result []models.SalesPeriod
	for rows.Next() {
		var (
			periodTime time.Time
			item       models.SalesPeriod
		)
		if err := rows.Scan(&periodTime, &item.Revenue, &item.OrdersCount); err != nil {
			return nil, fmt.Errorf("failed to scan sales period: %w", err)
		}
		item.Period = formatPeriod(periodTime, filter.GroupBy)
		item.Revenue = money.Round2(item.Revenue)
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sales periods: %w", err)
	}
	return result, nil
}

func (s *SalesAnalyticsService) fetchTopProducts(ctx context.Context, filter *models.SalesFilter) ([]models.TopProduct, error) {
	query := `
		SELECT oi.product_id,
		       oi.title,
		       COALESCE(SUM(oi.quantity), 0) AS total_quantity,
		       COALESCE(SUM(oi.cost * oi.quantity), 0) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE ` + soldOrderCondition + `
		GROUP BY oi.product_id, oi.title
		ORDER BY total_quantity DESC, revenue DESC, oi.title ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, filter.From, filter.To, filter.TopLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load top products: %w", err)
	}
	defer rows.Close()

	result := []models.TopProduct{}
	for rows.Next() {
		var item models.TopProduct
		if err := rows.Scan(&item.ProductID, &item.Title, &item.Quantity, &item.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan top product: %w", err)
		}
		item.Revenue = money.Round2(item.Revenue)
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top products: %w", err)
	}
	return result, nil
}

func (s *SalesAnalyticsService) normalizeFilter(filter *models.SalesFilter) *models.SalesFilter {
	if filter == nil {
		to := s.now().UTC()
		filter = &models.SalesFilter{From: to.AddDate(0, 0, -30), To: to}
	}
	if filter.TopLimit <= 0 {
		filter.TopLimit = s.defaultTop
	}
	if filter.GroupBy == "" || !filter.GroupBy.Valid() {
		filter.GroupBy = s.defaultGroupBy
	}
	return filter
}

func (s *SalesAnalyticsService) buildCacheKey(filter *models.SalesFilter) string {
	return redis.GenerateKey(redis.KeyPrefixStats, fmt.Sprintf(
		"sales:%s:%s:%s:%d",
		filter.From.Format("2006-01-02"),
		filter.To.Format("2006-01-02"),
		filter.GroupBy,
		filter.TopLimit,
	))
}

func (s *SalesAnalyticsService) tryGetFromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.redis == nil {
		return false
	}
	return s.redis.Get(ctx, key, dest) == nil
}

func (s *SalesAnalyticsService) saveToCache(ctx context.Context, key string, value interface{}) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Failed to cache sales report")
	}
}

func formatPeriod(period time.Time, groupBy models.SalesGroupBy) string {
	switch groupBy {
	case models.SalesGroupMonth:
		return period.Format("2006-01")
	default:
		// для недели это дата понедельника
		return period.Format("2006-01-02")
	}
}
