package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"loomstore/internal/database/models"
)

const (
	summaryCachePrefix = "commissions:summary:"
	summaryCacheTTL    = 5 * time.Minute

	// NoRateLabel is the sentinel reported when no bracket qualified.
	NoRateLabel = "No Rate Applied"
)

func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

type CommissionHandler struct {
	db    *gorm.DB
	redis *redis.Client
	log   *zap.Logger
}

func NewCommissionHandler(db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) *CommissionHandler {
	return &CommissionHandler{
		db:    db,
		redis: redisClient,
		log:   logger,
	}
}

// ResolveRate picks the bracket for a sales amount: active, min_sales <=
// amount, and max_sales null or >= amount. When several qualify the one with
// the greatest min_sales wins. Nil means no bracket qualified, which is a
// valid outcome, not an error.
func ResolveRate(tiers []models.CommissionRate, amount decimal.Decimal) *models.CommissionRate {
	var best *models.CommissionRate
	for i := range tiers {
		t := &tiers[i]
		if !t.IsActive {
			continue
		}
		if t.MinSales.GreaterThan(amount) {
			continue
		}
		if t.MaxSales.Valid && t.MaxSales.Decimal.LessThan(amount) {
			continue
		}
		if best == nil || t.MinSales.GreaterThan(best.MinSales) {
			best = t
		}
	}
	return best
}

// periodBounds returns [first day of the month, first day of the next month)
// in UTC, covering every timestamp on the last calendar day.
func periodBounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

type EmployeeResult struct {
	EmployeeID       uint            `json:"employee_id"`
	EmployeeName     string          `json:"employee_name"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	RateName         string          `json:"commission_rate_name"`
}

type CalculationResult struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"`
	Calculated int              `json:"calculated"`
	Results    []EmployeeResult `json:"results"`
}

// Calculate recomputes commissions for every employee for the given period
// and upserts one EmployeeCommission row per employee. Running it twice with
// unchanged order data converges to the same stored values.
func (h *CommissionHandler) Calculate(ctx context.Context, year, month int) (*CalculationResult, error) {
	if year <= 0 || month < 1 || month > 12 {
		return nil, ErrInvalidPeriod
	}

	var employees []models.User
	err := h.db.WithContext(ctx).
		Where("role = ?", models.RoleEmployee).
		Order("id").
		Find(&employees).Error
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	result := &CalculationResult{Year: year, Month: month}
	if len(employees) == 0 {
		return result, nil
	}

	var tiers []models.CommissionRate
	err = h.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("min_sales asc").
		Find(&tiers).Error
	if err != nil {
		return nil, fmt.Errorf("load commission rates: %w", err)
	}

	periodStart, periodEnd := periodBounds(year, month)

	for _, employee := range employees {
		var sum struct{ Total decimal.Decimal }
		err := h.db.WithContext(ctx).
			Model(&models.Order{}).
			Select("COALESCE(SUM(total_price), 0) as total").
			Where("employee_id = ? AND status = ?", employee.ID, models.StatusDelivered).
			Where("created_at >= ? AND created_at < ?", periodStart, periodEnd).
			Scan(&sum).Error
		if err != nil {
			return nil, fmt.Errorf("sum sales for employee %d: %w", employee.ID, err)
		}
		totalSales := sum.Total

		tier := ResolveRate(tiers, totalSales)
		rate := decimal.Zero
		rateName := NoRateLabel
		var rateID *uint
		if tier != nil {
			rate = tier.CommissionRate
			rateName = tier.Name
			id := tier.ID
			rateID = &id
		}
		amount := totalSales.Mul(rate)

		err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing models.EmployeeCommission
			err := lockForUpdate(tx).
				Where("employee_id = ? AND year = ? AND month = ?", employee.ID, year, month).
				First(&existing).Error
			switch {
			case err == nil:
				existing.TotalSales = totalSales
				existing.CommissionRate = rate
				existing.CommissionAmount = amount
				existing.CommissionRateID = rateID
				return tx.Save(&existing).Error
			case errors.Is(err, gorm.ErrRecordNotFound):
				record := models.EmployeeCommission{
					EmployeeID:       employee.ID,
					Year:             year,
					Month:            month,
					TotalSales:       totalSales,
					CommissionRate:   rate,
					CommissionAmount: amount,
					CommissionRateID: rateID,
				}
				return tx.Create(&record).Error
			default:
				return err
			}
		})
		if err != nil {
			return nil, fmt.Errorf("upsert commission for employee %d: %w", employee.ID, err)
		}

		result.Results = append(result.Results, EmployeeResult{
			EmployeeID:       employee.ID,
			EmployeeName:     employee.Name,
			TotalSales:       totalSales,
			CommissionRate:   rate,
			CommissionAmount: amount,
			RateName:         rateName,
		})
	}

	result.Calculated = len(result.Results)
	h.invalidateSummaryCache(ctx, year, month)
	return result, nil
}

type TopEmployee struct {
	Name             string          `json:"name"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
}

type Summary struct {
	CurrentMonthTotal decimal.Decimal `json:"current_month_total"`
	CurrentYearTotal  decimal.Decimal `json:"current_year_total"`
	TopEmployees      []TopEmployee   `json:"top_employees"`
	Month             int             `json:"month"`
	Year              int             `json:"year"`
}

// Summary aggregates the current month's and year's commission totals plus
// the month's top five earners. Ties are broken by employee name to keep the
// ordering stable.
func (h *CommissionHandler) Summary(ctx context.Context) (*Summary, error) {
	now := time.Now()
	year, month := now.Year(), int(now.Month())

	cacheKey := fmt.Sprintf("%s%d-%02d", summaryCachePrefix, year, month)
	if h.redis != nil {
		if val, err := h.redis.Get(ctx, cacheKey).Result(); err == nil {
			var cached Summary
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return &cached, nil
			}
		} else if err != redis.Nil {
			h.log.Warn("summary cache read failed, falling back to DB", zap.Error(err))
		}
	}

	var monthTotal struct{ Total decimal.Decimal }
	err := h.db.WithContext(ctx).
		Model(&models.EmployeeCommission{}).
		Select("COALESCE(SUM(commission_amount), 0) as total").
		Where("year = ? AND month = ?", year, month).
		Scan(&monthTotal).Error
	if err != nil {
		return nil, fmt.Errorf("sum month commissions: %w", err)
	}

	var yearTotal struct{ Total decimal.Decimal }
	err = h.db.WithContext(ctx).
		Model(&models.EmployeeCommission{}).
		Select("COALESCE(SUM(commission_amount), 0) as total").
		Where("year = ?", year).
		Scan(&yearTotal).Error
	if err != nil {
		return nil, fmt.Errorf("sum year commissions: %w", err)
	}

	var top []TopEmployee
	err = h.db.WithContext(ctx).
		Table("employee_commissions").
		Select("users.name, employee_commissions.total_sales, employee_commissions.commission_amount").
		Joins("JOIN users ON users.id = employee_commissions.employee_id").
		Where("employee_commissions.year = ? AND employee_commissions.month = ?", year, month).
		Order("employee_commissions.commission_amount desc, users.name asc").
		Limit(5).
		Scan(&top).Error
	if err != nil {
		return nil, fmt.Errorf("list top employees: %w", err)
	}

	summary := &Summary{
		CurrentMonthTotal: monthTotal.Total,
		CurrentYearTotal:  yearTotal.Total,
		TopEmployees:      top,
		Month:             month,
		Year:              year,
	}

	if h.redis != nil {
		if payload, err := json.Marshal(summary); err == nil {
			if err := h.redis.Set(ctx, cacheKey, payload, summaryCacheTTL).Err(); err != nil {
				h.log.Warn("summary cache write failed", zap.Error(err))
			}
		}
	}

	return summary, nil
}

func (h *CommissionHandler) invalidateSummaryCache(ctx context.Context, year, month int) {
	if h.redis == nil {
		return
	}
	cacheKey := fmt.Sprintf("%s%d-%02d", summaryCachePrefix, year, month)
	if err := h.redis.Del(ctx, cacheKey).Err(); err != nil {
		h.log.Warn("summary cache invalidation failed", zap.Error(err))
	}
}

type RateInput struct {
	Name           string
	MinSales       decimal.Decimal
	MaxSales       *decimal.Decimal
	CommissionRate decimal.Decimal
}

func (h *CommissionHandler) CreateRate(ctx context.Context, in RateInput) (*models.CommissionRate, error) {
	if in.Name == "" {
		return nil, ErrMissingRateField
	}
	if in.CommissionRate.IsNegative() || in.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidRate
	}

	rate := models.CommissionRate{
		Name:           in.Name,
		MinSales:       in.MinSales,
		CommissionRate: in.CommissionRate,
		IsActive:       true,
	}
	if in.MaxSales != nil {
		rate.MaxSales = decimal.NewNullDecimal(*in.MaxSales)
	}

	if err := h.db.WithContext(ctx).Create(&rate).Error; err != nil {
		return nil, fmt.Errorf("create commission rate: %w", err)
	}
	return &rate, nil
}

// RateUpdate carries only the fields the caller supplied; nil means leave
// unchanged. ClearMaxSales removes the upper bound, since a nil MaxSales is
// ambiguous between "unchanged" and "unbounded".
type RateUpdate struct {
	Name           *string
	MinSales       *decimal.Decimal
	MaxSales       *decimal.Decimal
	ClearMaxSales  bool
	CommissionRate *decimal.Decimal
	IsActive       *bool
}

func (h *CommissionHandler) UpdateRate(ctx context.Context, id uint, upd RateUpdate) (*models.CommissionRate, error) {
	if upd.CommissionRate != nil &&
		(upd.CommissionRate.IsNegative() || upd.CommissionRate.GreaterThan(decimal.NewFromInt(1))) {
		return nil, ErrInvalidRate
	}

	var rate models.CommissionRate
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := lockForUpdate(tx).First(&rate, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRateNotFound
		}
		if err != nil {
			return fmt.Errorf("look up commission rate: %w", err)
		}

		if upd.Name != nil {
			rate.Name = *upd.Name
		}
		if upd.MinSales != nil {
			rate.MinSales = *upd.MinSales
		}
		if upd.ClearMaxSales {
			rate.MaxSales = decimal.NullDecimal{}
		} else if upd.MaxSales != nil {
			rate.MaxSales = decimal.NewNullDecimal(*upd.MaxSales)
		}
		if upd.CommissionRate != nil {
			rate.CommissionRate = *upd.CommissionRate
		}
		if upd.IsActive != nil {
			rate.IsActive = *upd.IsActive
		}

		return tx.Save(&rate).Error
	})
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// DeleteRate soft-deletes: historical commissions keep referencing the row.
func (h *CommissionHandler) DeleteRate(ctx context.Context, id uint) error {
	res := h.db.WithContext(ctx).
		Model(&models.CommissionRate{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate commission rate: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRateNotFound
	}
	return nil
}

func (h *CommissionHandler) ListRates(ctx context.Context) ([]models.CommissionRate, error) {
	var rates []models.CommissionRate
	err := h.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("min_sales asc").
		Find(&rates).Error
	if err != nil {
		return nil, fmt.Errorf("list commission rates: %w", err)
	}
	return rates, nil
}

type CommissionFilter struct {
	EmployeeID *uint
	Year       *int
	Month      *int
}

type EmployeeCommissionRow struct {
	ID               uint            `json:"id"`
	EmployeeID       uint            `json:"employee_id"`
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	CommissionRateID *uint           `json:"commission_rate_id"`
	EmployeeName     string          `json:"employee_name"`
	EmployeeEmail    string          `json:"employee_email"`
	RateName         *string         `json:"commission_rate_name"`
}

func (h *CommissionHandler) ListEmployeeCommissions(ctx context.Context, f CommissionFilter) ([]EmployeeCommissionRow, error) {
	query := h.db.WithContext(ctx).
		Table("employee_commissions ec").
		Select("ec.id, ec.employee_id, ec.year, ec.month, ec.total_sales, " +
			"ec.commission_rate, ec.commission_amount, ec.commission_rate_id, " +
			"u.name as employee_name, u.email as employee_email, cr.name as rate_name").
		Joins("JOIN users u ON ec.employee_id = u.id").
		Joins("LEFT JOIN commission_rates cr ON ec.commission_rate_id = cr.id")

	if f.EmployeeID != nil {
		query = query.Where("ec.employee_id = ?", *f.EmployeeID)
	}
	if f.Year != nil {
		query = query.Where("ec.year = ?", *f.Year)
	}
	if f.Month != nil {
		query = query.Where("ec.month = ?", *f.Month)
	}

	var rows []EmployeeCommissionRow
	err := query.
		Order("ec.year desc, ec.month desc, u.name asc").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list employee commissions: %w", err)
	}
	return rows, nil
}
