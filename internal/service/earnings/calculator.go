package earnings

import (
	"fmt"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ResolveConfig returns the single effective config: driver over franchise over global.
// The winner applies as a whole, fields are never merged across scopes.
func ResolveConfig(global models.EarningsConfig, franchise, driver *models.EarningsConfig) models.EarningsConfig {
	switch {
	case driver != nil:
		return *driver
	case franchise != nil:
		return *franchise
	default:
		return global
	}
}

// DailyIncentive splits state.EarnedSoFar into bands: up to target pays
// nothing, the tier1 slice pays per tier1 type, the excess above the tier1
// ceiling (or tier2 min when higher) pays tier2 percent. Invalid tiers are
// skipped and reported.
func DailyIncentive(state models.DailyLimitState, cfg models.EarningsConfig) (decimal.Decimal, []error) {
	var disabled []error

	target := state.Target
	if target.IsNegative() {
		return decimal.Zero, []error{fmt.Errorf("%w: daily target %s is negative", types.ErrConfiguration, target)}
	}

	earned := state.EarnedSoFar
	incentive := decimal.Zero
	ceiling := target

	if cfg.Tier1 != nil {
		if err := validateTier1(*cfg.Tier1, target); err != nil {
			disabled = append(disabled, err)
		} else {
			t1 := *cfg.Tier1
			lower := decimal.Max(target, t1.Min)
			slice := clamp(earned.Sub(lower), decimal.Zero, t1.Max.Sub(lower))

			switch t1.Type {
			case types.IncentiveFullExtra:
				incentive = incentive.Add(slice)
			case types.IncentivePercentage:
				incentive = incentive.Add(percentOf(slice, t1.Percent))
			}
			ceiling = t1.Max
		}
	}

	if cfg.Tier2 != nil {
		if err := validateTier2(*cfg.Tier2); err != nil {
			disabled = append(disabled, err)
		} else {
			lower := decimal.Max(ceiling, cfg.Tier2.Min)
			excess := decimal.Max(decimal.Zero, earned.Sub(lower))
			incentive = incentive.Add(percentOf(excess, cfg.Tier2.Percent))
		}
	}

	return incentive.Round(2), disabled
}

// MonthlySettlement picks one bonus tier, the highest min_earnings not above
// earnings, and one deduction tier, the smallest max_earnings not below
// earnings or else the highest tier. Invalid tiers are skipped and reported.
func MonthlySettlement(monthlyEarnings decimal.Decimal, cfg models.EarningsConfig) (bonus, deductionPercent decimal.Decimal, disabled []error) {
	bonus, deductionPercent = decimal.Zero, decimal.Zero

	var best *models.BonusTier
	for i, t := range cfg.MonthlyBonusTiers {
		if t.MinEarnings.IsNegative() || t.Bonus.IsNegative() {
			disabled = append(disabled, fmt.Errorf("%w: bonus tier %d has negative values", types.ErrConfiguration, i))
			continue
		}
		if t.MinEarnings.GreaterThan(monthlyEarnings) {
			continue
		}
		if best == nil || t.MinEarnings.GreaterThan(best.MinEarnings) {
			best = &cfg.MonthlyBonusTiers[i]
		}
	}
	if best != nil {
		bonus = best.Bonus
	}

	var (
		match   *models.DeductionTier
		highest *models.DeductionTier
	)
	for i, t := range cfg.MonthlyDeductionTiers {
		if t.MaxEarnings.IsNegative() || !validPercent(t.CutPercent) {
			disabled = append(disabled, fmt.Errorf("%w: deduction tier %d is invalid", types.ErrConfiguration, i))
			continue
		}
		tier := &cfg.MonthlyDeductionTiers[i]
		if highest == nil || t.MaxEarnings.GreaterThan(highest.MaxEarnings) {
			highest = tier
		}
		if t.MaxEarnings.LessThan(monthlyEarnings) {
			continue
		}
		if match == nil || t.MaxEarnings.LessThan(match.MaxEarnings) {
			match = tier
		}
	}
	switch {
	case match != nil:
		deductionPercent = match.CutPercent
	case highest != nil:
		deductionPercent = highest.CutPercent
	}

	return bonus, deductionPercent, disabled
}

// ValidateConfig lists every disabled part of cfg without computing anything.
func ValidateConfig(cfg models.EarningsConfig) []error {
	var errs []error
	if cfg.DailyTarget.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: daily target %s is negative", types.ErrConfiguration, cfg.DailyTarget))
	}
	if cfg.Tier1 != nil {
		if err := validateTier1(*cfg.Tier1, cfg.DailyTarget); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Tier2 != nil {
		if err := validateTier2(*cfg.Tier2); err != nil {
			errs = append(errs, err)
		}
	}
	_, _, tierErrs := MonthlySettlement(decimal.Zero, cfg)
	return append(errs, tierErrs...)
}

func validateTier1(t models.IncentiveTier1, target decimal.Decimal) error {
	switch {
	case t.Min.IsNegative() || t.Max.IsNegative():
		return fmt.Errorf("%w: tier1 bounds must not be negative", types.ErrConfiguration)
	case t.Max.LessThan(target):
		return fmt.Errorf("%w: tier1 max %s is below daily target %s", types.ErrConfiguration, t.Max, target)
	case t.Max.LessThan(t.Min):
		return fmt.Errorf("%w: tier1 max %s is below tier1 min %s", types.ErrConfiguration, t.Max, t.Min)
	}

	switch t.Type {
	case types.IncentiveFullExtra:
		return nil
	case types.IncentivePercentage:
		if !validPercent(t.Percent) {
			return fmt.Errorf("%w: tier1 percent %s is outside [0,100]", types.ErrConfiguration, t.Percent)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown tier1 type %q", types.ErrConfiguration, t.Type)
	}
}

func validateTier2(t models.IncentiveTier2) error {
	if t.Min.IsNegative() {
		return fmt.Errorf("%w: tier2 min must not be negative", types.ErrConfiguration)
	}
	if !validPercent(t.Percent) {
		return fmt.Errorf("%w: tier2 percent %s is outside [0,100]", types.ErrConfiguration, t.Percent)
	}
	return nil
}

func validPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && !p.GreaterThan(hundred)
}

func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if hi.LessThan(lo) {
		return lo
	}
	return decimal.Min(decimal.Max(v, lo), hi)
}
