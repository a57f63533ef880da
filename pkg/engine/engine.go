// Package engine integrates a constant power draw against hourly spot
// price curves to produce cost results for arbitrary time intervals.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HossEz/stromtracker/internal/metrics"
	"github.com/HossEz/stromtracker/pkg/model"
	"github.com/HossEz/stromtracker/pkg/prices"
)

// EmergencyPriceNOK is the last-resort spot price used when neither the
// hourly curve nor the current price can be resolved. A calculation
// never fails for lack of price data.
const EmergencyPriceNOK = 1.5

// PriceSource resolves hourly curves and the current spot price.
// *prices.Client satisfies it.
type PriceSource interface {
	DailyCurve(ctx context.Context, date time.Time, region string) (model.PriceCurve, error)
	CurrentPrice(ctx context.Context, region string) (float64, error)
	Location() *time.Location
}

// Engine computes consumption results from spot prices.
type Engine struct {
	prices PriceSource
	logger *slog.Logger
	now    func() time.Time
}

// New creates a cost engine.
func New(source PriceSource, logger *slog.Logger) *Engine {
	return &Engine{prices: source, logger: logger, now: time.Now}
}

// NewWithClock creates a cost engine with an injected clock, used by
// tests and by callers that need reproducible estimates.
func NewWithClock(source PriceSource, logger *slog.Logger, now func() time.Time) *Engine {
	return &Engine{prices: source, logger: logger, now: now}
}

type bucket struct {
	hourStart time.Time
	fraction  float64
}

// Cost computes energy and cost for the half-open interval using
// hour-by-hour spot prices. Degenerate intervals (end <= start) yield a
// zero result without any fetch. Hours missing from the curve are priced
// at the current spot price, or EmergencyPriceNOK when that is also
// unavailable, and the result is flagged degraded. Only an invalid
// region is returned as an error.
func (e *Engine) Cost(ctx context.Context, interval model.Interval, watts int, fixedCostPerKWh float64, region string) (model.ConsumptionResult, error) {
	totalHours := interval.Hours()
	if totalHours == 0 {
		return model.ConsumptionResult{}, nil
	}

	loc := e.prices.Location()
	start := interval.Start.In(loc)
	end := interval.End.In(loc)

	var (
		priced    []model.HourCost
		unpriced  []bucket
		curves    = map[string]model.PriceCurve{}
		failed    = map[string]bool{}
		spotCost  float64
		energyKWh float64
	)

	cur := time.Date(start.Year(), start.Month(), start.Day(), start.Hour(), 0, 0, 0, loc)
	for cur.Before(end) {
		hourEnd := cur.Add(time.Hour)

		overlapStart := cur
		if start.After(overlapStart) {
			overlapStart = start
		}
		overlapEnd := hourEnd
		if end.Before(overlapEnd) {
			overlapEnd = end
		}
		fraction := overlapEnd.Sub(overlapStart).Hours()
		if fraction <= 0 {
			cur = hourEnd
			continue
		}

		price, ok, err := e.hourPrice(ctx, cur, region, curves, failed)
		if err != nil {
			return model.ConsumptionResult{}, err
		}
		if !ok {
			unpriced = append(unpriced, bucket{hourStart: cur, fraction: fraction})
			cur = hourEnd
			continue
		}

		hourKWh := fraction * float64(watts) / 1000
		hourCost := hourKWh * price
		energyKWh += hourKWh
		spotCost += hourCost
		priced = append(priced, model.HourCost{
			HourStart: cur,
			Fraction:  round(fraction, 2),
			PriceNOK:  round(price, 4),
			EnergyKWh: round(hourKWh, 4),
			CostNOK:   round(hourCost, 2),
		})

		cur = hourEnd
	}

	degraded := false

	if len(priced) == 0 {
		// No hour anywhere in the interval had a curve price: fall back
		// to one whole-interval calculation at the current spot price.
		fallback := e.fallbackPrice(ctx, region)
		energyKWh = totalHours * float64(watts) / 1000
		spotCost = energyKWh * fallback
		priced = nil
		degraded = true
	} else if len(unpriced) > 0 {
		// Price the gaps at the fallback rate so their energy is never
		// silently dropped and estimates stay monotonic.
		fallback := e.fallbackPrice(ctx, region)
		for _, b := range unpriced {
			hourKWh := b.fraction * float64(watts) / 1000
			hourCost := hourKWh * fallback
			energyKWh += hourKWh
			spotCost += hourCost
			priced = append(priced, model.HourCost{
				HourStart: b.hourStart,
				Fraction:  round(b.fraction, 2),
				PriceNOK:  round(fallback, 4),
				EnergyKWh: round(hourKWh, 4),
				CostNOK:   round(hourCost, 2),
			})
		}
		degraded = true
	}

	if degraded {
		metrics.DegradedCalculations.Inc()
	}

	fixedCost := energyKWh * fixedCostPerKWh
	avgPrice := 0.0
	if energyKWh > 0 {
		avgPrice = spotCost / energyKWh
	}

	return model.ConsumptionResult{
		Hours:        round(totalHours, 2),
		EnergyKWh:    round(energyKWh, 4),
		SpotCostNOK:  round(spotCost, 2),
		FixedCostNOK: round(fixedCost, 2),
		TotalCostNOK: round(spotCost+fixedCost, 2),
		AvgSpotPrice: round(avgPrice, 4),
		Degraded:     degraded,
		Breakdown:    priced,
	}, nil
}

// Estimate computes the running cost of an open session, with the
// interval ending now. Repeated calls against a still-open session
// return non-decreasing energy and cost while prices are stable.
func (e *Engine) Estimate(ctx context.Context, start time.Time, watts int, fixedCostPerKWh float64, region string) (model.ConsumptionResult, error) {
	interval := model.Interval{Start: start, End: e.now().In(e.prices.Location())}
	return e.Cost(ctx, interval, watts, fixedCostPerKWh, region)
}

// hourPrice resolves the curve price for the hour starting at hourStart.
// Failed days are remembered so each day is fetched at most once per
// calculation. Only ErrInvalidRegion is returned as an error.
func (e *Engine) hourPrice(ctx context.Context, hourStart time.Time, region string, curves map[string]model.PriceCurve, failed map[string]bool) (float64, bool, error) {
	day := model.DayOf(hourStart)
	key := day.Format("2006-01-02")

	if failed[key] {
		return 0, false, nil
	}
	curve, ok := curves[key]
	if !ok {
		var err error
		curve, err = e.prices.DailyCurve(ctx, day, region)
		if err != nil {
			if errors.Is(err, prices.ErrInvalidRegion) {
				return 0, false, err
			}
			e.logger.Warn("no price curve for day", "date", key, "region", region, "error", err)
			failed[key] = true
			return 0, false, nil
		}
		curves[key] = curve
	}

	price, ok := curve.Price(hourStart.Hour())
	return price, ok, nil
}

// fallbackPrice is the current spot price, or the emergency constant
// when even that cannot be resolved.
func (e *Engine) fallbackPrice(ctx context.Context, region string) float64 {
	price, err := e.prices.CurrentPrice(ctx, region)
	if err != nil {
		e.logger.Warn("degraded pricing: using emergency fallback price",
			"region", region, "price_nok", EmergencyPriceNOK, "error", err)
		return EmergencyPriceNOK
	}
	return price
}

// round is applied once at the output boundary; accumulation stays in
// full precision to avoid compounding error across hour fractions.
func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
