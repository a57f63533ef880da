package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/HossEz/stromtracker/pkg/alerts"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the billing-period summary",
	Long:  `Summarize completed sessions for a billing period, including budget usage.`,
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().Int("year", 0, "Year (default: current)")
	summaryCmd.Flags().Int("month", 0, "Month 1-12 (default: current)")
}

func runSummary(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	t, store, priceClient, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	now := time.Now().In(priceClient.Location())
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("month must be 1-12")
	}

	summary, err := t.Summary(cmd.Context(), userID, year, time.Month(month))
	if err != nil {
		return fmt.Errorf("summarize period: %w", err)
	}

	fmt.Printf("Billing period %d-%02d (%s)\n", summary.Year, summary.Month, summary.Region)
	fmt.Printf("  Sessions:   %d\n", summary.SessionCount)
	fmt.Printf("  Energy:     %.2f kWh\n", summary.TotalKWh)
	fmt.Printf("  Spot cost:  %.2f kr\n", summary.SpotCostNOK)
	fmt.Printf("  Fixed cost: %.2f kr\n", summary.FixedCostNOK)
	fmt.Printf("  Total:      %.2f kr (avg %.2f kr/kWh)\n", summary.TotalCostNOK, summary.AvgPriceNOK)
	if summary.BudgetNOK > 0 {
		fmt.Printf("  Budget:     %.2f kr (%.2f kr remaining)\n", summary.BudgetNOK, summary.RemainingNOK)
	}

	if a := alerts.CheckBudget(summary); a != nil {
		fmt.Printf("  ! %s\n", a.Message)
	}
	return nil
}
