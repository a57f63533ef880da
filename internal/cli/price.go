package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/HossEz/stromtracker/pkg/storage"
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Show spot prices",
}

var priceNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Show the current spot price",
	RunE:  runPriceNow,
}

var priceTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's hourly price curve",
	RunE:  runPriceToday,
}

func init() {
	rootCmd.AddCommand(priceCmd)
	priceCmd.AddCommand(priceNowCmd)
	priceCmd.AddCommand(priceTodayCmd)

	priceCmd.PersistentFlags().StringP("region", "r", "", "Price region (default from settings)")
}

// cliRegion resolves the region flag, falling back to the user's
// configured region.
func cliRegion(ctx context.Context, cmd *cobra.Command, store storage.Storage) (string, error) {
	region, _ := cmd.Flags().GetString("region")
	if region != "" {
		return region, nil
	}

	settings, err := store.GetSettings(ctx, userID)
	if err != nil {
		return "", err
	}
	return settings.Region, nil
}

func runPriceNow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	_, store, priceClient, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	region, err := cliRegion(cmd.Context(), cmd, store)
	if err != nil {
		return err
	}

	price, err := priceClient.CurrentPrice(cmd.Context(), region)
	if err != nil {
		return fmt.Errorf("current price: %w", err)
	}

	fmt.Printf("%s: %.4f kr/kWh (incl. MVA)\n", region, price)
	return nil
}

func runPriceToday(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	_, store, priceClient, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	region, err := cliRegion(cmd.Context(), cmd, store)
	if err != nil {
		return err
	}

	curve, err := priceClient.DailyCurve(cmd.Context(), time.Now(), region)
	if err != nil {
		return fmt.Errorf("daily curve: %w", err)
	}

	hours := make([]int, 0, len(curve.Prices))
	for h := range curve.Prices {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	fmt.Printf("Prices for %s %s (incl. MVA):\n", curve.Date.Format("2006-01-02"), region)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, h := range hours {
		fmt.Fprintf(w, "%02d:00\t%.4f kr/kWh\n", h, curve.Prices[h])
	}
	w.Flush()

	return nil
}
