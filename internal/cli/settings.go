package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HossEz/stromtracker/pkg/model"
	"github.com/HossEz/stromtracker/pkg/prices"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change user settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more settings",
	RunE:  runSettingsSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)

	settingsSetCmd.Flags().Float64("fixed-cost", -1, "Fixed cost per kWh (nettleie + avgifter) in NOK")
	settingsSetCmd.Flags().Float64("budget", -1, "Monthly budget in NOK (0 disables)")
	settingsSetCmd.Flags().Int("period-start-day", 0, "Day of month the billing period starts (1-28)")
	settingsSetCmd.Flags().String("region", "", "Price region (NO1-NO5)")
	settingsSetCmd.Flags().Int("max-duration", -1, "Max session duration in hours (0 disables)")
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	_, store, _, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	settings, err := store.GetSettings(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}

	region, err := prices.Lookup(settings.Region)
	regionLabel := settings.Region
	if err == nil {
		regionLabel = fmt.Sprintf("%s (%s)", region.Code, region.Label)
	}

	fmt.Printf("Settings for user %d:\n", userID)
	fmt.Printf("  Fixed cost:       %.2f kr/kWh\n", settings.FixedCostNOK)
	if settings.BudgetNOK > 0 {
		fmt.Printf("  Budget:           %.2f kr\n", settings.BudgetNOK)
	} else {
		fmt.Printf("  Budget:           (none)\n")
	}
	fmt.Printf("  Period start day: %d\n", settings.PeriodStartDay)
	fmt.Printf("  Region:           %s\n", regionLabel)
	if settings.MaxDurationHours > 0 {
		fmt.Printf("  Max duration:     %dh\n", settings.MaxDurationHours)
	} else {
		fmt.Printf("  Max duration:     (disabled)\n")
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var patch model.SettingsPatch
	if cmd.Flags().Changed("fixed-cost") {
		v, _ := cmd.Flags().GetFloat64("fixed-cost")
		if v < 0 {
			return fmt.Errorf("fixed cost must be >= 0")
		}
		patch.FixedCostNOK = &v
	}
	if cmd.Flags().Changed("budget") {
		v, _ := cmd.Flags().GetFloat64("budget")
		if v < 0 {
			return fmt.Errorf("budget must be >= 0")
		}
		patch.BudgetNOK = &v
	}
	if cmd.Flags().Changed("period-start-day") {
		v, _ := cmd.Flags().GetInt("period-start-day")
		if v < 1 || v > 28 {
			return fmt.Errorf("period start day must be 1-28")
		}
		patch.PeriodStartDay = &v
	}
	if cmd.Flags().Changed("region") {
		v, _ := cmd.Flags().GetString("region")
		if _, err := prices.Lookup(v); err != nil {
			return err
		}
		patch.Region = &v
	}
	if cmd.Flags().Changed("max-duration") {
		v, _ := cmd.Flags().GetInt("max-duration")
		if v < 0 {
			return fmt.Errorf("max duration must be >= 0")
		}
		patch.MaxDurationHours = &v
	}

	_, store, _, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.UpdateSettings(cmd.Context(), userID, patch); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}

	fmt.Println("Settings updated.")
	return runSettingsShow(cmd, nil)
}
