package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HossEz/stromtracker/pkg/model"
)

var applianceCmd = &cobra.Command{
	Use:   "appliance",
	Short: "Manage registered appliances",
}

var applianceAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new appliance",
	Args:  cobra.ExactArgs(1),
	RunE:  runApplianceAdd,
}

var applianceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered appliances",
	RunE:  runApplianceList,
}

var applianceRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an appliance",
	Args:  cobra.ExactArgs(1),
	RunE:  runApplianceRemove,
}

func init() {
	rootCmd.AddCommand(applianceCmd)
	applianceCmd.AddCommand(applianceAddCmd)
	applianceCmd.AddCommand(applianceListCmd)
	applianceCmd.AddCommand(applianceRemoveCmd)

	applianceAddCmd.Flags().Int("low", 0, "Low power rating in watts")
	applianceAddCmd.Flags().Int("high", 0, "High power rating in watts")
	_ = applianceAddCmd.MarkFlagRequired("low")
	_ = applianceAddCmd.MarkFlagRequired("high")
}

func runApplianceAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	low, _ := cmd.Flags().GetInt("low")
	high, _ := cmd.Flags().GetInt("high")
	if low <= 0 || high < low {
		return fmt.Errorf("power ratings must satisfy 0 < low <= high")
	}

	_, store, _, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	appliance := &model.Appliance{
		UserID:   userID,
		Name:     args[0],
		LowWatt:  low,
		HighWatt: high,
	}
	if err := store.AddAppliance(cmd.Context(), appliance); err != nil {
		return fmt.Errorf("add appliance: %w", err)
	}

	fmt.Printf("Registered appliance:\n")
	fmt.Printf("  Name:  %s\n", appliance.Name)
	fmt.Printf("  Low:   %dW\n", appliance.LowWatt)
	fmt.Printf("  High:  %dW\n", appliance.HighWatt)
	fmt.Printf("  Avg:   %dW\n", model.ResolveWatts(low, high, model.WattAvg))

	return nil
}

func runApplianceList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	_, store, _, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	appliances, err := store.ListAppliances(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("list appliances: %w", err)
	}

	if len(appliances) == 0 {
		fmt.Println("No appliances registered. Use 'stromtracker appliance add' to create one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tLOW\tHIGH\tAVG\n")
	for _, a := range appliances {
		fmt.Fprintf(w, "%s\t%dW\t%dW\t%dW\n",
			a.Name, a.LowWatt, a.HighWatt, model.ResolveWatts(a.LowWatt, a.HighWatt, model.WattAvg))
	}
	w.Flush()

	return nil
}

func runApplianceRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	_, store, _, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteAppliance(cmd.Context(), userID, args[0]); err != nil {
		return fmt.Errorf("remove appliance: %w", err)
	}

	fmt.Printf("Removed appliance %q\n", args[0])
	return nil
}
