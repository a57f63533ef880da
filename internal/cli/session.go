package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/HossEz/stromtracker/pkg/model"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Track appliance usage sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <appliance>",
	Short: "Start tracking an appliance",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionStart,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active session and its cost so far",
	RunE:  runSessionStatus,
}

var sessionStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the active session and record its cost",
	RunE:  runSessionStop,
}

var sessionCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Abort the active session without recording costs",
	RunE:  runSessionCancel,
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently completed sessions",
	RunE:  runSessionHistory,
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete session history",
	RunE:  runSessionClear,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionStopCmd)
	sessionCmd.AddCommand(sessionCancelCmd)
	sessionCmd.AddCommand(sessionHistoryCmd)
	sessionCmd.AddCommand(sessionClearCmd)

	sessionStartCmd.Flags().StringP("mode", "m", "avg", "Watt mode (low, high, avg)")
	sessionHistoryCmd.Flags().IntP("limit", "n", 10, "Number of sessions to show")
	sessionClearCmd.Flags().String("from", "", "First day to clear (YYYY-MM-DD)")
	sessionClearCmd.Flags().String("to", "", "Last day to clear, inclusive (YYYY-MM-DD)")
	sessionClearCmd.Flags().Bool("all", false, "Clear all session history")
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode, _ := cmd.Flags().GetString("mode")

	t, store, _, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	session, err := t.StartSession(cmd.Context(), userID, args[0], model.WattMode(mode))
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	fmt.Printf("Started tracking %s at %dW (%s mode)\n",
		session.ApplianceName, session.Watts, session.WattMode)
	return nil
}

func runSessionStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	t, store, priceClient, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	session, estimate, fired, err := t.Status(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("session status: %w", err)
	}
	if session == nil {
		fmt.Println("No active session.")
		return nil
	}

	fmt.Printf("Active session: %s (%dW, %s mode)\n", session.ApplianceName, session.Watts, session.WattMode)
	fmt.Printf("  Started:   %s\n", session.StartTime.In(priceClient.Location()).Format("2006-01-02 15:04"))
	fmt.Printf("  Duration:  %s\n", model.FormatHours(estimate.Hours))
	fmt.Printf("  Energy:    %.4f kWh\n", estimate.EnergyKWh)
	fmt.Printf("  Cost:      %.2f kr", estimate.TotalCostNOK)
	if estimate.Degraded {
		fmt.Printf(" (estimated with fallback price)")
	}
	fmt.Println()

	for _, a := range fired {
		fmt.Printf("  ! %s\n", a.Message)
	}
	return nil
}

func runSessionStop(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	t, store, _, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	session, result, fired, err := t.StopSession(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("stop session: %w", err)
	}

	fmt.Printf("Session finished: %s\n", session.ApplianceName)
	fmt.Printf("  Duration:   %s\n", model.FormatHours(result.Hours))
	fmt.Printf("  Energy:     %.4f kWh\n", result.EnergyKWh)
	fmt.Printf("  Spot cost:  %.2f kr (avg %.4f kr/kWh)\n", result.SpotCostNOK, result.AvgSpotPrice)
	fmt.Printf("  Fixed cost: %.2f kr\n", result.FixedCostNOK)
	fmt.Printf("  Total:      %.2f kr\n", result.TotalCostNOK)
	if result.Degraded {
		fmt.Println("  Note: spot prices were unavailable; a fallback price was used.")
	}

	for _, a := range fired {
		fmt.Printf("  ! %s\n", a.Message)
	}
	return nil
}

func runSessionCancel(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	t, store, _, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	session, err := t.CancelSession(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}

	fmt.Printf("Cancelled session for %s; no costs recorded.\n", session.ApplianceName)
	return nil
}

func runSessionClear(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	all, _ := cmd.Flags().GetBool("all")
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")

	if !all && (fromStr == "" || toStr == "") {
		return fmt.Errorf("pass --all, or both --from and --to")
	}

	_, store, priceClient, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var from, to time.Time
	if !all {
		loc := priceClient.Location()
		from, err = time.ParseInLocation("2006-01-02", fromStr, loc)
		if err != nil {
			return fmt.Errorf("invalid --from, want YYYY-MM-DD: %w", err)
		}
		to, err = time.ParseInLocation("2006-01-02", toStr, loc)
		if err != nil {
			return fmt.Errorf("invalid --to, want YYYY-MM-DD: %w", err)
		}
		// --to names a day; clear through the end of it.
		to = to.AddDate(0, 0, 1)
	}

	deleted, err := store.ClearSessions(cmd.Context(), userID, from, to)
	if err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}

	fmt.Printf("Deleted %d session(s).\n", deleted)
	return nil
}

func runSessionHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")

	t, store, priceClient, err := initTracker(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := t.History(cmd.Context(), userID, limit)
	if err != nil {
		return fmt.Errorf("session history: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No completed sessions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ENDED\tAPPLIANCE\tDURATION\tENERGY\tCOST\n")
	for _, s := range sessions {
		ended := ""
		duration := ""
		if s.EndTime != nil {
			ended = s.EndTime.In(priceClient.Location()).Format("2006-01-02 15:04")
			duration = model.FormatHours(s.Elapsed(time.Time{}).Hours())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f kWh\t%.2f kr\n",
			ended, s.ApplianceName, duration, s.EnergyKWh, s.TotalCostNOK)
	}
	w.Flush()

	return nil
}
