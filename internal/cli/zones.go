package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/journeywatch/internal/model"
)

func init() {
	rootCmd.AddCommand(zonesCmd)
	zonesCmd.AddCommand(zonesListCmd)
	zonesCmd.AddCommand(zonesCheckCmd)
}

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Inspect the configured safe and unsafe zones",
}

var zonesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured zones",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCore(cfg)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-8s %-24s %-10s %-10s %s\n", "KIND", "NAME", "LAT", "LNG", "RADIUS_M")
		for _, z := range c.zones.All() {
			fmt.Fprintf(w, "%-8s %-24s %-10.5f %-10.5f %.0f\n", z.Kind, z.Name, z.Center.Lat, z.Center.Lng, z.RadiusM)
		}
		return nil
	},
}

var zonesCheckCmd = &cobra.Command{
	Use:   "check <lat> <lng>",
	Short: "Show how a coordinate relates to the configured zones",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude %q: %w", args[0], err)
		}
		lng, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude %q: %w", args[1], err)
		}
		c, err := loadCore(cfg)
		if err != nil {
			return err
		}

		p := c.zones.Check(model.Location{Lat: lat, Lng: lng})
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Isolated:         %v\n", p.Isolated)
		fmt.Fprintf(out, "Near unsafe zone: %v", p.NearUnsafeZone)
		if p.UnsafeZone != "" {
			fmt.Fprintf(out, " (%s)", p.UnsafeZone)
		}
		fmt.Fprintln(out)
		if p.NearestSafeDist != nil {
			fmt.Fprintf(out, "Nearest safe:     %s (%.0f m)\n", p.NearestSafe, *p.NearestSafeDist)
		}
		return nil
	},
}
