package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dwelo-bridge/internal/adapters/output/dwelo"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices on the gateway with their current status",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

var sensorsCmd = &cobra.Command{
	Use:   "sensors <device-id>",
	Short: "Show the raw sensor readings of one device",
	Args:  cobra.ExactArgs(1),
	RunE:  runSensors,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(sensorsCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	client := dwelo.NewClient(cfg.Dwelo, logger)
	defer client.Close()

	infos, err := client.ListDevices(cmd.Context())
	if err != nil {
		return err
	}
	snap, err := client.FetchStatus(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tONLINE\tSENSORS")
	for _, info := range infos {
		sensors := 0
		if d, ok := snap.Device(info.ID); ok {
			sensors = len(d.Sensors)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\n", info.ID, info.Name, info.Type, info.Online, sensors)
	}
	return w.Flush()
}

func runSensors(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	client := dwelo.NewClient(cfg.Dwelo, logger)
	defer client.Close()

	sensors, err := client.Sensors(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SENSOR\tVALUE\tISSUED")
	for _, s := range sensors {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.SensorType, s.Value, s.TimeIssued)
	}
	return w.Flush()
}
