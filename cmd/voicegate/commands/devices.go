package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/pkg/audio/mic"
	"github.com/haivivi/voicegate/pkg/cli"
)

var devicesOutput string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(devicesOutput)
		if err != nil {
			return err
		}
		devices, err := mic.Devices()
		if err != nil {
			return err
		}
		return cli.Output(deviceList(devices), cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()})
	},
}

func init() {
	devicesCmd.Flags().StringVarP(&devicesOutput, "output", "o", "table", "output format (table, yaml, json)")
	rootCmd.AddCommand(devicesCmd)
}

type deviceList []mic.DeviceInfo

func (l deviceList) Header() []string {
	return []string{"INDEX", "NAME", "CHANNELS", "RATE", "DEFAULT"}
}

func (l deviceList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, d := range l {
		def := ""
		if d.IsDefault {
			def = "*"
		}
		rows = append(rows, []string{
			fmt.Sprint(d.Index),
			d.Name,
			fmt.Sprint(d.MaxInputChannels),
			fmt.Sprintf("%.0f", d.DefaultSampleRate),
			def,
		})
	}
	return rows
}
