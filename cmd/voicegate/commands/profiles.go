package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/pkg/cli"
	"github.com/haivivi/voicegate/pkg/voiceprint"
)

var profilesFlags struct {
	output string
	query  string
	codec  string
	file   string
	stale  bool
}

var profilesCmd = &cobra.Command{
	Use:     "profiles",
	Aliases: []string{"profile"},
	Short:   "Manage enrolled voice profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled profiles",
	Long: `List enrolled profiles. --query applies a jq expression to the listing:

  voicegate profiles list -q '.[] | select(.name | test("^A")) | .id'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(cmd, func(p *profiles) error {
			list := profileList(p.Profiles())
			if profilesFlags.stale {
				list = profileList(p.Stale())
			}
			return printProfiles(cmd, list)
		})
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one profile including its voice print",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(cmd, func(p *profiles) error {
			prof, ok := p.Get(args[0])
			if !ok {
				return fmt.Errorf("profile %q not found", args[0])
			}
			format, err := cli.ParseFormat(profilesFlags.output)
			if err != nil {
				return err
			}
			if format == cli.FormatTable {
				format = cli.FormatYAML
			}
			return cli.Output(prof, cli.OutputOptions{Format: format, Query: profilesFlags.query, Writer: cmd.OutOrStdout()})
		})
	},
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(cmd, func(p *profiles) error {
			ok, err := p.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("profile %q not found", args[0])
			}
			cli.PrintSuccess(cmd.OutOrStdout(), "deleted %s", args[0])
			return nil
		})
	},
}

var profilesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every profile in a storage codec",
	Long: `Write all profiles, stale ones included, encoded with --codec (json or
msgpack) to --file or stdout. The output is the same payload the store
persists, so it can be copied into another backend.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(cmd, func(p *profiles) error {
			codec, err := voiceprint.CodecByName(profilesFlags.codec)
			if err != nil {
				return err
			}
			data, err := codec.Marshal(append(p.Profiles(), p.Stale()...))
			if err != nil {
				return err
			}
			if profilesFlags.file == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(profilesFlags.file, data, 0o644); err != nil {
				return err
			}
			cli.PrintSuccess(cmd.ErrOrStderr(), "exported %d profiles to %s", p.Len()+len(p.Stale()), profilesFlags.file)
			return nil
		})
	},
}

func init() {
	pf := profilesCmd.PersistentFlags()
	pf.StringVarP(&profilesFlags.output, "output", "o", "table", "output format (table, yaml, json)")
	pf.StringVarP(&profilesFlags.query, "query", "q", "", "jq expression applied before output")

	profilesListCmd.Flags().BoolVar(&profilesFlags.stale, "stale", false, "list stale profiles that are kept but never matched")
	profilesExportCmd.Flags().StringVar(&profilesFlags.codec, "codec", "json", "encoding (json, msgpack)")
	profilesExportCmd.Flags().StringVarP(&profilesFlags.file, "file", "f", "", "write to this file instead of stdout")

	profilesCmd.AddCommand(profilesListCmd, profilesShowCmd, profilesDeleteCmd, profilesExportCmd)
	rootCmd.AddCommand(profilesCmd)
}

func withProfiles(cmd *cobra.Command, fn func(*profiles) error) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	p, err := openProfiles(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer p.Close()
	return fn(p)
}

// profileList renders profiles without their voice prints.
type profileList []voiceprint.Profile

func (l profileList) Header() []string {
	return []string{"ID", "NAME", "DIM", "CONFIDENCE", "VERSION", "CREATED"}
}

func (l profileList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, p := range l {
		rows = append(rows, []string{
			p.ID,
			p.Name,
			fmt.Sprint(len(p.VoicePrint)),
			fmt.Sprintf("%.2f", p.Confidence),
			fmt.Sprint(p.Version),
			p.CreatedAt.Local().Format(time.DateTime),
		})
	}
	return rows
}

func printProfiles(cmd *cobra.Command, list profileList) error {
	format, err := cli.ParseFormat(profilesFlags.output)
	if err != nil {
		return err
	}
	if format == cli.FormatTable && profilesFlags.query != "" {
		format = cli.FormatJSON
	}
	if list == nil {
		list = profileList{}
	}
	return cli.Output(list, cli.OutputOptions{Format: format, Query: profilesFlags.query, Writer: cmd.OutOrStdout()})
}
