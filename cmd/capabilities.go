package cmd

import (
	"github.com/spf13/cobra"

	"switchboard/internal/adapter"
	"switchboard/internal/api"
	"switchboard/internal/app"
	"switchboard/internal/formatting"
)

var (
	capabilitiesListOutput   string
	capabilitiesSchemaOutput string
)

var capabilitiesCmd = &cobra.Command{
	Use:     "capabilities",
	Aliases: []string{"capability", "caps"},
	Short:   "Inspect the built-in capability implementations",
}

var capabilitiesListCmd = &cobra.Command{
	Use:   "list [implementation]",
	Short: "List the operations every implementation offers",
	Long: `Lists every callable operation with its parameters. Required parameters
are shown without a default; optional ones show the default they take when
the caller omits them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCapabilitiesList,
}

var capabilitiesSchemaCmd = &cobra.Command{
	Use:   "schema <implementation> <operation>",
	Short: "Print the JSON Schema MCP clients receive for an operation",
	Args:  cobra.ExactArgs(2),
	RunE:  runCapabilitiesSchema,
}

func init() {
	rootCmd.AddCommand(capabilitiesCmd)
	capabilitiesCmd.AddCommand(capabilitiesListCmd)
	capabilitiesCmd.AddCommand(capabilitiesSchemaCmd)

	capabilitiesListCmd.Flags().StringVarP(&capabilitiesListOutput, "output", "o", "table", "Output format: table, json or yaml")
	capabilitiesSchemaCmd.Flags().StringVarP(&capabilitiesSchemaOutput, "output", "o", "json", "Output format: json or yaml")
}

func runCapabilitiesList(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(capabilitiesListOutput)
	if err != nil {
		return err
	}

	registry := app.NewRegistry()
	names := registry.Names()
	if len(args) == 1 {
		names = args[:1]
	}

	var descriptors []api.CapabilityDescriptor
	for _, name := range names {
		ds, err := registry.GetDescriptors(name)
		if err != nil {
			return err
		}
		descriptors = append(descriptors, ds...)
	}

	return formatting.NewPrinter(cmd.OutOrStdout(), formatting.Options{Format: format}).PrintCapabilities(descriptors)
}

func runCapabilitiesSchema(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(capabilitiesSchemaOutput)
	if err != nil {
		return err
	}
	d, err := app.NewRegistry().GetDescriptor(args[0], args[1])
	if err != nil {
		return err
	}
	return formatting.NewPrinter(cmd.OutOrStdout(), formatting.Options{Format: format}).
		PrintSchema(adapter.BuildInputSchema(d.Parameters).Map())
}
