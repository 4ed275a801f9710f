package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"switchboard/internal/api"
	"switchboard/internal/app"
	"switchboard/internal/binding"
	"switchboard/internal/capability"
	"switchboard/internal/config"
	"switchboard/internal/formatting"
	"switchboard/internal/sealed"
	"switchboard/pkg/logging"
)

// bindingEnv is what the binding commands operate on. The sealer is loaded
// lazily: reading bindings must work without the identity.
type bindingEnv struct {
	cfg      config.SwitchboardConfig
	store    binding.Store
	registry *capability.Registry
	sealer   *sealed.Sealer
}

func openBindingEnv(ctx context.Context) (*bindingEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := app.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return &bindingEnv{cfg: cfg, store: store, registry: app.NewRegistry()}, nil
}

func (e *bindingEnv) getSealer() (*sealed.Sealer, error) {
	if e.sealer == nil {
		sealer, err := app.OpenSealer(e.cfg.Encryption)
		if err != nil {
			return nil, err
		}
		e.sealer = sealer
	}
	return e.sealer, nil
}

func (e *bindingEnv) close(ctx context.Context) {
	if err := e.store.Close(ctx); err != nil {
		logging.Warn("CLI", "Error closing binding store: %v", err)
	}
}

// view turns a stored binding into its redacted form.
func (e *bindingEnv) view(b *api.Binding) formatting.BindingView {
	v := formatting.BindingView{
		TenantID:           b.TenantID,
		Implementation:     b.Implementation,
		Enabled:            b.Enabled,
		PublicConfig:       b.PublicConfig,
		DisabledOperations: b.DisabledOperations,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
	if b.EncryptedSensitiveConfig == "" {
		return v
	}

	sealer, err := e.getSealer()
	if err != nil {
		logging.Warn("CLI", "Cannot list sensitive keys of %s: %v", b.Key(), err)
		return v
	}
	sensitive, err := sealer.Decrypt(b.EncryptedSensitiveConfig)
	if err != nil {
		logging.Warn("CLI", "Cannot list sensitive keys of %s: %v", b.Key(), err)
		return v
	}
	for k := range sensitive {
		v.SensitiveKeys = append(v.SensitiveKeys, k)
	}
	sort.Strings(v.SensitiveKeys)
	return v
}

var (
	bindingListOutput string
	bindingGetOutput  string

	bindingSetPublic             []string
	bindingSetPublicFile         string
	bindingSetSensitive          []string
	bindingSetSensitiveFile      string
	bindingSetDisabledOperations []string
	bindingSetDisabled           bool

	bindingEnableOperations  []string
	bindingDisableOperations []string
)

var bindingCmd = &cobra.Command{
	Use:     "binding",
	Aliases: []string{"bindings"},
	Short:   "Manage tenant capability bindings",
	Long: `A binding attaches a capability implementation to a tenant. It carries
public configuration, sensitive configuration that is stored encrypted, an
enabled flag, and the operations the tenant turned off.`,
}

var bindingListCmd = &cobra.Command{
	Use:   "list [tenant]",
	Short: "List bindings of one tenant or of all tenants",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBindingList,
}

var bindingGetCmd = &cobra.Command{
	Use:   "get <tenant> <implementation>",
	Short: "Show a binding with its sensitive values redacted",
	Args:  cobra.ExactArgs(2),
	RunE:  runBindingGet,
}

var bindingSetCmd = &cobra.Command{
	Use:   "set <tenant> <implementation>",
	Short: "Create or update a binding",
	Long: `Creates a binding or updates an existing one.

Public and sensitive configuration are given as key=value pairs or as a YAML
or JSON file holding a mapping. Pairs override keys from the file. When
neither is given for an existing binding, its stored configuration is kept.

Sensitive configuration is encrypted to the configured age identity before it
is stored and is never printed.

The implementation is constructed with the resulting configuration before
saving, so incomplete configuration is rejected up front.`,
	Example: `  switchboard binding set acme notifier \
    --public webhook_url=https://hooks.example.com/acme \
    --sensitive token=s3cret

  switchboard binding set acme scheduling \
    --public calendar_id=team@example.com \
    --sensitive-file acme-calendar-credentials.yaml \
    --disable-operation cancel_event`,
	Args: cobra.ExactArgs(2),
	RunE: runBindingSet,
}

var bindingDeleteCmd = &cobra.Command{
	Use:     "delete <tenant> <implementation>",
	Aliases: []string{"rm"},
	Short:   "Delete a binding",
	Long:    `Deletes a binding. Sessions that are already running keep their tools until they end.`,
	Args:    cobra.ExactArgs(2),
	RunE:    runBindingDelete,
}

// Without --operation, enable and disable flip the whole binding; with it
// they edit the disabled operation set.
var bindingEnableCmd = &cobra.Command{
	Use:   "enable <tenant> <implementation>",
	Short: "Enable a binding or some of its operations",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBindingToggle(cmd, args, bindingEnableOperations, true)
	},
}

var bindingDisableCmd = &cobra.Command{
	Use:   "disable <tenant> <implementation>",
	Short: "Disable a binding or some of its operations",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBindingToggle(cmd, args, bindingDisableOperations, false)
	},
}

func init() {
	rootCmd.AddCommand(bindingCmd)
	bindingCmd.AddCommand(bindingListCmd)
	bindingCmd.AddCommand(bindingGetCmd)
	bindingCmd.AddCommand(bindingSetCmd)
	bindingCmd.AddCommand(bindingDeleteCmd)
	bindingCmd.AddCommand(bindingEnableCmd)
	bindingCmd.AddCommand(bindingDisableCmd)

	bindingListCmd.Flags().StringVarP(&bindingListOutput, "output", "o", "table", "Output format: table, json or yaml")
	bindingGetCmd.Flags().StringVarP(&bindingGetOutput, "output", "o", "table", "Output format: table, json or yaml")

	bindingSetCmd.Flags().StringArrayVar(&bindingSetPublic, "public", nil, "Public configuration as key=value (repeatable)")
	bindingSetCmd.Flags().StringVar(&bindingSetPublicFile, "public-file", "", "YAML or JSON file with public configuration")
	bindingSetCmd.Flags().StringArrayVar(&bindingSetSensitive, "sensitive", nil, "Sensitive configuration as key=value (repeatable)")
	bindingSetCmd.Flags().StringVar(&bindingSetSensitiveFile, "sensitive-file", "", "YAML or JSON file with sensitive configuration")
	bindingSetCmd.Flags().StringSliceVar(&bindingSetDisabledOperations, "disable-operation", nil, "Operation to turn off for this tenant (repeatable)")
	bindingSetCmd.Flags().BoolVar(&bindingSetDisabled, "disabled", false, "Store the binding disabled")

	bindingEnableCmd.Flags().StringSliceVar(&bindingEnableOperations, "operation", nil, "Operation to enable instead of the whole binding (repeatable)")
	bindingDisableCmd.Flags().StringSliceVar(&bindingDisableOperations, "operation", nil, "Operation to disable instead of the whole binding (repeatable)")
}

func runBindingList(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(bindingListOutput)
	if err != nil {
		return err
	}
	env, err := openBindingEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close(cmd.Context())

	tenantID := ""
	if len(args) == 1 {
		tenantID = args[0]
	}
	bindings, err := env.store.ListBindings(cmd.Context(), tenantID)
	if err != nil {
		return err
	}

	views := make([]formatting.BindingView, 0, len(bindings))
	for _, b := range bindings {
		views = append(views, formatting.BindingView{
			TenantID:           b.TenantID,
			Implementation:     b.Implementation,
			Enabled:            b.Enabled,
			DisabledOperations: b.DisabledOperations,
			CreatedAt:          b.CreatedAt,
			UpdatedAt:          b.UpdatedAt,
		})
	}
	return formatting.NewPrinter(cmd.OutOrStdout(), formatting.Options{Format: format}).PrintBindings(views)
}

func runBindingGet(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(bindingGetOutput)
	if err != nil {
		return err
	}
	env, err := openBindingEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close(cmd.Context())

	b, err := env.store.GetBinding(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	return formatting.NewPrinter(cmd.OutOrStdout(), formatting.Options{Format: format}).PrintBinding(env.view(b))
}

func runBindingSet(cmd *cobra.Command, args []string) error {
	env, err := openBindingEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close(cmd.Context())

	b, err := env.buildBinding(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	if err := env.store.SaveBinding(cmd.Context(), b); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Binding %s saved (enabled: %t)\n", b.Key(), b.Enabled)
	return nil
}

func (e *bindingEnv) buildBinding(cmd *cobra.Command, tenantID, implementation string) (*api.Binding, error) {
	ctx := cmd.Context()
	def, err := e.registry.GetImplementation(implementation)
	if err != nil {
		return nil, err
	}

	b, err := e.store.GetBinding(ctx, tenantID, implementation)
	switch {
	case api.IsNotFound(err):
		b = &api.Binding{TenantID: tenantID, Implementation: implementation, Enabled: true}
	case err != nil:
		return nil, err
	}

	public, err := readConfig(bindingSetPublicFile, bindingSetPublic)
	if err != nil {
		return nil, fmt.Errorf("public configuration: %w", err)
	}
	if public != nil {
		b.PublicConfig = public
	}

	sealer, err := e.getSealer()
	if err != nil {
		return nil, err
	}

	sensitive, err := readConfig(bindingSetSensitiveFile, bindingSetSensitive)
	if err != nil {
		return nil, fmt.Errorf("sensitive configuration: %w", err)
	}
	if sensitive != nil {
		ciphertext, err := sealer.Encrypt(sensitive)
		if err != nil {
			return nil, err
		}
		b.EncryptedSensitiveConfig = ciphertext
	} else if b.EncryptedSensitiveConfig != "" {
		if sensitive, err = sealer.Decrypt(b.EncryptedSensitiveConfig); err != nil {
			return nil, fmt.Errorf("stored sensitive configuration of %s cannot be opened, set it again: %w", b.Key(), err)
		}
	}

	if cmd.Flags().Changed("disable-operation") {
		operations, err := e.registry.OperationNames(implementation)
		if err != nil {
			return nil, err
		}
		for _, op := range bindingSetDisabledOperations {
			if !slices.Contains(operations, op) {
				return nil, fmt.Errorf("%s has no operation %q (operations: %s)", implementation, op, strings.Join(operations, ", "))
			}
		}
		b.DisabledOperations = dedupe(bindingSetDisabledOperations)
	}
	if cmd.Flags().Changed("disabled") {
		b.Enabled = !bindingSetDisabled
	}

	if _, err := def.New(api.ImplementationConfig{TenantID: tenantID, Public: b.PublicConfig, Sensitive: sensitive}); err != nil {
		return nil, fmt.Errorf("configuration rejected by %s: %w", implementation, err)
	}
	for k := range sensitive {
		delete(sensitive, k)
	}

	return b, nil
}

// readConfig merges a YAML/JSON mapping file with key=value pairs. It returns
// nil when neither is given.
func readConfig(path string, pairs []string) (map[string]interface{}, error) {
	if path == "" && len(pairs) == 0 {
		return nil, nil
	}

	out := map[string]interface{}{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if out == nil {
			out = map[string]interface{}{}
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[key] = value
	}
	return out, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func runBindingDelete(cmd *cobra.Command, args []string) error {
	env, err := openBindingEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close(cmd.Context())

	if err := env.store.DeleteBinding(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Binding %s deleted\n", api.BindingKey(args[0], args[1]))
	return nil
}

func runBindingToggle(cmd *cobra.Command, args []string, operations []string, enable bool) error {
	env, err := openBindingEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close(cmd.Context())

	b, err := env.store.GetBinding(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	if len(operations) == 0 {
		b.Enabled = enable
	} else {
		known, err := env.registry.OperationNames(b.Implementation)
		if err != nil {
			return err
		}
		for _, op := range operations {
			if !slices.Contains(known, op) {
				return fmt.Errorf("%s has no operation %q (operations: %s)", b.Implementation, op, strings.Join(known, ", "))
			}
		}
		b.DisabledOperations = toggleOperations(b.DisabledOperations, operations, enable)
	}

	if err := env.store.SaveBinding(cmd.Context(), b); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Binding %s updated (enabled: %t, disabled operations: [%s])\n",
		b.Key(), b.Enabled, strings.Join(b.DisabledOperations, ", "))
	return nil
}

// toggleOperations adds operations to the disabled set, or removes them when
// enable is true.
func toggleOperations(disabled, operations []string, enable bool) []string {
	if enable {
		var out []string
		for _, op := range disabled {
			if !slices.Contains(operations, op) {
				out = append(out, op)
			}
		}
		return out
	}
	return dedupe(append(append([]string(nil), disabled...), operations...))
}
