package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"switchboard/internal/sealed"
)

var (
	keygenOutput string
	keygenForce  bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the age identity that seals sensitive configuration",
	Long: `Generates an X25519 age identity and writes it with mode 0600 to --output,
or to encryption.identityFile of the configuration when --output is not set.
The public key is printed; anyone holding it can seal configuration that
only this identity opens.

Replacing an identity makes every stored sensitive configuration unreadable.
Use --force only when that is intended.`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVarP(&keygenOutput, "output", "o", "", "Identity file to write")
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "Replace an existing identity file")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	path := keygenOutput
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Encryption.IdentityFile
	}
	if path == "" {
		return fmt.Errorf("no identity file configured, use --output")
	}

	if _, err := os.Stat(path); err == nil && !keygenForce {
		return fmt.Errorf("identity file %s already exists, use --force to replace it", path)
	}

	identity, err := sealed.GenerateIdentity()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(sealed.FormatIdentity(identity, time.Now())), 0o600); err != nil {
		return fmt.Errorf("writing identity file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Identity written to %s\nPublic key: %s\n", path, identity.Recipient().String())
	return nil
}
