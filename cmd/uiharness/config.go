package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/ui-harness/config"
	"github.com/hairizuan-noorazman/ui-harness/harness"
	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/secret"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the harness configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathsCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, settings, err := harness.LoadSettings(flagConfig)
			if err != nil {
				return err
			}

			redacted := logger.NewRedactor(settings.Logging.SensitiveFields).Redact(cfg.AllSettings())
			fmt.Fprintf(cmd.ErrOrStderr(), "# %s\n", cfg.Path())
			return printJSON(cmd.OutOrStdout(), redacted)
		},
	}
}

func newConfigPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "List the locations searched for " + config.FileName,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.CandidatePaths(flagConfig) {
				mark := " "
				if info, err := os.Stat(p); err == nil && !info.IsDir() {
					mark = "*"
				}
				printMessage(cmd.OutOrStdout(), "%s %s", mark, p)
			}
			return nil
		},
	}
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Encrypt values for the configuration document",
	}

	encryptCmd := &cobra.Command{
		Use:   "encrypt [value]",
		Short: "Encrypt a value with the passphrase in " + config.SecretKeyEnv,
		Long: "Encrypt a value so it can be stored in " + config.FileName + " as an enc: string.\n" +
			"The value is read from standard input when no argument is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secret.DeriveKey(os.Getenv(config.SecretKeyEnv))
			if err != nil {
				return fmt.Errorf("%s: %w", config.SecretKeyEnv, err)
			}

			var plaintext string
			if len(args) == 1 {
				plaintext = args[0]
			} else {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					plaintext = strings.TrimRight(scanner.Text(), "\r\n")
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("failed to read value: %w", err)
				}
			}
			if plaintext == "" {
				return fmt.Errorf("nothing to encrypt")
			}

			sealed, err := secret.Encrypt(key, plaintext)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}

	cmd.AddCommand(encryptCmd)
	return cmd
}
