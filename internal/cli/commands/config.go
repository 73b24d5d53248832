package commands

import (
	"bytes"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapstar/internal/cli/config"
	"github.com/leapstack-labs/leapstar/internal/cli/output"
)

const maskedPassword = "********"

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, leapstar.yaml, LEAPSTAR_*
environment variables and flags are merged. Passwords are masked.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}
			masked := maskConfig(cfg)

			r := output.FromContext(ctx)
			if r.IsJSON() {
				return r.JSON(masked)
			}

			var buf bytes.Buffer
			enc := yaml.NewEncoder(&buf)
			enc.SetIndent(2)
			if err := enc.Encode(masked); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			if used := config.GetConfigFileUsed(); used != "" {
				r.Printf("# %s\n", used)
			}
			r.Printf("%s", buf.String())
			return nil
		},
	}
}

// maskConfig returns a copy of cfg with target passwords hidden.
func maskConfig(cfg *config.Config) *config.Config {
	out := *cfg
	if cfg.Target != nil {
		t := *cfg.Target
		if t.Password != "" {
			t.Password = maskedPassword
		}
		out.Target = &t
	}
	if len(cfg.Environments) > 0 {
		out.Environments = make(map[string]config.EnvConfig, len(cfg.Environments))
		for name, env := range cfg.Environments {
			if env.Target != nil && env.Target.Password != "" {
				t := *env.Target
				t.Password = maskedPassword
				env.Target = &t
			}
			out.Environments[name] = env
		}
	}
	return &out
}
