package cli

import (
	"fmt"
	"time"

	crpdph "github.com/mkadlec/go-crpdph"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	endpoint string
	timeout  time.Duration
	rps      float64
	verbose  bool
)

// rootCmd represents the base command; the check itself is the root
// operation, taking the VAT number as the single positional argument.
var rootCmd = &cobra.Command{
	Use:   "crpdph <vat-number>",
	Short: "Check a Czech VAT number (DIC) against the unreliable payer registry",
	Long: `crpdph asks the Czech Ministry of Finance registry whether a VAT payer
is flagged as unreliable (nespolehlivý plátce).

The VAT number may be given in any format; everything except digits is
stripped before the lookup.

The result is printed as a single JSON line on stdout and the process
exits 0 for every check outcome, including service failures. Callers
must inspect the "status" and "auto_checked" fields. Diagnostics go to
stderr.

Example:
  crpdph CZ25083062
  crpdph "250 830 62" --timeout 10s
  crpdph CZ25083062 --endpoint http://localhost:8080/soap --verbose`,
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runCheck,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "crpdph v0.1.0")
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose diagnostics on stderr")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.Flags().StringVar(&endpoint, "endpoint", crpdph.DefaultEndpointURL, "registry SOAP endpoint")
	rootCmd.Flags().DurationVar(&timeout, "timeout", crpdph.DefaultTimeout, "request timeout")
	rootCmd.Flags().Float64Var(&rps, "rate", 0, "max requests per second (0 = unlimited)")

	viper.SetDefault("endpoint", crpdph.DefaultEndpointURL)
	viper.SetDefault("timeout", crpdph.DefaultTimeout)
	_ = viper.BindPFlag("endpoint", rootCmd.Flags().Lookup("endpoint"))
	_ = viper.BindPFlag("timeout", rootCmd.Flags().Lookup("timeout"))

	rootCmd.AddCommand(versionCmd)
}
