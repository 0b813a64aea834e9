package cli

import (
	"encoding/json"
	"fmt"

	crpdph "github.com/mkadlec/go-crpdph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func runCheck(cmd *cobra.Command, args []string) error {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	if viper.GetBool("verbose") {
		logger.SetLevel(logrus.DebugLevel)
	}

	opts := []crpdph.Option{
		crpdph.WithEndpoint(viper.GetString("endpoint")),
		crpdph.WithTimeout(viper.GetDuration("timeout")),
		crpdph.WithLogger(logger),
	}
	if rps > 0 {
		opts = append(opts, crpdph.WithRateLimit(rps, 1))
	}

	checker, err := crpdph.NewChecker(opts...)
	if err != nil {
		return fmt.Errorf("configure checker: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"endpoint": viper.GetString("endpoint"),
		"timeout":  viper.GetDuration("timeout"),
	}).Debug("checking VAT number")

	// Check never fails; every outcome is a printable record.
	result := checker.Check(cmd.Context(), args[0])

	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	return nil
}
