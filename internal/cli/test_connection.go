package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dalemusser/pilitosync/internal/app/features/pilitosettings"
	"github.com/dalemusser/pilitosync/internal/app/system/options"
	"github.com/dalemusser/pilitosync/internal/app/system/pilito"
	"github.com/dalemusser/pilitosync/internal/domain/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errRejected is returned when the API answered and refused the token.
var errRejected = errors.New("token rejected")

var errNoToken = errors.New("no token given and none saved")

// userAgent tells Pilito the request came from the CLI, not the console.
const userAgent = "pilitoctl"

func newTestConnectionCmd(g *globals) *cobra.Command {
	var (
		token   string
		apiURL  string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Verify a Pilito API token",
		Long: `Verify a Pilito API token against the API, the same way the settings
screen does. Whatever --token and --api-url leave out is read from the saved
settings in MongoDB.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()

			load := func(ctx context.Context) (models.PilitoSettings, error) {
				var saved models.PilitoSettings
				err := g.withOptions(ctx, func(svc *options.Service) error {
					var err error
					saved, err = pilitosettings.Load(ctx, svc)
					return err
				})
				return saved, err
			}
			flags := models.PilitoSettings{APIToken: token, APIURL: apiURL, LoggingEnabled: verbose}
			settings, err := resolveSettings(ctx, flags, load, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			logger := zap.NewNop()
			if verbose {
				if l, err := zap.NewDevelopment(); err == nil {
					logger = l
				}
			}
			defer func() { _ = logger.Sync() }()

			client := pilito.New(pilito.StaticSettings(settings), logger,
				pilito.WithHTTPClient(&http.Client{Timeout: g.timeout}),
				pilito.WithUserAgent(userAgent))
			res, err := client.TestConnection(ctx, settings.APIToken)
			if err != nil {
				return fmt.Errorf("test connection: %w", err)
			}
			return printResult(cmd, g, res)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "API token to verify (default: the saved token)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Pilito API base URL (default: the saved URL)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log the request and outcome")
	return cmd
}

// resolveSettings fills whatever the flags leave empty from the saved
// settings. A missing token needs the saved one; a missing API URL falls
// back to the built-in default only when the saved settings can't be read.
func resolveSettings(ctx context.Context, flags models.PilitoSettings,
	load func(context.Context) (models.PilitoSettings, error), warn io.Writer) (models.PilitoSettings, error) {
	out := flags
	if out.APIToken != "" && out.APIURL != "" {
		return out, nil
	}

	saved, err := load(ctx)
	switch {
	case err != nil && out.APIToken == "":
		return out, fmt.Errorf("load saved settings: %w", err)
	case err != nil:
		fmt.Fprintf(warn, "warning: saved API URL unavailable (%v); using %s\n", err, models.DefaultPilitoAPIURL)
	default:
		if out.APIToken == "" {
			out.APIToken = saved.APIToken
		}
		if out.APIURL == "" {
			out.APIURL = saved.APIURL
		}
	}

	if out.APIToken == "" {
		return out, errNoToken
	}
	if out.APIURL == "" {
		out.APIURL = models.DefaultPilitoAPIURL
	}
	return out, nil
}

func printResult(cmd *cobra.Command, g *globals, res pilito.Result) error {
	out := cmd.OutOrStdout()
	if g.jsonOutput {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, res.Message)
		if res.Data != nil {
			fmt.Fprintf(out, "user:  %s\n", res.Data.User.Email)
			fmt.Fprintf(out, "token: %s\n", res.Data.Token.Name)
			if exp := res.Data.Token.ExpiresAt; exp != nil {
				fmt.Fprintf(out, "expires: %s\n", exp.Format("2006-01-02 15:04 MST"))
			}
		}
	}
	if !res.Success {
		return errRejected
	}
	return nil
}
