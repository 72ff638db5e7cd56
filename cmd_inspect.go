package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/thushan/ngsiproxy/internal/adapter/credentials"
	"github.com/thushan/ngsiproxy/internal/adapter/ngsi"
	"github.com/thushan/ngsiproxy/internal/app"
	"github.com/thushan/ngsiproxy/internal/config"
	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/logger"
)

var (
	queryUser  string
	queryToken string
)

// queryCmd shows the broker request a resource turns into without sending it
var queryCmd = &cobra.Command{
	Use:   "query <resource-id>",
	Short: "Print the broker request a resource would produce",
	Long: `Looks the resource up in the configured catalog and prints the method,
target, headers and body the proxy would send to the context broker.

Resources using oauth2 or x-auth-token-fiware need --user and --token.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Print the resolved TLS verification policy",
	Args:  cobra.NoArgs,
	RunE:  runVerify,
}

func init() {
	queryCmd.Flags().StringVar(&queryUser, "user", "", "catalog user the request is made for")
	queryCmd.Flags().StringVar(&queryToken, "token", "", "access token to use for --user")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	manager, err := config.Load(configFile)
	if err != nil {
		return err
	}
	cfg := manager.Config()
	log := logger.Discard()

	repo, err := app.OpenCatalog(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	sessions, err := credentials.NewStore(app.CredentialsConfig(cfg), log)
	if err != nil {
		return err
	}
	if queryUser != "" && queryToken != "" {
		if err = sessions.Put(queryUser, credentials.Session{AccessToken: queryToken}); err != nil {
			return err
		}
	}

	service, err := ngsi.NewService(app.ProxyConfig(cfg), ngsi.Dependencies{
		Repository:  repo,
		Credentials: sessions,
		Settings:    manager,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	defer service.Close()

	resource, err := repo.Show(ctx, args[0])
	if err != nil {
		return err
	}
	out, err := service.Prepare(ctx, resource, queryUser)
	if err != nil {
		return err
	}

	return printOutbound(cmd.OutOrStdout(), out)
}

func printOutbound(w io.Writer, out *ngsi.Outbound) error {
	fmt.Fprintf(w, "%s %s\n", out.Method, out.Target)
	fmt.Fprintf(w, "mode: %s\n", out.Mode)
	fmt.Fprintf(w, "verify: %s (%s)\n", out.Verify.String(), out.VerifySource)

	names := make([]string, 0, len(out.Header))
	for name := range out.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: %s\n", name, maskHeader(name, out.Header.Get(name)))
	}

	if len(out.Body) > 0 {
		var pretty bytes.Buffer
		if err := indentJSON(&pretty, out.Body); err != nil {
			pretty.Reset()
			pretty.Write(out.Body)
		}
		fmt.Fprintf(w, "\n%s\n", pretty.String())
	}
	return nil
}

func indentJSON(dst *bytes.Buffer, src []byte) error {
	var v any
	if err := jsoniter.Unmarshal(src, &v); err != nil {
		return err
	}
	encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dst.Write(encoded)
	return nil
}

// maskHeader hides all but the last four characters of credentials
func maskHeader(name, value string) string {
	if name != constants.HeaderAuthorization && name != constants.HeaderXAuthToken {
		return value
	}
	return logger.Mask(value)
}

func runVerify(cmd *cobra.Command, _ []string) error {
	manager, err := config.Load(configFile)
	if err != nil {
		return err
	}

	policy, source := ngsi.ResolveVerifyPolicy(ngsi.OSEnvironment{}, manager)
	fmt.Fprintf(cmd.OutOrStdout(), "verify: %s\nsource: %s\n", policy.String(), source)
	return nil
}
