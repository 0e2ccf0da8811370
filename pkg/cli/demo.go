package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/hellotel/pkg/app"
	"github.com/getmockd/hellotel/pkg/cli/internal/output"
	"github.com/getmockd/hellotel/pkg/config"
	"github.com/getmockd/hellotel/pkg/mockserver"
	"github.com/getmockd/hellotel/pkg/requestlog"
	"github.com/getmockd/hellotel/pkg/restapi"
	"github.com/getmockd/hellotel/pkg/tracing"
)

// demoFlags holds all flags for the demo command.
type demoFlags struct {
	embedded  bool
	exporters string
	failAuth  bool
}

var demoFlagVals demoFlags

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the instrumented application once",
	Long: `Run every phase of the demo application: cold launch, app launch, becoming
interactive, auth, check-in, check-out with and without baggage, device
reboot and log-out.

With --embedded (the default) a mock backend is started on a free port and
the requests it received are printed with their decoded trace context.`,
	Example: `  # Run against an embedded backend
  hellotel demo

  # Run against 'hellotel serve' and print spans as JSON
  hellotel demo --embedded=false --exporters stdout`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	f := &demoFlagVals
	demoCmd.Flags().BoolVar(&f.embedded, "embedded", true, "Start a mock backend on a free port")
	demoCmd.Flags().StringVar(&f.exporters, "exporters", "", "Comma-separated exporters (overrides tracing.exporters)")
	demoCmd.Flags().BoolVar(&f.failAuth, "fail-auth", false, "Log in without the bypass header")
	rootCmd.AddCommand(demoCmd)
}

// DemoOutput is the JSON form of a demo run.
type DemoOutput struct {
	ColdLaunchID string              `json:"coldLaunchId"`
	TraceID      string              `json:"traceId"`
	Spans        []tracing.SpanData  `json:"spans"`
	Requests     []*requestlog.Entry `json:"requests,omitempty"`
}

func runDemo(cmd *cobra.Command, _ []string) error {
	f := &demoFlagVals

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if f.exporters != "" {
		cfg.Tracing.Exporters = splitList(f.exporters)
	}
	if !hasExporter(cfg, config.ExporterMemory) {
		cfg.Tracing.Exporters = append(cfg.Tracing.Exporters, config.ExporterMemory)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	var srv *mockserver.Server
	if f.embedded {
		serverCfg := cfg.Server
		serverCfg.Addr = "127.0.0.1:0"
		srv = mockserver.New(serverCfg, cfg.Routes, mockserver.WithLogger(log.With("component", "mockserver")))
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start mock backend: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		cfg.Client.BaseURL = srv.BaseURL()
	}

	a, err := app.New(ctx, cfg, app.WithLogger(log), app.WithStdout(cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	if err := runPhases(ctx, a, !f.failAuth); err != nil {
		_ = a.Shutdown(ctx)
		return err
	}
	if err := a.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to flush spans: %w", err)
	}

	out := DemoOutput{
		ColdLaunchID: a.ColdLaunch().ID.String(),
		TraceID:      a.RootContext().SpanContext().TraceID.String(),
		Spans:        a.FinishedSpans(),
	}
	if srv != nil {
		out.Requests = srv.Requests().List(nil)
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return output.JSON(w, out)
	}
	printDemo(w, out)
	return nil
}

// runPhases drives the application through one session.
func runPhases(ctx context.Context, a *app.App, bypass bool) error {
	a.RootContext()

	if _, err := a.NotifyAppLaunch(ctx); err != nil {
		return err
	}
	if _, err := a.NotifyBecomingInteractive(ctx, nil); err != nil {
		return err
	}
	a.EndColdLaunch()

	if _, err := a.Auth(ctx, bypass); err != nil {
		return err
	}
	if _, err := a.CheckIn(ctx, "check_in_button_clicked", demoLocations()); err != nil {
		return err
	}
	if _, err := a.CheckOut(ctx, true); err != nil {
		return err
	}
	if _, err := a.CheckOut(ctx, false); err != nil {
		return err
	}
	if _, err := a.DeviceRebooted(ctx, "android.intent.action.BOOT_COMPLETED"); err != nil {
		return err
	}
	_, err := a.LogOut(ctx)
	return err
}

func printDemo(w io.Writer, out DemoOutput) {
	fmt.Fprintf(w, "cold launch %s, trace %s\n\n", out.ColdLaunchID, out.TraceID)

	tw := output.Table(w)
	fmt.Fprintln(tw, "SPAN\tKIND\tTRACE\tSPAN ID\tPARENT\tSTATUS")
	for _, s := range out.Spans {
		parent := "-"
		if s.HasParent() {
			parent = s.ParentID.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Name, s.Kind, s.TraceID, s.SpanID, parent, s.Status)
	}
	_ = tw.Flush()

	if len(out.Requests) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = output.Table(w)
	fmt.Fprintln(tw, "METHOD\tPATH\tSTATUS\tTRACE\tSAMPLED\tBAGGAGE")
	for i := len(out.Requests) - 1; i >= 0; i-- {
		e := out.Requests[i]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%t\t%d\n",
			e.Method, e.Path, e.ResponseStatus, orDash(e.TraceID), e.Sampled, len(e.Baggage))
	}
	_ = tw.Flush()
}

func demoLocations() restapi.LocationModel {
	return restapi.LocationModel{List: []restapi.LocationEntity{
		{Lat: 37.422, Lng: -122.084},
		{Lat: 37.423, Lng: -122.085},
	}}
}

func hasExporter(cfg *config.Config, name string) bool {
	for _, e := range cfg.Tracing.Exporters {
		if strings.EqualFold(strings.TrimSpace(e), name) {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
