package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/hellotel/pkg/carrier"
	"github.com/getmockd/hellotel/pkg/cli/internal/output"
	"github.com/getmockd/hellotel/pkg/logging"
	"github.com/getmockd/hellotel/pkg/tracing"
)

// ErrNoTraceContext is returned by decode when no valid span was found.
var ErrNoTraceContext = errors.New("no valid trace context")

var (
	decodeHeaders   []string
	decodeTransport string
)

var decodeCmd = &cobra.Command{
	Use:   "decode [uber-trace-id]",
	Short: "Decode Jaeger propagation headers",
	Long: `Decode an uber-trace-id value and any uberctx-* or jaeger-baggage headers
into trace id, span id, sampling decision and baggage.

With --transport the headers are read through a NATS, Kafka or AMQP message
carrier instead of HTTP headers. Message header names are case-sensitive and
used as given.`,
	Example: `  hellotel decode 8d828d3c7c8663418b067492675bef12:dae708107c50eb0f:0:1

  hellotel decode -H 'uber-trace-id: 8d828d3c7c8663418b067492675bef12:dae708107c50eb0f:0:1' \
    -H 'uberctx-user.id: 321' -H 'uberctx-user.name: jack'

  hellotel decode --transport kafka \
    -H 'uber-trace-id: 8d828d3c7c8663418b067492675bef12:dae708107c50eb0f:0:1'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringArrayVarP(&decodeHeaders, "header", "H", nil, "Header as 'name: value' (repeatable)")
	decodeCmd.Flags().StringVar(&decodeTransport, "transport", "http", "Header carrier: http, nats, kafka or amqp")
	rootCmd.AddCommand(decodeCmd)
}

// DecodeOutput is the decoded form of a set of headers.
type DecodeOutput struct {
	TraceID string            `json:"traceId"`
	SpanID  string            `json:"spanId"`
	Sampled bool              `json:"sampled"`
	Baggage map[string]string `json:"baggage,omitempty"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	var c tracing.Carrier = tracing.MapCarrier{}
	httpHeaders := strings.EqualFold(decodeTransport, "http")
	if !httpHeaders {
		var err error
		if c, err = carrier.New(decodeTransport); err != nil {
			return err
		}
	}

	if len(args) == 1 {
		c.Set(tracing.UberTraceIDHeader, args[0])
	}
	for _, h := range decodeHeaders {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("invalid header %q: want 'name: value'", h)
		}
		if httpHeaders {
			name = strings.ToLower(name)
		}
		c.Set(name, strings.TrimSpace(value))
	}

	tc := tracing.NewJaegerPropagator(tracing.WithPropagatorLogger(logging.Nop())).
		Extract(tracing.Background(), c)
	sc := tc.SpanContext()
	if !sc.IsValid() {
		return ErrNoTraceContext
	}

	out := DecodeOutput{
		TraceID: sc.TraceID.String(),
		SpanID:  sc.SpanID.String(),
		Sampled: sc.Sampled,
	}
	if tc.Baggage().Len() > 0 {
		out.Baggage = tc.Baggage().ToMap()
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return output.JSON(w, out)
	}

	fmt.Fprintf(w, "trace id: %s\nspan id:  %s\nsampled:  %t\n", out.TraceID, out.SpanID, out.Sampled)
	keys := make([]string, 0, len(out.Baggage))
	for k := range out.Baggage {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "baggage:  %s=%s\n", k, out.Baggage[k])
	}
	return nil
}
