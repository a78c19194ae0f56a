package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mselser95/polymarket-sim/internal/session"
	"github.com/mselser95/polymarket-sim/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var sessionCmd = &cobra.Command{
	Use:   "session <tape-dir>",
	Short: "Step through a tape interactively",
	Long: `Opens an interactive session over a tape. The cursor advances on
demand; orders can be submitted and cancelled between steps and fill
exactly as they would in a replay of the same tape.

Commands:
  step [n]                              advance the cursor n events (default 1)
  state                                 print books, open orders and portfolio
  submit <asset> <side> <limit> <size>  submit a limit order (side BUY or SELL)
  cancel <order-id>                     request a cancel
  save <dir>                            write session artifacts to dir
  help                                  print this list
  quit                                  exit

Cash, fees and marking come from the environment (STARTING_CASH,
FEE_RATE_BPS, MARK_METHOD, STRICT_BOOK).

Example:
  polymarket-sim session tapes/election`,
	Args: cobra.ExactArgs(1),
	RunE: runSession,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(sessionCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	tapeDir := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	manager, err := session.NewManager(&session.ManagerConfig{
		TapeTTL: cfg.SessionTapeCacheTTL,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}
	defer manager.Shutdown()

	sess, err := manager.Open(tapeDir, &session.Options{
		StartingCash: cfg.StartingCash,
		FeeRateBps:   cfg.FeeRateBps,
		MarkMethod:   cfg.MarkMethod,
		StrictBooks:  cfg.StrictBook,
	})
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	st := sess.GetState()
	assetIDs := make([]string, 0, len(st.Assets))
	for _, a := range st.Assets {
		assetIDs = append(assetIDs, a.AssetID)
	}
	fmt.Printf("Session %s over %s\n", sess.ID(), tapeDir)
	fmt.Printf("%d events, assets: %s\n", st.TotalEvents, strings.Join(assetIDs, ", "))
	fmt.Println(`Type "help" for commands.`)

	return sessionLoop(sess, os.Stdin, os.Stdout)
}

func sessionLoop(sess *session.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "step":
			n := 1
			if len(fields) > 1 {
				parsed, err := strconv.Atoi(fields[1])
				if err != nil || parsed <= 0 {
					fmt.Fprintf(out, "step: want a positive count, got %q\n", fields[1])
					continue
				}
				n = parsed
			}
			stepped, err := sess.Step(n)
			if err != nil {
				fmt.Fprintf(out, "step: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "stepped %d, cursor %d", stepped, sess.Cursor())
			if sess.Done() {
				fmt.Fprint(out, " (end of tape)")
			}
			fmt.Fprintln(out)

		case "state":
			printSessionState(out, sess.GetState())

		case "submit":
			if len(fields) != 5 {
				fmt.Fprintln(out, "usage: submit <asset> <side> <limit> <size>")
				continue
			}
			limit, err := decimal.NewFromString(fields[3])
			if err != nil {
				fmt.Fprintf(out, "submit: bad limit %q\n", fields[3])
				continue
			}
			size, err := decimal.NewFromString(fields[4])
			if err != nil {
				fmt.Fprintf(out, "submit: bad size %q\n", fields[4])
				continue
			}
			orderID, err := sess.SubmitOrder(fields[1], strings.ToUpper(fields[2]), limit, size)
			if err != nil {
				fmt.Fprintf(out, "submit rejected: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "submitted %s\n", orderID)

		case "cancel":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: cancel <order-id>")
				continue
			}
			if err := sess.CancelOrder(fields[1]); err != nil {
				fmt.Fprintf(out, "cancel rejected: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "cancel requested for %s\n", fields[1])

		case "save":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: save <dir>")
				continue
			}
			if err := sess.SaveArtifacts(fields[1]); err != nil {
				fmt.Fprintf(out, "save: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "artifacts written to %s\n", fields[1])

		case "help":
			fmt.Fprintln(out, "commands: step [n], state, submit <asset> <side> <limit> <size>, cancel <order-id>, save <dir>, quit")

		case "quit", "exit":
			return nil

		default:
			fmt.Fprintf(out, "unknown command %q, type \"help\"\n", fields[0])
		}
	}
}

func printSessionState(out io.Writer, st session.State) {
	fmt.Fprintf(out, "cursor %d/%d\n", st.Cursor, st.TotalEvents)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tBEST BID\tBEST ASK\tLAST TRADE")
	for _, a := range st.Assets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			a.AssetID, decOrDash(a.BestBid), decOrDash(a.BestAsk), decOrDash(a.LastTrade))
	}
	_ = w.Flush()

	if len(st.OpenOrders) > 0 {
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ORDER\tASSET\tSIDE\tLIMIT\tSIZE\tFILLED\tSTATUS")
		for _, o := range st.OpenOrders {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				o.OrderID, o.AssetID, o.Side, o.LimitPrice, o.Size, o.FilledSize, o.Status)
		}
		_ = w.Flush()
	}

	p := st.Portfolio
	fmt.Fprintf(out, "cash %s  equity %s  realized %s  fees %s\n",
		p.Cash, p.Equity, p.RealizedPnL, p.FeesTotal)
}

func decOrDash(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
