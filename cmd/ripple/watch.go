package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ripple-dev/ripple/internal/config"
	"github.com/ripple-dev/ripple/pkg/devtool"
)

func watchCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail cell events from a running inspection server",
		Long: `Connect to an inspection server's /stream websocket and print each
cell event as it arrives. Stop with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			u := url.URL{Scheme: "ws", Host: addr, Path: "/stream"}
			conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
			if err != nil {
				return fmt.Errorf("connect %s: %w", u.String(), err)
			}
			defer conn.Close()

			go func() {
				<-ctx.Done()
				deadline := time.Now().Add(time.Second)
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				conn.SetReadDeadline(time.Now().Add(time.Second))
			}()

			success("watching %s", u.String())

			for {
				var ev devtool.Event
				if err := conn.ReadJSON(&ev); err != nil {
					if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						return nil
					}
					return err
				}
				printEvent(ev)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddress, "Inspection server address")

	return cmd
}

func printEvent(ev devtool.Event) {
	key := ev.Entry.Key
	if key == "" {
		key = "-"
	}
	fmt.Printf("%s  %-9s %-8s #%-6d %s\n",
		ev.Time.Format("15:04:05.000"), ev.Type, ev.Entry.Kind, ev.Entry.ID, key)
}

func dumpCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print a running server's cell table",
		Long:  `Fetch /cells from an inspection server and render it as a table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get("http://" + addr + "/cells")
			if err != nil {
				return fmt.Errorf("fetch cells: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("fetch cells: %s", resp.Status)
			}

			var entries []devtool.Entry
			if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
				return fmt.Errorf("decode cells: %w", err)
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"id", "kind", "key", "wire id", "alive", "created"})
			for _, e := range entries {
				key := e.Key
				if key == "" {
					key = "-"
				}
				table.Append([]string{
					strconv.FormatUint(e.ID, 10),
					e.Kind,
					key,
					e.WireID,
					strconv.FormatBool(e.Alive),
					e.CreatedAt.Format("15:04:05.000"),
				})
			}
			table.Render()

			info("%s cells", humanize.Comma(int64(len(entries))))
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddress, "Inspection server address")

	return cmd
}
