package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"
)

type statsSnapshot struct {
	Sessions struct {
		ActiveSessions int            `json:"active_sessions"`
		PerScope       map[string]int `json:"per_scope"`
		DroppedEvents  uint64         `json:"dropped_events"`
		UptimeSeconds  int64          `json:"uptime_seconds"`
	} `json:"sessions"`
	Bus struct {
		Subscriptions int            `json:"subscriptions"`
		PerScope      map[string]int `json:"per_scope"`
		DroppedEvents uint64         `json:"dropped_events"`
	} `json:"bus"`
}

// statsCmd renders a small terminal dashboard over the /api/stats endpoint
// of a running server. Handy when tailing a node during an on-sale spike.
func statsCmd() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Live terminal dashboard for a running stream server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Base URL of the server to watch",
				Value: "http://localhost:8090",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Poll interval",
				Value: 2 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			return runStatsDashboard(c.String("addr"), c.Duration("interval"))
		},
	}
}

func runStatsDashboard(addr string, interval time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("stats: init terminal: %w", err)
	}
	defer ui.Close()

	summary := widgets.NewParagraph()
	summary.Title = " " + ServiceName + " "
	summary.SetRect(0, 0, 60, 7)

	scopes := widgets.NewList()
	scopes.Title = " sessions per event "
	scopes.SetRect(0, 7, 60, 20)
	scopes.WrapText = false

	history := widgets.NewSparkline()
	history.LineColor = ui.ColorGreen
	group := widgets.NewSparklineGroup(history)
	group.Title = " active sessions "
	group.SetRect(60, 0, 100, 7)

	client := &http.Client{Timeout: interval}
	var points []float64

	refresh := func() {
		snap, err := fetchStats(client, addr)
		if err != nil {
			summary.Text = fmt.Sprintf("unreachable: %v", err)
			ui.Render(summary, scopes, group)
			return
		}

		summary.Text = fmt.Sprintf(
			"uptime     %s\nsessions   %d\nbus subs   %d\ndropped    %d (bus %d)",
			(time.Duration(snap.Sessions.UptimeSeconds) * time.Second).String(),
			snap.Sessions.ActiveSessions,
			snap.Bus.Subscriptions,
			snap.Sessions.DroppedEvents,
			snap.Bus.DroppedEvents,
		)

		rows := make([]string, 0, len(snap.Sessions.PerScope))
		for id, n := range snap.Sessions.PerScope {
			rows = append(rows, fmt.Sprintf("%-40s %d", id, n))
		}
		sort.Strings(rows)
		scopes.Rows = rows

		points = append(points, float64(snap.Sessions.ActiveSessions))
		if len(points) > 36 {
			points = points[len(points)-36:]
		}
		history.Data = points

		ui.Render(summary, scopes, group)
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	events := ui.PollEvents()

	for {
		select {
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				ui.Clear()
				refresh()
			}
		case <-ticker.C:
			refresh()
		}
	}
}

func fetchStats(client *http.Client, addr string) (*statsSnapshot, error) {
	resp, err := client.Get(addr + "/api/stats")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %s", resp.Status)
	}
	var snap statsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
