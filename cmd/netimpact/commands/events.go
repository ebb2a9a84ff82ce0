package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-netimpact/pkg/events"
	"github.com/dd0wney/cluso-netimpact/pkg/logging"
)

func (a *app) eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "events",
		Short:   "Follow job events published by a running server",
		Example: "  netimpact events --url tcp://127.0.0.1:40899 --type job.finished",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			if url == "" {
				url = a.cfg.Events.NNGURL
			}
			if url == "" {
				return fmt.Errorf("--url or events.nng_url is required")
			}
			names, _ := cmd.Flags().GetStringSlice("type")
			types := make([]events.Type, len(names))
			for i, n := range names {
				types[i] = events.Type(n)
			}
			count, _ := cmd.Flags().GetInt("count")

			sub, err := events.NewNNGSubscriber(url, types...)
			if err != nil {
				return err
			}
			defer sub.Close()
			a.logger.Info("following events", logging.String("url", url))

			ctx := cmd.Context()
			for seen := 0; count <= 0 || seen < count; {
				if ctx.Err() != nil {
					return nil
				}
				ev, err := sub.Recv(time.Second)
				if events.IsTimeout(err) {
					continue
				}
				if err != nil {
					return err
				}
				seen++
				if err := a.printEvent(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("url", "", "publisher URL (defaults to events.nng_url)")
	cmd.Flags().StringSlice("type", nil, "event types to follow, all when empty")
	cmd.Flags().Int("count", 0, "exit after this many events, 0 to follow forever")
	return cmd
}

func (a *app) printEvent(ev events.Event) error {
	if a.output() == "json" {
		line, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(line))
		return err
	}
	status := ev.State
	if ev.Type == events.JobProgress && ev.Total > 0 {
		status = fmt.Sprintf("%d/%d", ev.Done, ev.Total)
	}
	style := labelStyle
	switch {
	case ev.Error != "":
		style = errorStyle
		status += " " + ev.Error
	case ev.Type == events.JobFinished:
		style = successStyle
	}
	_, err := fmt.Fprintf(a.out, "%s %-14s %s %-8s %s\n",
		labelStyle.Render(ev.Time.Format("15:04:05")),
		headerStyle.Render(string(ev.Type)),
		ev.JobID, ev.Kind, style.Render(status))
	return err
}
