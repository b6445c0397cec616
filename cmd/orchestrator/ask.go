package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/config"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

func newAskCmd() *cobra.Command {
	var (
		sessionID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Run one orchestration against the configured registry and agents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := newLogger(cfg, cmd.ErrOrStderr())

			rt, err := buildRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.orch.Handle(cmd.Context(), &types.OrchestrateRequest{
				Query:     strings.Join(args, " "),
				SessionID: sessionID,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			renderResponse(cmd.OutOrStdout(), resp)
			if !resp.Success {
				return fmt.Errorf("session %s finished %s", resp.SessionID, resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Use this session ID instead of a generated one")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw orchestrate response")
	return cmd
}

// renderResponse prints the plan, per-agent provenance and final answer.
func renderResponse(w io.Writer, resp *types.OrchestrateResponse) {
	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)

	header.Fprintf(w, "Session %s\n", resp.SessionID)
	fmt.Fprintf(w, "  status:   %s\n", statusColor(resp.Status).Sprint(resp.Status))
	if resp.Execution.Strategy != "" {
		fmt.Fprintf(w, "  strategy: %s %v\n", resp.Execution.Strategy, resp.Execution.Levels)
	}
	fmt.Fprintf(w, "  duration: %dms\n", resp.Execution.TotalDurationMs)
	if resp.Error != "" {
		fmt.Fprintf(w, "  error:    %s\n", color.RedString("%s (%s)", resp.Error, resp.ErrorKind))
	}
	if len(resp.Incomplete) > 0 {
		fmt.Fprintf(w, "  incomplete: %s\n", color.YellowString(strings.Join(resp.Incomplete, ", ")))
	}

	if len(resp.Execution.PerAgentResults) > 0 {
		fmt.Fprintln(w)
		header.Fprintln(w, "Agents")
		for _, r := range resp.Execution.PerAgentResults {
			mark := color.GreenString("✓")
			detail := r.Duration.Round(time.Millisecond).String()
			if !r.Success {
				mark = color.RedString("✗")
				detail = r.Error
			}
			fmt.Fprintf(w, "  %s step %d %s %s\n", mark, r.Step, r.AgentID, dim.Sprint(detail))
		}
	}

	if len(resp.Consolidated.Categories) > 0 {
		fmt.Fprintln(w)
		header.Fprintln(w, "Categories")
		cats := make([]string, 0, len(resp.Consolidated.Categories))
		for c := range resp.Consolidated.Categories {
			cats = append(cats, string(c))
		}
		sort.Strings(cats)
		for _, c := range cats {
			segs := resp.Consolidated.Categories[types.Category(c)]
			if len(segs) == 0 {
				continue
			}
			names := make([]string, 0, len(segs))
			for _, s := range segs {
				name := s.AgentName
				if name == "" {
					name = s.AgentID
				}
				names = append(names, name)
			}
			fmt.Fprintf(w, "  %-11s %s\n", c, dim.Sprint(strings.Join(names, ", ")))
		}
	}

	fmt.Fprintln(w)
	header.Fprintln(w, "Response")
	fmt.Fprintln(w, resp.FinalResponse)
}

func statusColor(s types.SessionStatus) *color.Color {
	switch s {
	case types.SessionStatusCompleted:
		return color.New(color.FgGreen)
	case types.SessionStatusPartial:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
