package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwgray1010/PawCoin/internal/anchor"
	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/report"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all anchors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				anchors, err := s.mgr.LoadAnchors(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), anchors)
			})
		},
	}
}

type positionFlags struct {
	x, y, z float64
}

func (p *positionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&p.x, "x", 0, "X position")
	cmd.Flags().Float64Var(&p.y, "y", 0, "Y position")
	cmd.Flags().Float64Var(&p.z, "z", 0, "Z position")
}

func (p positionFlags) position() *model.Position {
	return &model.Position{X: p.x, Y: p.y, Z: p.z}
}

// merge overlays the axes set on the command line onto base.
func (p positionFlags) merge(cmd *cobra.Command, base *model.Position) *model.Position {
	out := p.position()
	if base == nil {
		return out
	}
	flags := cmd.Flags()
	if !flags.Changed("x") {
		out.X = base.X
	}
	if !flags.Changed("y") {
		out.Y = base.Y
	}
	if !flags.Changed("z") {
		out.Z = base.Z
	}
	return out
}

func newAddCmd() *cobra.Command {
	var in model.AnchorInput
	var pos positionFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Place a new anchor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Position = pos.position()
			return withSession(cmd, func(ctx context.Context, s *session) error {
				rec, err := s.mgr.AddAnchor(ctx, in)
				if err != nil {
					return err
				}
				log.Debug().Str("anchor_id", rec.ID).Msg("anchor added")
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Anchor name (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "Chore description (required)")
	cmd.Flags().StringVar(&in.AssignedKidID, "kid", "", "Assigned kid id")
	cmd.Flags().IntVar(&in.MinDurationSeconds, "min-duration", 0, "Minimum chore duration in seconds")
	pos.bind(cmd)
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var name, description string
	var minDuration int
	var pos positionFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Edit an anchor's name, description, position or minimum duration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if _, err := s.mgr.LoadAnchors(ctx); err != nil {
					return err
				}
				rec, ok := s.mgr.Get(args[0])
				if !ok {
					return model.NotFound("update", args[0])
				}
				flags := cmd.Flags()
				if flags.Changed("name") {
					rec.Name = name
				}
				if flags.Changed("description") {
					rec.Description = description
				}
				if flags.Changed("min-duration") {
					rec.MinDurationSeconds = minDuration
				}
				if flags.Changed("x") || flags.Changed("y") || flags.Changed("z") {
					rec.Position = pos.merge(cmd, rec.Position)
				}
				if _, err := s.mgr.UpdateAnchor(ctx, rec); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().IntVar(&minDuration, "min-duration", 0, "New minimum duration in seconds")
	pos.bind(cmd)
	return cmd
}

// idCmd builds a command that takes one anchor id and reports success.
func idCmd(use, short string, fn func(m *anchor.Manager, ctx context.Context, id string) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if _, err := fn(s.mgr, ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", use, args[0])
				return nil
			})
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return idCmd("remove", "Delete an anchor", (*anchor.Manager).RemoveAnchor)
}

func newStartCmd() *cobra.Command {
	return idCmd("start", "Start the chore at an anchor", (*anchor.Manager).StartChore)
}

func newCompleteCmd() *cobra.Command {
	return idCmd("complete", "Approve a chore as completed", (*anchor.Manager).CompleteAnchor)
}

func newAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign ID [KID]",
		Short: "Assign a kid to an anchor; omit KID to unassign",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kid := ""
			if len(args) == 2 {
				kid = args[1]
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if _, err := s.mgr.AssignKidToAnchor(ctx, args[0], kid); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "assign: %s -> %q\n", args[0], kid)
				return nil
			})
		},
	}
}

func newFinishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finish ID",
		Short: "Finish the chore at an anchor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				res, err := s.mgr.FinishChore(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var entry model.HistoryEntry

	cmd := &cobra.Command{
		Use:   "history ID",
		Short: "Append an event to an anchor's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if _, err := s.mgr.LoadAnchors(ctx); err != nil {
					return err
				}
				if _, err := s.mgr.AddHistory(ctx, args[0], entry); err != nil {
					return err
				}
				rec, _ := s.mgr.Get(args[0])
				return printJSON(cmd.OutOrStdout(), rec.History)
			})
		},
	}
	cmd.Flags().StringVar(&entry.Event, "event", "", "Event name (required)")
	cmd.Flags().StringVar(&entry.Actor, "actor", "", "Who triggered the event")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func newQRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qr ID",
		Short: "Show an anchor's start and end QR codes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				codes, err := s.mgr.GetQrCodes(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), codes)
			})
		},
	}
}

func newNearestCmd() *cobra.Command {
	var pos positionFlags
	var maxDistance float64

	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "Find the anchor closest to a position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if _, err := s.mgr.LoadAnchors(ctx); err != nil {
					return err
				}
				rec, ok := s.mgr.FindNearestAnchor(*pos.position(), maxDistance)
				if !ok {
					return fmt.Errorf("no anchor within range")
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
	pos.bind(cmd)
	cmd.Flags().Float64Var(&maxDistance, "max", anchor.DefaultNearestDistance, "Maximum distance")
	return cmd
}

func newKidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kid KID",
		Short: "List anchors assigned to a kid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if _, err := s.mgr.LoadAnchors(ctx); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s.mgr.AnchorsForKid(args[0]))
			})
		},
	}
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Copy the sync server's anchors into the selected backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newSyncClient()
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				anchors, err := s.mgr.LoadFromBackend(ctx, c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pulled %d anchors\n", len(anchors))
				return nil
			})
		},
	}
}

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Replace the sync server's anchors with the selected backend's",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newSyncClient()
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if _, err := s.mgr.SyncToBackend(ctx, c); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pushed %d anchors\n", len(s.mgr.All()))
				return nil
			})
		},
	}
}

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every anchor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if _, err := s.mgr.ClearAllAnchors(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting all anchors")
	return cmd
}

func newReportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the chore board to an xlsx file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				anchors, err := s.mgr.LoadAnchors(ctx)
				if err != nil {
					return err
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := report.WriteChores(f, anchors, time.Now()); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d anchors to %s\n", len(anchors), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "chores.xlsx", "Output file")
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the sync server's health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newSyncClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			if err := c.Health(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
