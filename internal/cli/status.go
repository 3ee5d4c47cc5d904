package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/autocompose/internal/autobuild"
	"github.com/mrz1836/autocompose/internal/clock"
	"github.com/mrz1836/autocompose/internal/constants"
	"github.com/mrz1836/autocompose/internal/errors"
	"github.com/mrz1836/autocompose/internal/history"
	"github.com/mrz1836/autocompose/internal/publish"
	"github.com/mrz1836/autocompose/internal/tui"
	"github.com/mrz1836/autocompose/internal/versiondir"
)

// StatusReport is what the status command shows.
type StatusReport struct {
	Workdir       string          `json:"workdir"`
	PublishedSlot *int            `json:"published_slot,omitempty"`
	PublishedPath string          `json:"published_path,omitempty"`
	LatestCompose *int            `json:"latest_compose,omitempty"`
	LatestImages  *int            `json:"latest_images,omitempty"`
	Trees         []TreeStatus    `json:"trees,omitempty"`
	Cycles        []history.Cycle `json:"cycles"`
}

// TreeStatus is one tree from the latest compose manifest.
type TreeStatus struct {
	Treefile string `json:"treefile"`
	Ref      string `json:"ref"`
	Revision string `json:"revision,omitempty"`
	Success  bool   `json:"success"`
	Changed  bool   `json:"changed"`
}

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(parent *cobra.Command, flags *GlobalFlags) {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show published images and recent cycles",
		Long: `Display the published image slot, the latest compose and image versions,
the revisions from the latest compose, and the most recent cycles.

Examples:
  autocompose status --workdir /srv/autocompose
  autocompose status --output json --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.Wrapf(errors.ErrInvalidArgument, "--limit must be positive, got %d", limit)
			}
			report, err := collectStatus(cmd.Context(), flags.Workdir, limit)
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return writeStatusJSON(cmd.OutOrStdout(), report)
			}
			tui.CheckNoColor()
			return writeStatusText(cmd.OutOrStdout(), report, clock.RealClock{})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", constants.DefaultStatusLimit, "number of recent cycles to show")
	parent.AddCommand(cmd)
}

// collectStatus reads the working directory without modifying it.
func collectStatus(ctx context.Context, workdir string, limit int) (*StatusReport, error) {
	abs, err := filepath.Abs(workdir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve workdir")
	}
	report := &StatusReport{Workdir: abs, Cycles: []history.Cycle{}}

	link := filepath.Join(abs, constants.ImagesDir, constants.ImagesLinkName)
	if _, err := os.Lstat(link); err == nil {
		pub, err := publish.New(link)
		if err != nil {
			return nil, err
		}
		slot, err := pub.CurrentSlot()
		if err != nil {
			return nil, err
		}
		report.PublishedSlot = &slot
		report.PublishedPath = pub.SlotPath(slot)
	}

	report.LatestCompose, err = latestVersion(filepath.Join(abs, constants.TasksDir, constants.ComposeTaskDir))
	if err != nil {
		return nil, err
	}
	report.LatestImages, err = latestVersion(filepath.Join(abs, constants.TasksDir, constants.ImagesTaskDir))
	if err != nil {
		return nil, err
	}

	if report.LatestCompose != nil {
		dir := filepath.Join(abs, constants.TasksDir, constants.ComposeTaskDir, strconv.Itoa(*report.LatestCompose))
		// A cycle still running has no manifest yet.
		if m, readErr := autobuild.ReadManifest(dir); readErr == nil {
			for _, t := range m.Trees {
				report.Trees = append(report.Trees, TreeStatus{
					Treefile: t.Treefile, Ref: t.Ref, Revision: t.Revision,
					Success: t.Success, Changed: t.Changed,
				})
			}
		}
	}

	dbPath := filepath.Join(abs, constants.TasksDir, constants.HistoryFileName)
	if _, err := os.Stat(dbPath); err == nil {
		store, err := history.Open(ctx, dbPath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
		report.Cycles, err = store.Recent(ctx, limit)
		if err != nil {
			return nil, err
		}
	}
	return report, nil
}

func latestVersion(root string) (*int, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, nil //nolint:nilnil // a stage that never ran has no version
	}
	dir, err := versiondir.Open(root)
	if err != nil {
		return nil, err
	}
	v, ok, err := dir.Current()
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func writeStatusJSON(w io.Writer, report *StatusReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func writeStatusText(w io.Writer, report *StatusReport, c clock.Clock) error {
	styles := tui.NewOutputStyles()

	_, _ = fmt.Fprintln(w, styles.Title.Render("═══ autocompose ═══"))
	_, _ = fmt.Fprintf(w, "Workdir:    %s\n", report.Workdir)
	if report.PublishedSlot != nil {
		_, _ = fmt.Fprintf(w, "Published:  slot %d (%s)\n", *report.PublishedSlot, report.PublishedPath)
	} else {
		_, _ = fmt.Fprintf(w, "Published:  %s\n", styles.Dim.Render("nothing yet"))
	}
	_, _ = fmt.Fprintf(w, "Compose:    %s\n", versionText(report.LatestCompose))
	_, _ = fmt.Fprintf(w, "Images:     %s\n", versionText(report.LatestImages))

	if len(report.Trees) > 0 {
		_, _ = fmt.Fprintln(w)
		table := tui.NewTable(w, []tui.TableColumn{
			{Name: "TREEFILE", Width: 20},
			{Name: "REF", Width: 40},
			{Name: "REVISION", Width: 12},
			{Name: "STATE", Width: 10},
		})
		table.WriteHeader()
		for _, t := range report.Trees {
			state := "unchanged"
			switch {
			case !t.Success:
				state = "failed"
			case t.Changed:
				state = "changed"
			}
			table.WriteRow(t.Treefile, t.Ref, shortRev(t.Revision), state)
		}
	}

	_, _ = fmt.Fprintln(w)
	if len(report.Cycles) == 0 {
		_, _ = fmt.Fprintln(w, styles.Dim.Render("No cycles recorded."))
		return nil
	}
	table := tui.NewTable(w, []tui.TableColumn{
		{Name: "STAGE", Width: 12},
		{Name: "VERSION", Width: 7, Align: tui.AlignRight},
		{Name: "FINISHED", Width: 16},
		{Name: "RESULT", Width: 10},
		{Name: "NOTE", Width: 24},
	})
	table.WriteHeader()
	for _, cyc := range report.Cycles {
		styled, plain := tui.ResultCell(cyc.Success)
		table.WriteStyledRow([]string{
			tui.Title(cyc.Stage),
			strconv.Itoa(cyc.Version),
			tui.RelativeTimeWith(cyc.FinishedAt, c),
			"",
			cycleNote(cyc),
		}, 3, styled, plain)
	}
	return nil
}

func versionText(v *int) string {
	if v == nil {
		return "none"
	}
	return strconv.Itoa(*v)
}

func shortRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func cycleNote(c history.Cycle) string {
	switch {
	case c.PublishedSlot != nil:
		return "published slot " + strconv.Itoa(*c.PublishedSlot)
	case c.Stage == history.StageCompose && c.Changed:
		return "changed"
	case c.Stage == history.StageCompose:
		return "no changes"
	default:
		return ""
	}
}
