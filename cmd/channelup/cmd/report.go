package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/service/applier"
)

func newTable(out io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(header)

	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)

	return t
}

// printChanges renders the artifact and feature pack changes.
func printChanges(out io.Writer, changes installation.ChangeSet) {
	if changes.IsEmpty() {
		_, _ = fmt.Fprintln(out, color.GreenString("No changes found."))

		return
	}

	t := newTable(out, table.Row{"Artifact", "Current", "New"})

	for _, s := range changes.AddedArtifacts {
		t.AppendRow(table.Row{s.Key(), "", s.Version})
	}

	for _, c := range changes.UpdatedArtifacts {
		t.AppendRow(table.Row{c.Key, c.From, c.To})
	}

	for _, s := range changes.RemovedArtifacts {
		t.AppendRow(table.Row{s.Key(), s.Version, "[removed]"})
	}

	if changes.ArtifactChanges() > 0 {
		t.Render()
	}

	for _, producer := range changes.AddedFeaturePacks {
		_, _ = fmt.Fprintln(out, color.GreenString("+ feature pack %s", producer))
	}

	for _, producer := range changes.RemovedFeaturePacks {
		_, _ = fmt.Fprintln(out, color.RedString("- feature pack %s", producer))
	}
}

// printApplied reports the outcome of a promotion.
func printApplied(out io.Writer, result *applier.Result) {
	printChanges(out, result.Changes)

	for _, path := range result.Conflicts {
		_, _ = fmt.Fprintln(out, color.YellowString("Modified file kept, new version written to %s", path+applier.ConflictSuffix))
	}

	_, _ = fmt.Fprintln(out, color.GreenString("Done: %s", applier.Summarize(result.Changes)))
}

func printChannels(out io.Writer, channels []installation.Channel) {
	t := newTable(out, table.Row{"#", "Channel", "Manifest", "Repositories"})

	for i, ch := range channels {
		repos := make([]string, 0, len(ch.Repositories))
		for _, r := range ch.Repositories {
			repos = append(repos, r.ID+"::"+r.URL)
		}

		t.AppendRow(table.Row{i + 1, ch.DisplayName(), ch.Manifest.String(), strings.Join(repos, "\n")})
	}

	t.Render()
}

// printConfigDiff renders a unified diff of two provisioning configurations.
func printConfigDiff(out io.Writer, previous, next *installation.ProvisioningConfig) error {
	from, err := yaml.Marshal(previous)
	if err != nil {
		return fmt.Errorf("render current configuration: %w", err)
	}

	to, err := yaml.Marshal(next)
	if err != nil {
		return fmt.Errorf("render new configuration: %w", err)
	}

	diff := udiff.Unified("current", "new", string(from), string(to))

	for _, line := range strings.SplitAfter(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			_, _ = fmt.Fprint(out, color.GreenString("%s", line))
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			_, _ = fmt.Fprint(out, color.RedString("%s", line))
		default:
			_, _ = fmt.Fprint(out, line)
		}
	}

	return nil
}
