package commands

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"git.home.luguber.info/inful/tails/internal/history"
	"git.home.luguber.info/inful/tails/internal/manifest"
)

// InspectCmd implements the 'inspect' command.
type InspectCmd struct {
	History int `help:"Number of history records to show (requires history.enabled)" default:"10"`
}

func (i *InspectCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root, "")
	if err != nil {
		return err
	}
	m, err := manifest.Load(cfg.ManifestPath())
	if err != nil {
		return err
	}
	info, err := manifest.LoadBuildInfo(cfg.BuildInfoPath())
	if err != nil {
		info = nil
	}

	var recs []history.Record
	if cfg.History.Enabled && i.History > 0 {
		st, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		if recs, err = st.Recent(context.Background(), i.History); err != nil {
			return err
		}
	}
	return writeReport(os.Stdout, m, info, recs)
}

func writeReport(out io.Writer, m manifest.Manifest, info *manifest.BuildInfo, recs []history.Record) error {
	p := message.NewPrinter(language.English)
	if info != nil {
		p.Fprintf(out, "Build %s (%s) at %s\n", info.ID, info.Mode, info.Timestamp.Format("2006-01-02 15:04:05"))
		if info.Revision != "" {
			p.Fprintf(out, "Revision %s\n", info.Revision)
		}
		p.Fprintf(out, "%d modules in %d ms\n\n", info.Modules, info.Duration)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tOUTPUT\tSIZE\tSTATIC")
	for _, key := range slices.Sorted(maps.Keys(m)) {
		e := m[key]
		static := ""
		if e.HTML != "" {
			static = "yes"
		}
		p.Fprintf(tw, "%s\t%s\t%d\t%s\n", key, e.Path, len(e.Module), static)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(recs) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tPATH\tOUTCOME\tDURATION")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Timestamp.Format("15:04:05"), r.Kind, r.Path, r.Outcome, r.Duration)
	}
	return tw.Flush()
}
