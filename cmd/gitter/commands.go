package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gitter/internal/content"
	"gitter/internal/diff"
	"gitter/internal/refs"
	"gitter/internal/repo"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an empty Gitter repository",
		Long: `Create an empty Gitter repository in the current directory: a .gitter
directory holding objects, refs/heads, refs/tags, HEAD and a default config.
Running it again in an existing repository is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, reinit, err := repo.Init(a.dir)
			if err != nil {
				return fmt.Errorf("initializing repository: %w", err)
			}

			if reinit {
				fmt.Fprintln(cmd.OutOrStdout(), "Reinitialized existing Gitter repository in", meta)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Initialized empty Gitter repository in", meta)
			}
			return nil
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>...",
		Short: "Add file contents to the index",
		Long: `Stage the current content of files for the next commit. Directories are
walked recursively; paths matched by .gitterignore are reported and skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open(cmd)
			if err != nil {
				return err
			}

			paths := make([]string, len(args))
			for i, p := range args {
				paths[i] = a.abs(p)
			}

			res, err := r.Add(paths)
			if err != nil {
				return err
			}
			for _, p := range res.Ignored {
				fmt.Fprintf(cmd.OutOrStdout(), "Ignoring %s\n", p)
			}
			return nil
		},
	}
}

func (a *app) commitCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "commit -m <message>",
		Short: "Record changes to the repository",
		Long: `Create a new commit holding the contents of the index. Its parent is HEAD,
plus MERGE_HEAD while a merge is in progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open(cmd)
			if err != nil {
				return err
			}
			id, err := r.Commit(message)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "the commit message")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open(cmd)
			if err != nil {
				return err
			}
			st, err := r.Status()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			green := color.New(color.FgGreen).SprintFunc()
			red := color.New(color.FgRed).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()

			if st.Branch != "" {
				fmt.Fprintf(w, "On branch %s\n", st.Branch)
			} else {
				fmt.Fprintf(w, "HEAD detached at %s\n", short(st.Head))
			}
			if st.MergeHead != "" {
				fmt.Fprintf(w, "Merging with %s\n", yellow(short(st.MergeHead)))
			}

			fmt.Fprint(w, "\nChanges to be committed:\n\n")
			for _, ch := range st.Staged {
				fmt.Fprintf(w, "%s\n", green(formatChange(ch)))
			}

			fmt.Fprint(w, "\nChanges not staged for commit:\n\n")
			for _, ch := range st.Unstaged {
				fmt.Fprintf(w, "%s\n", red(formatChange(ch)))
			}
			return nil
		},
	}
}

func formatChange(ch diff.Change) string {
	return fmt.Sprintf("%12s: %s", ch.Action, ch.Path)
}

func short(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}

func (a *app) logCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log [<commit>]",
		Short: "Show commit logs",
		Long: `Show the history reachable from a commit, HEAD by default, following first
parents before side branches. Each entry lists the references pointing at it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open(cmd)
			if err != nil {
				return err
			}

			rev := refs.CurrentToken
			if len(args) == 1 {
				rev = args[0]
			}
			start, err := r.Refs.ResolveRevision(rev)
			if err != nil {
				return err
			}

			entries, err := r.Log(start)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			yellow := color.New(color.FgYellow)
			for _, e := range entries {
				line := "commit " + e.ID
				if len(e.Refs) > 0 {
					line += " (" + strings.Join(e.Refs, ", ") + ")"
				}
				yellow.Fprintln(w, line)
				fmt.Fprintln(w)
				for _, l := range strings.Split(e.Commit.Message, "\n") {
					if l == "" {
						fmt.Fprintln(w)
						continue
					}
					fmt.Fprintf(w, "    %s\n", l)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
}

func (a *app) diffCmd() *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "diff [--cached] [<commit>]",
		Short: "Show changes between commits, the index and the working tree",
		Long: `Without --cached, compare the working tree with the index, or with <commit>
when given. With --cached, compare the index with HEAD, or with <commit>.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open(cmd)
			if err != nil {
				return err
			}

			var rev string
			if len(args) == 1 {
				rev = args[0]
			}
			out, err := r.Diff(cmd.Context(), rev, cached)
			if err != nil {
				return err
			}
			printColoredDiff(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "view changes staged in the index")
	return cmd
}

func (a *app) hashObjectCmd() *cobra.Command {
	var (
		write bool
		kind  string
	)
	cmd := &cobra.Command{
		Use:   "hash-object [-w] [-t <kind>] <file>",
		Short: "Compute an object id, optionally storing the object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := content.ParseKind(kind)
			if err != nil {
				return err
			}
			r, err := a.open(cmd)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(a.abs(args[0]))
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			id, err := r.HashObject(k, data, write)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "store the object")
	cmd.Flags().StringVarP(&kind, "type", "t", string(content.KindBlob), "object kind")
	return cmd
}

func (a *app) catFileCmd() *cobra.Command {
	var showType, pretty bool
	cmd := &cobra.Command{
		Use:   "cat-file (-t | -p) <object>",
		Short: "Show the kind or content of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if showType == pretty {
				return fmt.Errorf("exactly one of -t or -p is required")
			}
			r, err := a.open(cmd)
			if err != nil {
				return err
			}

			kind, data, err := r.CatFile(args[0])
			if err != nil {
				return err
			}
			if showType {
				fmt.Fprintln(cmd.OutOrStdout(), kind)
				return nil
			}
			cmd.OutOrStdout().Write(data)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showType, "type", "t", false, "show the object kind")
	cmd.Flags().BoolVarP(&pretty, "print", "p", false, "show the object content")
	return cmd
}

func (a *app) branchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branch [<name> [<start>]]",
		Short: "List or create branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if len(args) == 0 {
				branches, err := r.Branches()
				if err != nil {
					return err
				}
				green := color.New(color.FgGreen).SprintFunc()
				for _, b := range branches {
					if b.Current {
						fmt.Fprintf(w, "* %s\n", green(b.Name))
					} else {
						fmt.Fprintf(w, "  %s\n", b.Name)
					}
				}
				return nil
			}

			var start string
			if len(args) == 2 {
				start = args[1]
			}
			id, err := r.CreateBranch(args[0], start)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Branch %s set to %s\n", args[0], short(id))
			return nil
		},
	}
}

func (a *app) tagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag [<name> [<commit>]]",
		Short: "List or create tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if len(args) == 0 {
				named, err := r.Refs.List(refs.TagsPrefix, true)
				if err != nil {
					return err
				}
				for _, n := range named {
					fmt.Fprintln(w, strings.TrimPrefix(n.Name, refs.TagsPrefix))
				}
				return nil
			}

			var rev string
			if len(args) == 2 {
				rev = args[1]
			}
			_, err = r.CreateTag(args[0], rev)
			return err
		},
	}
}

func (a *app) showRefCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-ref",
		Short: "List references with the ids they resolve to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open(cmd)
			if err != nil {
				return err
			}
			named, err := r.ShowRefs()
			if err != nil {
				return err
			}
			for _, n := range named {
				if n.Ref.Absent() {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", n.Ref.Value, n.Name)
			}
			return nil
		},
	}
}

func (a *app) reflogCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reflog [<ref>]",
		Short: "Show the update history of a reference",
		Long: `List the recorded updates of a reference, newest first. Without an
argument the current branch is shown, or HEAD when detached.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open(cmd)
			if err != nil {
				return err
			}

			var ref string
			if len(args) == 1 {
				ref = args[0]
			}
			entries, err := r.Reflog(ref, limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			yellow := color.New(color.FgYellow).SprintFunc()
			for i, e := range entries {
				value := e.New
				if value == "" {
					value = strings.Repeat("0", 10)
				}
				fmt.Fprintf(w, "%s %s@{%d}: %s\n", yellow(short(value)), e.Ref, i, e.Reason)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "show at most this many entries")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-stage tracked files as they change",
		Long: `Watch the working tree and stage files that are already in the index
whenever they are written. Stops on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Watching %s (press Ctrl-C to stop)\n", r.Root)
			return r.Watch(ctx, func(path string) {
				fmt.Fprintf(w, "Re-staged %s\n", path)
			})
		},
	}
}
