package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/wisdomcard/internal/assets"
	"tools.zach/dev/wisdomcard/internal/atomicfile"
	"tools.zach/dev/wisdomcard/internal/compositor"
	"tools.zach/dev/wisdomcard/internal/content"
	"tools.zach/dev/wisdomcard/internal/export"
	"tools.zach/dev/wisdomcard/internal/layout"
	"tools.zach/dev/wisdomcard/internal/logger"
	"tools.zach/dev/wisdomcard/internal/preview"
	"tools.zach/dev/wisdomcard/internal/server"
	"tools.zach/dev/wisdomcard/internal/store"
)

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// ///////////////////////////////////////////////
// render / text
// ///////////////////////////////////////////////

func (a *app) render(ctx context.Context, args []string) error {
	fs := a.flagSet("render")
	contentPath := fs.String("content", "", "Content envelope JSON file, or - for stdin")
	bg := fs.String("bg", "", "Background: built-in id, upload id, file path, or URL")
	kind := fs.String("kind", "", "Background kind (image or video); guessed from the name when empty")
	format := fs.String("format", "square", "Output format: square or vertical")
	out := fs.String("out", "", "Output file or directory (default <data-dir>/exports)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	v, err := a.readContent(*contentPath)
	if err != nil {
		return err
	}
	f, err := layout.ParseFormat(*format)
	if err != nil {
		return usageError("%v", err)
	}
	background, err := a.background(ctx, *bg, *kind)
	if err != nil {
		return err
	}
	r, err := a.renderer(ctx)
	if err != nil {
		return err
	}

	sess := compositor.NewSession(ctx, r, a.cfg.Assets.Logo)
	defer sess.Close()
	if err := sess.AwaitLogo(ctx); err != nil {
		return err
	}
	exp, err := sess.Export(ctx, compositor.ExportRequest{Content: v, Background: background, Format: f})
	if err != nil {
		return err
	}

	path := exportPath(*out, a.paths.Exports(), exp.Filename)
	if err := export.Save(path, exp.Data); err != nil {
		return err
	}
	a.log.Info("export written", "path", path, "bytes", len(exp.Data), "overlay", exp.Overlay)
	fmt.Fprintln(a.stdout, path)
	return nil
}

func (a *app) text(_ context.Context, args []string) error {
	fs := a.flagSet("text")
	contentPath := fs.String("content", "", "Content envelope JSON file, or - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	v, err := a.readContent(*contentPath)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, content.PlainText(v))
	return nil
}

// ///////////////////////////////////////////////
// preview
// ///////////////////////////////////////////////

func (a *app) preview(ctx context.Context, args []string) error {
	fs := a.flagSet("preview")
	contentPath := fs.String("content", "", "Content envelope JSON file, or - for stdin")
	bg := fs.String("bg", "", "Background: built-in id, upload id, file path, or URL")
	kind := fs.String("kind", "", "Background kind (image or video); guessed from the name when empty")
	format := fs.String("format", "square", "Output format: square or vertical")
	out := fs.String("out", "", "HTML output file (default stdout)")
	watch := fs.Bool("watch", false, "Rewrite -out whenever the content file changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *watch && (*out == "" || *contentPath == "" || *contentPath == "-") {
		return usageError("-watch needs -out and a -content file")
	}

	f, err := layout.ParseFormat(*format)
	if err != nil {
		return usageError("%v", err)
	}
	background, err := a.background(ctx, *bg, *kind)
	if err != nil {
		return err
	}
	reg, err := a.fonts(ctx)
	if err != nil {
		return err
	}
	logo := a.logoURL(reg)

	write := func() error {
		v, err := a.readContent(*contentPath)
		if err != nil {
			return err
		}
		doc := preview.Document{Content: v, Background: background, Format: f, Logo: logo}
		if *out == "" {
			return preview.Render(a.stdout, doc)
		}
		return atomicfile.WriteFunc(*out, 0o644, func(w io.Writer) error {
			return preview.Render(w, doc)
		})
	}

	if err := write(); err != nil {
		return err
	}
	if !*watch {
		return nil
	}

	w, err := preview.NewWatcher(*contentPath, a.log)
	if err != nil {
		return err
	}
	defer w.Close()
	a.log.Info("watching content", "path", *contentPath, "out", *out, "polling", w.Polling())
	fmt.Fprintf(a.stdout, "watching %s, writing %s\n", *contentPath, *out)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Events():
			if err := write(); err != nil {
				a.log.Warn("preview not updated", "path", *contentPath, "error", err)
				continue
			}
			logger.Trace(a.log, "preview updated", "out", *out)
		}
	}
}

// ///////////////////////////////////////////////
// fetch
// ///////////////////////////////////////////////

func (a *app) fetch(ctx context.Context, args []string) error {
	fs := a.flagSet("fetch")
	topic := fs.String("topic", "", "Topic to generate content about")
	viewName := fs.String("view", string(content.ViewHome), "Which lists to request: home, quran, hadith, or stories")
	out := fs.String("out", "", "Directory to write one envelope file per item (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *topic == "" {
		*topic = strings.Join(fs.Args(), " ")
	}
	if strings.TrimSpace(*topic) == "" {
		return usageError("-topic is required")
	}
	view, err := content.ParseView(*viewName)
	if err != nil {
		return usageError("%v", err)
	}

	coll, err := a.contentClient().Fetch(ctx, *topic, view)
	if err != nil {
		return err
	}
	items := coll.All()

	if *out == "" {
		envs := make([]content.Envelope, len(items))
		for i, v := range items {
			envs[i] = content.Envelope{Variant: v}
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(envs)
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for i, v := range items {
		data, err := content.Encode(v)
		if err != nil {
			return err
		}
		path := filepath.Join(*out, fmt.Sprintf("%02d_%s.json", i+1, v.Kind()))
		if err := atomicfile.Write(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintln(a.stdout, path)
	}
	return nil
}

// ///////////////////////////////////////////////
// uploads
// ///////////////////////////////////////////////

func (a *app) uploads(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing subcommand")
	}
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	switch args[0] {
	case "list":
		fs := a.flagSet("uploads list")
		kind := fs.String("type", "", "Only list image or video uploads")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		var want assets.Kind
		if *kind != "" {
			if want, err = assets.ParseKind(*kind); err != nil {
				return usageError("%v", err)
			}
		}
		ups, err := st.ListUploads(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tADDED\tFILENAME")
		for _, u := range ups {
			if want != "" && u.Type != want {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Type, u.CreatedAt.Local().Format("2006-01-02 15:04"), u.Filename)
		}
		return tw.Flush()

	case "add":
		files, err := expandGlobs(args[1:])
		if err != nil {
			return err
		}
		sources := make([]store.Source, len(files))
		for i, f := range files {
			sources[i] = store.FileSource(f)
		}
		added, err := st.AddUploads(ctx, sources)
		if err != nil {
			return err
		}
		for _, u := range added {
			fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", u.ID, u.Type, u.Filename)
		}
		return nil

	case "delete":
		if len(args) < 2 {
			return usageError("missing upload id")
		}
		for _, s := range args[1:] {
			id, err := parseUUID(s)
			if err != nil {
				return err
			}
			if err := st.DeleteUpload(ctx, id); err != nil {
				if isNotFound(err) {
					return fmt.Errorf("upload %s not found", id)
				}
				return err
			}
			fmt.Fprintf(a.stdout, "deleted %s\n", id)
		}
		return nil
	}
	return usageError("unknown subcommand %q", args[0])
}

// expandGlobs resolves file patterns such as "~/Pictures/**/*.jpg". A
// pattern matching nothing is an error so typos are not silently dropped.
func expandGlobs(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, usageError("no files given")
	}
	var files []string
	seen := make(map[string]bool)
	for _, p := range patterns {
		if strings.HasPrefix(p, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				p = filepath.Join(home, p[2:])
			}
		}
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", p)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// ///////////////////////////////////////////////
// schedule
// ///////////////////////////////////////////////

func (a *app) schedule(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing subcommand")
	}
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	switch args[0] {
	case "list":
		return a.scheduleList(ctx, st, args[1:])
	case "add":
		return a.scheduleAdd(ctx, st, args[1:])
	case "update":
		return a.scheduleUpdate(ctx, st, args[1:])
	case "delete":
		if len(args) < 2 {
			return usageError("missing post id")
		}
		for _, s := range args[1:] {
			id, err := parseUUID(s)
			if err != nil {
				return err
			}
			if err := st.DeleteScheduled(ctx, id); err != nil {
				if isNotFound(err) {
					return fmt.Errorf("scheduled post %s not found", id)
				}
				return err
			}
			fmt.Fprintf(a.stdout, "deleted %s\n", id)
		}
		return nil
	}
	return usageError("unknown subcommand %q", args[0])
}

func (a *app) scheduleList(ctx context.Context, st *store.Store, args []string) error {
	fs := a.flagSet("schedule list")
	month := fs.String("month", "", "Calendar month YYYY-MM (default current month)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref := time.Now()
	if *month != "" {
		t, err := time.ParseInLocation("2006-01", *month, time.Local)
		if err != nil {
			return usageError("invalid month %q: use YYYY-MM", *month)
		}
		ref = t
	}
	start, end := store.MonthRange(ref)
	posts, err := st.ListScheduled(ctx, start, end)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tTYPE\tTITLE")
	for _, p := range posts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.ScheduledAt.Local().Format("2006-01-02 15:04"), p.ContentType, p.Title)
	}
	return tw.Flush()
}

func (a *app) scheduleAdd(ctx context.Context, st *store.Store, args []string) error {
	fs := a.flagSet("schedule add")
	contentPath := fs.String("content", "", "Content envelope JSON file, or - for stdin; omit for a custom post")
	at := fs.String("at", "", "When to post (RFC 3339 or YYYY-MM-DD HH:MM)")
	title := fs.String("title", "", "Calendar title (default derived from the content)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *at == "" {
		return usageError("-at is required")
	}
	when, err := parseTime(*at)
	if err != nil {
		return err
	}

	var v content.Variant
	if *contentPath != "" {
		if v, err = a.readContent(*contentPath); err != nil {
			return err
		}
	} else if strings.TrimSpace(*title) == "" {
		return usageError("a custom post needs -title")
	}

	p, err := store.NewScheduledPost(v, when, *title)
	if err != nil {
		return err
	}
	p, err = st.CreateScheduled(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", p.ID, p.ScheduledAt.Local().Format(time.RFC3339), p.Title)
	return nil
}

func (a *app) scheduleUpdate(ctx context.Context, st *store.Store, args []string) error {
	idArg, rest := splitID(args)
	fs := a.flagSet("schedule update")
	title := fs.String("title", "", "New calendar title")
	at := fs.String("at", "", "New time (RFC 3339 or YYYY-MM-DD HH:MM)")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if idArg == "" {
		idArg = fs.Arg(0)
	}
	if idArg == "" {
		return usageError("missing post id")
	}
	id, err := parseUUID(idArg)
	if err != nil {
		return err
	}

	var u store.ScheduleUpdate
	if *title != "" {
		u.Title = title
	}
	if *at != "" {
		when, err := parseTime(*at)
		if err != nil {
			return err
		}
		u.ScheduledAt = &when
	}
	if u.Title == nil && u.ScheduledAt == nil {
		return usageError("nothing to update: give -title or -at")
	}

	p, err := st.UpdateScheduled(ctx, id, u)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("scheduled post %s not found", id)
		}
		return err
	}
	fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", p.ID, p.ScheduledAt.Local().Format(time.RFC3339), p.Title)
	return nil
}

// ///////////////////////////////////////////////
// serve
// ///////////////////////////////////////////////

func (a *app) serve(ctx context.Context, args []string) error {
	fs := a.flagSet("serve")
	addr := fs.String("addr", a.cfg.Server.Addr, "Listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if alive, pid := checkStaleLock(a.paths); alive {
		return fmt.Errorf("server already running for %s (pid %d)", a.paths.Root, pid)
	}
	token := lockToken()
	lock, err := writeLock(a.paths, token)
	if err != nil {
		return err
	}
	defer removeLock(a.paths, token, lock)

	r, err := a.renderer(ctx)
	if err != nil {
		return err
	}
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.New(ctx, server.Options{
		Renderer:     r,
		Logo:         a.cfg.Assets.Logo,
		Content:      a.contentClient(),
		Store:        st,
		AllowOrigins: a.cfg.Server.AllowOrigins,
		Logger:       a.log,
	})
	defer srv.Close()

	a.log.Info("wisdomcard serving", "version", resolveVersion(), "addr", *addr, "data_dir", a.paths.Root)
	fmt.Fprintf(a.stdout, "listening on http://%s\n", *addr)
	return srv.ListenAndServe(ctx, *addr)
}

// ///////////////////////////////////////////////
// logs
// ///////////////////////////////////////////////

func (a *app) logs(_ context.Context, args []string) error {
	fs := a.flagSet("logs")
	n := fs.Int("n", 50, "Number of lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	lines, err := logger.Tail(a.paths.Log(), *n)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, l := range lines {
		fmt.Fprintln(a.stdout, l)
	}
	return nil
}
