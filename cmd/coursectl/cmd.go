package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"course-authoring/internal/authoring"
	"course-authoring/internal/clock"
	"course-authoring/internal/domain"
	"course-authoring/internal/draft"
	"course-authoring/internal/publication"
	"course-authoring/internal/syncer"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	userID        string
	autosaveDelay time.Duration
	clock         clock.Clock
	client        *syncer.Client
	drafts        *draft.Store
	events        authoring.EventSource
	out           io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  options -kind KIND                      - list a curated option set")
	fmt.Fprintln(cli.out, "  show -id ID                             - print the stored course")
	fmt.Fprintln(cli.out, "  edit [-id ID] [field flags] [-no-save]  - edit a course, creating it when -id is empty")
	fmt.Fprintln(cli.out, "  discard -id ID                          - drop unsaved local changes")
	fmt.Fprintln(cli.out, "  publish -id ID")
	fmt.Fprintln(cli.out, "  unpublish -id ID")
	fmt.Fprintln(cli.out, "  schedule -id ID -at RFC3339")
	fmt.Fprintln(cli.out, "  cancel -id ID                           - cancel a scheduled publish")
	fmt.Fprintln(cli.out, "  visibility -id ID -public=true|false")
	fmt.Fprintln(cli.out, "  watch -id ID                            - print change notifications until interrupted")
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// stringFields maps edit flags to the string fields they set.
var stringFields = map[string]string{
	"title":         domain.FieldTitle,
	"description":   domain.FieldDescription,
	"category":      domain.FieldCategory,
	"level":         domain.FieldLevel,
	"duration":      domain.FieldEstimatedDuration,
	"prerequisites": domain.FieldPrerequisites,
	"language":      domain.FieldLanguage,
	"welcome":       domain.FieldWelcomeMessage,
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "options":
		fs := cli.flagSet("options")
		kind := fs.String("kind", "", "Option set: categories, levels, durations, tags or languages.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		if *kind == "" {
			fs.Usage()
			return errHelp
		}
		return cli.options(ctx, domain.OptionKind(*kind))

	case "show":
		fs := cli.flagSet("show")
		id := fs.String("id", "", "Course id.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		if *id == "" {
			fs.Usage()
			return errHelp
		}
		return cli.show(ctx, *id)

	case "edit":
		fs := cli.flagSet("edit")
		id := fs.String("id", "", "Course id; empty creates a new course.")
		values := make(map[string]*string, len(stringFields))
		for name, field := range stringFields {
			values[name] = fs.String(name, "", "Sets "+field+".")
		}
		var objectives, tags listFlag
		fs.Var(&objectives, "objective", "Learning objective; repeat for several. Replaces the current list.")
		fs.Var(&tags, "tag", "Tag; repeat for several. Replaces the current list.")
		public := fs.Bool("public", false, "Sets is_public.")
		certification := fs.Bool("certification", false, "Sets certification_available.")
		cover := fs.String("cover", "", "Path to a JPEG, PNG or WebP cover image; \"none\" removes it.")
		noSave := fs.Bool("no-save", false, "Keep the changes in the local draft only.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}

		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

		edits := []func(s *authoring.Session) error{}
		names := make([]string, 0, len(stringFields))
		for name := range stringFields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if set[name] {
				field, value := stringFields[name], *values[name]
				edits = append(edits, func(s *authoring.Session) error { return s.Form.SetField(field, value) })
			}
		}
		if set["objective"] {
			edits = append(edits, func(s *authoring.Session) error {
				return s.Form.SetField(domain.FieldLearningObjectives, []string(objectives))
			})
		}
		if set["tag"] {
			edits = append(edits, func(s *authoring.Session) error {
				return s.Form.SetField(domain.FieldTags, []string(tags))
			})
		}
		if set["public"] {
			edits = append(edits, func(s *authoring.Session) error { return s.Form.SetField(domain.FieldIsPublic, *public) })
		}
		if set["certification"] {
			edits = append(edits, func(s *authoring.Session) error {
				return s.Form.SetField(domain.FieldCertificationAvailable, *certification)
			})
		}
		if set["cover"] {
			edits = append(edits, func(s *authoring.Session) error { return selectCover(s, *cover) })
		}
		return cli.edit(ctx, *id, edits, !*noSave)

	case "discard":
		fs := cli.flagSet("discard")
		id := fs.String("id", "", "Course id.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		if *id == "" {
			fs.Usage()
			return errHelp
		}
		return cli.discard(ctx, *id)

	case "publish", "unpublish", "cancel":
		fs := cli.flagSet(args[1])
		id := fs.String("id", "", "Course id.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		if *id == "" {
			fs.Usage()
			return errHelp
		}
		op := map[string]func(*publication.Controller, context.Context) (*domain.Course, error){
			"publish":   (*publication.Controller).Publish,
			"unpublish": (*publication.Controller).Unpublish,
			"cancel":    (*publication.Controller).CancelSchedule,
		}[args[1]]
		return cli.transition(ctx, *id, func(pc *publication.Controller) (*domain.Course, error) {
			return op(pc, ctx)
		})

	case "schedule":
		fs := cli.flagSet("schedule")
		id := fs.String("id", "", "Course id.")
		at := fs.String("at", "", "Publication time, RFC 3339.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		if *id == "" || *at == "" {
			fs.Usage()
			return errHelp
		}
		when, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("invalid -at %q: %w", *at, err)
		}
		return cli.transition(ctx, *id, func(pc *publication.Controller) (*domain.Course, error) {
			return pc.Schedule(ctx, when)
		})

	case "visibility":
		fs := cli.flagSet("visibility")
		id := fs.String("id", "", "Course id.")
		public := fs.Bool("public", false, "Whether the course is listed once published.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		if *id == "" {
			fs.Usage()
			return errHelp
		}
		return cli.transition(ctx, *id, func(pc *publication.Controller) (*domain.Course, error) {
			return pc.SetVisibility(ctx, *public)
		})

	case "watch":
		fs := cli.flagSet("watch")
		id := fs.String("id", "", "Course id.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		if *id == "" {
			fs.Usage()
			return errHelp
		}
		return cli.watch(ctx, *id)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) session(ctx context.Context, id string) (*authoring.Session, error) {
	s := authoring.New(cli.client, authoring.Options{
		UserID:        cli.userID,
		Drafts:        cli.drafts,
		AutosaveDelay: cli.autosaveDelay,
		Clock:         cli.clock,
	})
	if err := s.Open(ctx, id); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (cli *commandLine) options(ctx context.Context, kind domain.OptionKind) error {
	opts, err := cli.client.Options(ctx, kind)
	if err != nil {
		return err
	}
	for _, o := range opts {
		fmt.Fprintf(cli.out, "%s\t%s\n", o.Value, o.Label)
	}
	return nil
}

func (cli *commandLine) show(ctx context.Context, id string) error {
	c, err := cli.client.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func (cli *commandLine) edit(ctx context.Context, id string, edits []func(*authoring.Session) error, save bool) error {
	s, err := cli.session(ctx, id)
	if err != nil {
		return err
	}
	for _, edit := range edits {
		if err := edit(s); err != nil {
			s.Close()
			return err
		}
	}
	cli.printProblems(s)

	if !save {
		if s.Close() {
			fmt.Fprintln(cli.out, "changes kept in local draft")
		}
		return nil
	}
	if err := s.Save(ctx); err != nil {
		s.Close()
		return err
	}
	s.Close()
	_, version := s.Form.LastSaved()
	fmt.Fprintf(cli.out, "%s\tversion %d\n", s.Form.CourseID(), version)
	return nil
}

func (cli *commandLine) printProblems(s *authoring.Session) {
	problems := map[string]domain.Code{}
	for field, code := range s.Form.Errors() {
		problems[field] = code
	}
	for field, code := range s.Form.Warnings() {
		if _, ok := problems[field]; !ok {
			problems[field] = code
		}
	}
	fields := make([]string, 0, len(problems))
	for f := range problems {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(cli.out, "warning: %s: %s\n", f, problems[f])
	}
}

func selectCover(s *authoring.Session, path string) error {
	if path == "none" {
		return s.RemoveCover()
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.SelectCover(f)
}

func (cli *commandLine) discard(ctx context.Context, id string) error {
	s, err := cli.session(ctx, id)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Sync.Discard(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s\tversion %d\n", id, s.Form.ServerVersion())
	return nil
}

func (cli *commandLine) transition(ctx context.Context, id string, fn func(*publication.Controller) (*domain.Course, error)) error {
	s, err := cli.session(ctx, id)
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := fn(s.Publication)
	if err != nil {
		var gerr *publication.GateError
		if errors.As(err, &gerr) {
			for field, code := range gerr.Fields {
				fmt.Fprintf(cli.out, "missing: %s: %s\n", field, code)
			}
		}
		return err
	}
	line := fmt.Sprintf("%s\t%s\tversion %d", c.ID, c.State(), c.Version)
	if c.ScheduledPublishAt != nil {
		line += "\tat " + c.ScheduledPublishAt.Format(time.RFC3339)
	}
	fmt.Fprintln(cli.out, line)
	return nil
}

func (cli *commandLine) watch(ctx context.Context, id string) error {
	err := cli.events.Watch(ctx, id, func(evt domain.PushEvent) {
		fmt.Fprintf(cli.out, "%s\t%s\tversion %d\n", evt.Type, evt.CourseID, evt.Version)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
