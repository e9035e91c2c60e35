package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kalambet/attune/internal/config"
	"github.com/kalambet/attune/internal/identity"
	"github.com/kalambet/attune/internal/syllabus"
)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// --- context ---

var contextCmd = &cobra.Command{
	Use:   "context [student]",
	Short: "Print the aggregated context for a student",
	Long: `Print the aggregated context for a student: courses, assignments due in
the window, recent grades, calendar events and the latest weekly email.

Examples:
  attune context
  attune context max --days 14`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		req := map[string]any{}
		if len(args) == 1 {
			req["student"] = args[0]
		}
		if days > 0 {
			req["days"] = days
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(commandContext(cmd), "/context", req)
		if err != nil {
			return err
		}
		var out any
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		return printJSON(os.Stdout, out)
	},
}

func init() {
	contextCmd.Flags().Int("days", 0, "look-ahead window in days (server default when 0)")
}

// --- resolve ---

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Fetch a Google Doc, Slides or Drive file and print its text",
	Long: `Fetch a hosted document and print its text. Runs locally; the server does
not need to be running. PDFs without a text layer go through OCR.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		ctx := commandContext(cmd)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.Log.Level)

		rec, closeRec, err := newRecognizer(ctx, cfg.OCR)
		if err != nil {
			return fmt.Errorf("initializing OCR: %w", err)
		}
		defer closeRec()

		resolver := newResolver(cfg, newExtractor(cfg.OCR, rec, logger), nil, logger)
		doc := resolver.Resolve(ctx, args[0])
		if asJSON {
			return printJSON(os.Stdout, doc)
		}
		if !doc.OK() {
			return fmt.Errorf("resolving %s: %s", args[0], doc.Error)
		}
		printStep("%s %s (%s)", doc.Kind, doc.FileID, valueOr(doc.Method, "export"))
		fmt.Println(doc.Content)
		return nil
	},
}

func init() {
	resolveCmd.Flags().Bool("json", false, "print the full result as JSON")
}

// --- syllabus ---

var syllabusCmd = &cobra.Command{
	Use:   "syllabus",
	Short: "Inspect the local syllabus library",
}

// loadLibrary opens the syllabus directory, picking up aliases from the
// identity registry when one is readable.
func loadLibrary() (*syllabus.Library, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	var aliases []syllabus.Alias
	if reg, err := identity.LoadRegistry(cfg.Storage.RegistryPath); err == nil {
		aliases = reg.SyllabusAliases
	} else {
		slog.Debug("registry unavailable, using default syllabus aliases", "error", err)
	}
	return newLibrary(cfg, aliases), nil
}

var syllabusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available syllabi",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := loadLibrary()
		if err != nil {
			return err
		}
		all, err := lib.List()
		if err != nil {
			return err
		}
		if len(all) == 0 {
			printWarning("no syllabi found")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SLUG\tCOURSE\tTEACHER\tWEIGHTS")
		for _, s := range all {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.Slug, s.Course, valueOr(s.Teacher, "-"), len(s.GradeWeights))
		}
		return tw.Flush()
	},
}

var syllabusShowCmd = &cobra.Command{
	Use:   "show <course>",
	Short: "Show one syllabus by slug or course name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := loadLibrary()
		if err != nil {
			return err
		}
		s, err := lib.Get(args[0])
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetBool("raw")
		if raw {
			fmt.Println(s.Source)
			return nil
		}
		s.Source = ""
		return printJSON(os.Stdout, s)
	},
}

var syllabusMatchCmd = &cobra.Command{
	Use:   "match <course name>",
	Short: "Find the syllabus for a Canvas course name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := loadLibrary()
		if err != nil {
			return err
		}
		name := strings.Join(args, " ")
		s, ok, err := lib.Match(name)
		if err != nil {
			return err
		}
		if !ok {
			printWarning("no syllabus matches %q", name)
			return nil
		}
		printSuccess("%q matches %s (%s)", name, s.Slug, s.Course)
		return nil
	},
}

func init() {
	syllabusShowCmd.Flags().Bool("raw", false, "print the markdown source")
	syllabusCmd.AddCommand(syllabusListCmd)
	syllabusCmd.AddCommand(syllabusShowCmd)
	syllabusCmd.AddCommand(syllabusMatchCmd)
}

// --- reflections ---

var reflectionsCmd = &cobra.Command{
	Use:   "reflections",
	Short: "Read and append the shared reflection journal",
}

type reflectionRecord struct {
	Who     string   `json:"who"`
	Text    string   `json:"text"`
	Threads []string `json:"threads"`
	SavedAt string   `json:"savedAt"`
}

var reflectionsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent reflections",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("n")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(commandContext(cmd), "/reflections/recent", map[string]any{"n": n})
		if err != nil {
			return err
		}
		var out struct {
			Count       int                `json:"count"`
			Reflections []reflectionRecord `json:"reflections"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, out)
		}
		if out.Count == 0 {
			printWarning("no reflections yet")
			return nil
		}
		for _, r := range out.Reflections {
			header := fmt.Sprintf("%s  %s", r.SavedAt, r.Who)
			if len(r.Threads) > 0 {
				header += "  [" + strings.Join(r.Threads, ", ") + "]"
			}
			fmt.Println(colorize(colorBold, header))
			fmt.Println(r.Text)
			fmt.Println()
		}
		return nil
	},
}

var reflectionsSaveCmd = &cobra.Command{
	Use:   "save <text>",
	Short: "Append a reflection",
	Long: `Append a reflection to the shared journal.

Examples:
  attune reflections save --who Jud "Max seemed calmer about Latin this week"
  attune reflections save --who Jules --thread latin --thread sleep "..."`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		who, _ := cmd.Flags().GetString("who")
		threads, _ := cmd.Flags().GetStringSlice("thread")
		if who == "" {
			return fmt.Errorf("--who is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(commandContext(cmd), "/reflections/save", map[string]any{
			"who":     who,
			"text":    strings.Join(args, " "),
			"threads": threads,
		})
		if err != nil {
			return err
		}
		var out struct {
			FileName   string `json:"fileName"`
			AppendedAt string `json:"appendedAt"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		printSuccess("Saved to %s at %s", out.FileName, out.AppendedAt)
		return nil
	},
}

var reflectionsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove duplicate reflections",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(commandContext(cmd), "/reflections/cleanup", nil)
		if err != nil {
			return err
		}
		var out struct {
			RemovedCount int `json:"removedCount"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		printSuccess("Removed %d duplicate reflection(s)", out.RemovedCount)
		return nil
	},
}

func init() {
	reflectionsRecentCmd.Flags().IntP("n", "n", 0, "number of reflections (server default when 0)")
	reflectionsRecentCmd.Flags().Bool("json", false, "print raw JSON")
	reflectionsSaveCmd.Flags().String("who", "", "author of the reflection")
	reflectionsSaveCmd.Flags().StringSlice("thread", nil, "thread tag (repeatable)")

	reflectionsCmd.AddCommand(reflectionsRecentCmd)
	reflectionsCmd.AddCommand(reflectionsSaveCmd)
	reflectionsCmd.AddCommand(reflectionsCleanupCmd)
}

// --- weekly-email ---

var weeklyEmailCmd = &cobra.Command{
	Use:   "weekly-email",
	Short: "Show stored weekly school emails",
}

type weeklyEmail struct {
	Student    string `json:"student"`
	WeekOf     string `json:"weekOf"`
	Subject    string `json:"subject"`
	Content    string `json:"content"`
	ReceivedAt string `json:"receivedAt"`
	UpdatedAt  string `json:"updatedAt"`
}

func weeklyEmailQuery(args []string, extra url.Values) string {
	q := url.Values{}
	if len(args) == 1 {
		q.Set("student", args[0])
	}
	for k, vs := range extra {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

var weeklyEmailShowCmd = &cobra.Command{
	Use:   "show [student]",
	Short: "Show the latest weekly email, or the one for --week",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		week, _ := cmd.Flags().GetString("week")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := "/weekly-email" + weeklyEmailQuery(args, url.Values{"weekOf": {week}})
		resp, err := client.get(commandContext(cmd), path)
		if err != nil {
			return err
		}
		var e weeklyEmail
		if err := decodeJSON(resp, &e); err != nil {
			return err
		}
		printStatus("Week of", "%s", e.WeekOf)
		printStatus("Subject", "%s", e.Subject)
		if e.ReceivedAt != "" {
			printStatus("Received", "%s", e.ReceivedAt)
		}
		fmt.Println(e.Content)
		return nil
	},
}

var weeklyEmailHistoryCmd = &cobra.Command{
	Use:   "history [student]",
	Short: "List recent weekly emails, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		extra := url.Values{}
		if limit > 0 {
			extra.Set("limit", strconv.Itoa(limit))
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(commandContext(cmd), "/weekly-email/history"+weeklyEmailQuery(args, extra))
		if err != nil {
			return err
		}
		var out struct {
			Student string        `json:"student"`
			Emails  []weeklyEmail `json:"emails"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		if len(out.Emails) == 0 {
			printWarning("no weekly emails stored for %s", out.Student)
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WEEK OF\tSUBJECT")
		for _, e := range out.Emails {
			fmt.Fprintf(tw, "%s\t%s\n", e.WeekOf, e.Subject)
		}
		return tw.Flush()
	},
}

func init() {
	weeklyEmailShowCmd.Flags().String("week", "", "week to show (YYYY-MM-DD)")
	weeklyEmailHistoryCmd.Flags().Int("limit", 0, "number of emails (server default when 0)")

	weeklyEmailCmd.AddCommand(weeklyEmailShowCmd)
	weeklyEmailCmd.AddCommand(weeklyEmailHistoryCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		printStatus("Config file", "%s", config.ConfigFilePath())
		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so the default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
