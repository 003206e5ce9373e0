package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"symtrace/internal/schema"
	"symtrace/internal/wire"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] <file|->",
	Short: "Print the events of a trace log",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().String("format", "text", "output format (text|json)")
	dumpCmd.Flags().String("kind", "", "comma-separated event kinds to print (default: all)")
}

type eventDoc struct {
	Index    int               `json:"index"`
	Kind     string            `json:"kind"`
	Path     string            `json:"path_id,omitempty"`
	Location string            `json:"location,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

type dumpDoc struct {
	Form            string     `json:"form"`
	Root            string     `json:"root_path_id"`
	RootAssumptions []string   `json:"root_assumptions,omitempty"`
	Events          []eventDoc `json:"events"`
	Error           string     `json:"error,omitempty"`
}

func runDump(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	kindsStr, err := cmd.Flags().GetString("kind")
	if err != nil {
		return fmt.Errorf("failed to get kind flag: %w", err)
	}
	kinds, err := parseKinds(kindsStr)
	if err != nil {
		return err
	}

	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	form := wire.Sniff(data)
	tr, decodeErr := wire.Decode(data)
	if tr == nil {
		return decodeErr
	}

	doc := dumpDoc{Form: form.String(), Root: string(tr.Root())}
	for _, a := range tr.RootAssumptions.Items() {
		doc.RootAssumptions = append(doc.RootAssumptions, string(a))
	}
	for i, ev := range tr.Events {
		if kinds != nil && !kinds[ev.Kind()] {
			continue
		}
		doc.Events = append(doc.Events, describeEvent(i, ev))
	}
	if decodeErr != nil {
		doc.Error = decodeErr.Error()
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
	case "text":
		printDumpText(cmd.OutOrStdout(), doc)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	return decodeErr
}

func parseKinds(s string) (map[schema.Kind]bool, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	out := make(map[schema.Kind]bool)
	for _, name := range strings.Split(s, ",") {
		k, err := schema.ParseKind(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out[k] = true
	}
	return out, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func describeEvent(i int, ev schema.Event) eventDoc {
	doc := eventDoc{Index: i, Kind: ev.Kind().String(), Path: string(ev.PathID)}
	if ev.Location != nil {
		doc.Location = ev.Location.String()
	}
	f := make(map[string]string)
	set := func(k, v string) {
		if v != "" {
			f[k] = v
		}
	}
	switch p := ev.Payload.(type) {
	case *schema.Assertion:
		set("predicate", string(p.Predicate))
		set("message", p.Message)
	case *schema.PathSplit:
		set("split_condition", string(p.SplitCondition))
		set("continuing_path_id", string(p.ContinuingPathID))
	case *schema.PathMerge:
		set("merging_path_id", string(p.MergingPathID))
		if p.MergeCondition != nil {
			set("merge_condition", string(*p.MergeCondition))
		}
		set("path_assumptions", assumptionsText(p.PathAssumptions))
		set("other_assumptions", assumptionsText(p.OtherAssumptions))
		set("path_id_after", string(p.PathIDAfter))
	case *schema.BranchSwitch:
		set("id_suspended", string(p.IDSuspended))
		set("id_resumed", string(p.IDResumed))
		set("branch_condition", string(p.BranchCondition))
		if p.BranchLocation != nil {
			set("branch_location", p.BranchLocation.String())
		}
		set("suspended_assumptions", assumptionsText(p.SuspendedAssumptions))
	case *schema.BranchAbort:
		set("abort_code", strconv.FormatInt(p.AbortResult.Code, 10))
		set("abort_message", p.AbortResult.Message)
		set("aborted_assumptions", assumptionsText(p.AbortedAssumptions))
	case *schema.ReturnFromFunction:
		set("func_name", p.FuncName)
	case *schema.CallFunction:
		set("func_name", p.FuncName)
		if p.IsTailCall {
			set("is_tail_call", "true")
		}
	case *schema.SolverPopFrame:
		set("path_id_after", string(p.PathIDAfter))
	case *schema.Assume:
		set("predicate", string(p.Predicate))
		set("new_path_id", string(p.NewPathID))
	case *schema.Check:
		set("predicate", string(p.Predicate))
		set("new_path_id", string(p.NewPathID))
	case *schema.NewSymbolicVariable:
		set("name", p.Name)
		set("expression", string(p.Expression.ID))
		set("type", p.Expression.Type)
	}
	if len(f) > 0 {
		doc.Fields = f
	}
	return doc
}

func assumptionsText(a schema.Assumptions) string {
	if a.IsEmpty() {
		return ""
	}
	return a.String()
}

var fieldOrder = []string{
	"continuing_path_id", "new_path_id", "merging_path_id", "path_id_after",
	"id_suspended", "id_resumed", "split_condition", "merge_condition", "branch_condition",
	"predicate", "message", "func_name", "is_tail_call", "name", "expression", "type",
	"abort_code", "abort_message", "path_assumptions", "other_assumptions",
	"suspended_assumptions", "aborted_assumptions", "branch_location",
}

func printDumpText(out io.Writer, doc dumpDoc) {
	dim := color.New(color.Faint)
	kindColor := color.New(color.FgCyan)
	fmt.Fprintf(out, "%s %s  root %s", dim.Sprint("form"), doc.Form, doc.Root)
	if len(doc.RootAssumptions) > 0 {
		fmt.Fprintf(out, " {%s}", strings.Join(doc.RootAssumptions, ", "))
	}
	fmt.Fprintf(out, "  %d event(s)\n", len(doc.Events))

	kindWidth, pathWidth := 0, 0
	for _, ev := range doc.Events {
		kindWidth = max(kindWidth, runewidth.StringWidth(ev.Kind))
		pathWidth = max(pathWidth, runewidth.StringWidth(ev.Path))
	}
	indexWidth := len(strconv.Itoa(len(doc.Events)))
	for _, ev := range doc.Events {
		var b strings.Builder
		fmt.Fprintf(&b, "%*d  %s  %s", indexWidth, ev.Index,
			kindColor.Sprint(runewidth.FillRight(ev.Kind, kindWidth)),
			runewidth.FillRight(ev.Path, pathWidth))
		for _, k := range fieldOrder {
			if v, ok := ev.Fields[k]; ok {
				fmt.Fprintf(&b, "  %s=%s", k, v)
			}
		}
		if ev.Location != "" {
			b.WriteString("  " + dim.Sprint("@ "+ev.Location))
		}
		fmt.Fprintln(out, b.String())
	}
	if doc.Error != "" {
		fmt.Fprintf(out, "%s %s\n", color.New(color.FgRed, color.Bold).Sprint("decode error:"), doc.Error)
	}
}
