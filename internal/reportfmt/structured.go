package reportfmt

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"symtrace/internal/schema"
	"symtrace/internal/validate"
)

// ViolationDoc is one violation in structured output.
type ViolationDoc struct {
	Index  int    `json:"index" yaml:"index"`
	Kind   string `json:"kind" yaml:"kind"`
	Event  string `json:"event" yaml:"event"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// OpenPathDoc is one path left live at the end of a trace.
type OpenPathDoc struct {
	ID          string   `json:"id" yaml:"id"`
	Parent      string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Born        int      `json:"born" yaml:"born"`
	Suspended   bool     `json:"suspended,omitempty" yaml:"suspended,omitempty"`
	Assumptions []string `json:"assumptions,omitempty" yaml:"assumptions,omitempty"`
}

// DecodeDoc describes the decode failure that ended a replay.
type DecodeDoc struct {
	Offset    int    `json:"offset" yaml:"offset"`
	Reason    string `json:"reason" yaml:"reason"`
	Truncated bool   `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// StatsDoc mirrors validate.Stats.
type StatsDoc struct {
	Events            map[string]int `json:"events" yaml:"events"`
	Rejected          int            `json:"rejected" yaml:"rejected"`
	PathsCreated      int            `json:"paths_created" yaml:"paths_created"`
	MaxFrameDepth     int            `json:"max_frame_depth" yaml:"max_frame_depth"`
	FinalFrameDepth   int            `json:"final_frame_depth" yaml:"final_frame_depth"`
	MaxCallDepth      int            `json:"max_call_depth" yaml:"max_call_depth"`
	SymbolicVariables int            `json:"symbolic_variables" yaml:"symbolic_variables"`
}

// FileDoc is the structured form of one validation report.
type FileDoc struct {
	File       string         `json:"file" yaml:"file"`
	Form       string         `json:"form" yaml:"form"`
	Root       string         `json:"root" yaml:"root"`
	Producer   string         `json:"producer,omitempty" yaml:"producer,omitempty"`
	Passed     bool           `json:"passed" yaml:"passed"`
	Events     int            `json:"events" yaml:"events"`
	Violations []ViolationDoc `json:"violations" yaml:"violations"`
	Truncated  bool           `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	Stopped    bool           `json:"stopped,omitempty" yaml:"stopped,omitempty"`
	OpenPaths  []OpenPathDoc  `json:"open_paths,omitempty" yaml:"open_paths,omitempty"`
	Decode     *DecodeDoc     `json:"decode_error,omitempty" yaml:"decode_error,omitempty"`
	Stats      *StatsDoc      `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// Output is the root of structured output.
type Output struct {
	Files  []FileDoc `json:"files" yaml:"files"`
	Count  int       `json:"count" yaml:"count"`
	Failed int       `json:"failed" yaml:"failed"`
}

// BuildOutput converts reports into the structured document without serializing.
func BuildOutput(reports []*validate.Report, opts StructuredOpts) Output {
	out := Output{Files: make([]FileDoc, 0, len(reports))}
	for _, r := range reports {
		if r == nil {
			continue
		}
		doc := buildFile(r, opts)
		if !doc.Passed {
			out.Failed++
		}
		out.Files = append(out.Files, doc)
	}
	out.Count = len(out.Files)
	return out
}

func buildFile(r *validate.Report, opts StructuredOpts) FileDoc {
	doc := FileDoc{
		File:       formatPath(r.File, opts.PathMode, opts.BaseDir),
		Form:       r.Form.String(),
		Root:       string(r.Root),
		Producer:   r.Producer,
		Passed:     r.Passed(),
		Events:     r.Events,
		Violations: make([]ViolationDoc, 0, len(r.Violations)),
		Truncated:  r.Truncated,
		Stopped:    r.Stopped,
	}
	for i, v := range r.Violations {
		if opts.Max > 0 && i >= opts.Max {
			doc.Truncated = true
			break
		}
		doc.Violations = append(doc.Violations, ViolationDoc{
			Index:  v.Position,
			Kind:   v.Kind.String(),
			Event:  v.Event.String(),
			Path:   string(v.Path),
			Detail: v.Detail,
		})
	}
	for _, p := range r.OpenPaths {
		doc.OpenPaths = append(doc.OpenPaths, OpenPathDoc{
			ID:          string(p.ID),
			Parent:      string(p.Parent),
			Born:        p.Born,
			Suspended:   p.Suspended,
			Assumptions: exprStrings(p.Assumptions),
		})
	}
	if r.Decode != nil {
		doc.Decode = &DecodeDoc{Offset: r.Decode.Offset, Reason: r.Decode.Reason, Truncated: r.Decode.Truncated}
	}
	if opts.IncludeStats {
		s := r.Stats
		doc.Stats = &StatsDoc{
			Events:            s.Events,
			Rejected:          s.Rejected,
			PathsCreated:      s.PathsCreated,
			MaxFrameDepth:     s.MaxFrameDepth,
			FinalFrameDepth:   s.FinalFrameDepth,
			MaxCallDepth:      s.MaxCallDepth,
			SymbolicVariables: s.SymbolicVariables,
		}
	}
	return doc
}

func exprStrings(ids []schema.ExpressionID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// JSON writes reports as indented JSON.
func JSON(w io.Writer, reports []*validate.Report, opts StructuredOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildOutput(reports, opts))
}

// YAML writes reports as a YAML document.
func YAML(w io.Writer, reports []*validate.Report, opts StructuredOpts) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(BuildOutput(reports, opts)); err != nil {
		return err
	}
	return enc.Close()
}
