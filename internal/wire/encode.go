package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"symtrace/internal/schema"
)

// EncodeEvent returns the TraceEvent message bytes for ev (without a frame prefix).
func EncodeEvent(ev schema.Event) ([]byte, error) {
	return appendEvent(nil, ev)
}

// AppendFrame appends ev to b as a length-prefixed frame.
func AppendFrame(b []byte, ev schema.Event) ([]byte, error) {
	msg, err := appendEvent(nil, ev)
	if err != nil {
		return b, err
	}
	return protowire.AppendBytes(b, msg), nil
}

func appendEvent(b []byte, ev schema.Event) ([]byte, error) {
	if err := checkRequired(ev.Payload); err != nil {
		return b, err
	}
	if !ev.PathID.IsZero() {
		b = appendPathID(b, fieldEventPathID, ev.PathID)
	}
	if ev.Location != nil {
		b = appendLoc(b, fieldEventLocation, ev.Location)
	}

	switch p := ev.Payload.(type) {
	case *schema.PathSplit:
		b = appendMessage(b, fieldPathSplit, func(b []byte) []byte {
			b = appendExprID(b, 1, p.SplitCondition)
			return appendPathID(b, 2, p.ContinuingPathID)
		})
	case *schema.PathMerge:
		b = appendMessage(b, fieldPathMerge, func(b []byte) []byte {
			b = appendPathID(b, 1, p.MergingPathID)
			if p.MergeCondition != nil {
				b = appendMessage(b, 2, func(b []byte) []byte {
					return appendString(b, 1, string(*p.MergeCondition))
				})
			}
			b = appendAssumptions(b, 3, p.PathAssumptions)
			b = appendAssumptions(b, 4, p.OtherAssumptions)
			return appendPathID(b, 5, p.PathIDAfter)
		})
	case *schema.BranchSwitch:
		b = appendMessage(b, fieldBranchSwitch, func(b []byte) []byte {
			b = appendPathID(b, 1, p.IDSuspended)
			b = appendPathID(b, 2, p.IDResumed)
			b = appendExprID(b, 3, p.BranchCondition)
			if p.BranchLocation != nil {
				b = appendLoc(b, 4, p.BranchLocation)
			}
			return appendAssumptions(b, 5, p.SuspendedAssumptions)
		})
	case *schema.BranchAbort:
		b = appendMessage(b, fieldBranchAbort, func(b []byte) []byte {
			if p.AbortResult != (schema.AbortedResult{}) {
				b = appendMessage(b, 1, func(b []byte) []byte {
					if p.AbortResult.Code != 0 {
						b = protowire.AppendTag(b, 1, protowire.VarintType)
						b = protowire.AppendVarint(b, protowire.EncodeZigZag(p.AbortResult.Code))
					}
					return appendString(b, 2, p.AbortResult.Message)
				})
			}
			return appendAssumptions(b, 2, p.AbortedAssumptions)
		})
	case *schema.Assume:
		b = appendMessage(b, fieldAssume, func(b []byte) []byte {
			b = appendExprID(b, 1, p.Predicate)
			return appendPathID(b, 2, p.NewPathID)
		})
	case *schema.Check:
		b = appendMessage(b, fieldCheck, func(b []byte) []byte {
			b = appendExprID(b, 1, p.Predicate)
			return appendPathID(b, 2, p.NewPathID)
		})
	case *schema.ReturnFromFunction:
		b = appendMessage(b, fieldReturnFromFunction, func(b []byte) []byte {
			return appendString(b, 1, p.FuncName)
		})
	case *schema.CallFunction:
		b = appendMessage(b, fieldCallFunction, func(b []byte) []byte {
			b = appendString(b, 1, p.FuncName)
			if p.IsTailCall {
				b = protowire.AppendTag(b, 2, protowire.VarintType)
				b = protowire.AppendVarint(b, protowire.EncodeBool(true))
			}
			return b
		})
	case *schema.NewSymbolicVariable:
		b = appendMessage(b, fieldNewSymbolicVariable, func(b []byte) []byte {
			b = appendString(b, 1, p.Name)
			return appendMessage(b, 2, func(b []byte) []byte {
				b = appendExprID(b, 1, p.Expression.ID)
				return appendString(b, 2, p.Expression.Type)
			})
		})
	case *schema.Assertion:
		b = appendMessage(b, fieldAssertion, func(b []byte) []byte {
			b = appendExprID(b, 1, p.Predicate)
			return appendString(b, 2, p.Message)
		})
	case *schema.SolverPushFrame:
		b = appendMessage(b, fieldSolverPushFrame, func(b []byte) []byte { return b })
	case *schema.SolverPopFrame:
		b = appendMessage(b, fieldSolverPopFrame, func(b []byte) []byte {
			return appendPathID(b, 1, p.PathIDAfter)
		})
	default:
		return b, fmt.Errorf("encode: unsupported payload %T", ev.Payload)
	}
	return b, nil
}

// appendMessage writes a nested message field; body appends the message content.
func appendMessage(b []byte, num protowire.Number, body func([]byte) []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body(nil))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendPathID(b []byte, num protowire.Number, id schema.PathID) []byte {
	if id.IsZero() {
		return b
	}
	return appendMessage(b, num, func(b []byte) []byte {
		return appendString(b, 1, string(id))
	})
}

func appendExprID(b []byte, num protowire.Number, id schema.ExpressionID) []byte {
	if id.IsZero() {
		return b
	}
	return appendMessage(b, num, func(b []byte) []byte {
		return appendString(b, 1, string(id))
	})
}

func appendAssumptions(b []byte, num protowire.Number, a schema.Assumptions) []byte {
	if a.IsEmpty() {
		return b
	}
	return appendMessage(b, num, func(b []byte) []byte {
		for _, id := range a.Items() {
			b = appendMessage(b, 1, func(b []byte) []byte {
				return appendString(b, 1, string(id))
			})
		}
		return b
	})
}

func appendLoc(b []byte, num protowire.Number, loc *schema.ProgramLoc) []byte {
	return appendMessage(b, num, func(b []byte) []byte {
		b = appendString(b, 1, loc.Function)
		b = appendString(b, 2, loc.File)
		if loc.Line != 0 {
			b = protowire.AppendTag(b, 3, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(loc.Line))
		}
		if loc.Col != 0 {
			b = protowire.AppendTag(b, 4, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(loc.Col))
		}
		return b
	})
}

// checkRequired enforces the per-variant required field set. Encoding and
// decoding share it so that every encodable event decodes.
func checkRequired(p schema.Payload) error {
	missing := func(kind schema.Kind, field string) error {
		return fmt.Errorf("%s: missing required field %s", kind, field)
	}
	switch v := p.(type) {
	case nil:
		return fmt.Errorf("missing event kind")
	case *schema.PathSplit:
		if v == nil || v.ContinuingPathID.IsZero() {
			return missing(schema.KindPathSplit, "continuing_path_id")
		}
	case *schema.PathMerge:
		if v == nil || v.MergingPathID.IsZero() {
			return missing(schema.KindPathMerge, "merging_path_id")
		}
	case *schema.BranchSwitch:
		if v == nil || v.IDSuspended.IsZero() {
			return missing(schema.KindBranchSwitch, "id_suspended")
		}
		if v.IDResumed.IsZero() {
			return missing(schema.KindBranchSwitch, "id_resumed")
		}
	case *schema.SolverPopFrame:
		if v == nil || v.PathIDAfter.IsZero() {
			return missing(schema.KindSolverPopFrame, "path_id_after")
		}
	case *schema.Assume:
		if v == nil || v.Predicate.IsZero() {
			return missing(schema.KindAssume, "predicate")
		}
		if v.NewPathID.IsZero() {
			return missing(schema.KindAssume, "new_path_id")
		}
	case *schema.Check:
		if v == nil || v.Predicate.IsZero() {
			return missing(schema.KindCheck, "predicate")
		}
		if v.NewPathID.IsZero() {
			return missing(schema.KindCheck, "new_path_id")
		}
	case *schema.Assertion:
		if v == nil || v.Predicate.IsZero() {
			return missing(schema.KindAssertion, "predicate")
		}
	case *schema.NewSymbolicVariable:
		if v == nil || v.Expression.ID.IsZero() {
			return missing(schema.KindNewSymbolicVariable, "expression")
		}
	case *schema.BranchAbort:
		if v == nil {
			return missing(schema.KindBranchAbort, "abort_result")
		}
	case *schema.ReturnFromFunction:
		if v == nil {
			return missing(schema.KindReturnFromFunction, "func_name")
		}
	case *schema.CallFunction:
		if v == nil {
			return missing(schema.KindCallFunction, "func_name")
		}
	case *schema.SolverPushFrame:
		if v == nil {
			return fmt.Errorf("%s: nil payload", schema.KindSolverPushFrame)
		}
	}
	return nil
}
