package wire

import (
	"fmt"

	"fortio.org/safecast"
	"google.golang.org/protobuf/encoding/protowire"

	"symtrace/internal/schema"
)

// field is one decoded key/value pair. Only varint and length-delimited values
// are surfaced; the protocol uses no other wire types.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	bytes  []byte
	varint uint64
	pos    int // absolute offset of the value (of the content for bytes)
}

// walk iterates the fields of the message b, which starts at absolute offset base.
func walk(b []byte, base int, visit func(f field) error) error {
	for off := 0; off < len(b); {
		num, typ, n := protowire.ConsumeTag(b[off:])
		if n < 0 {
			return errorf(base+off, "malformed tag: %v", protowire.ParseError(n))
		}
		off += n
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b[off:])
			if m < 0 {
				return errorf(base+off, "field %d: %v", num, protowire.ParseError(m))
			}
			f.bytes = v
			f.pos = base + off + m - len(v)
			off += m
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b[off:])
			if m < 0 {
				return errorf(base+off, "field %d: %v", num, protowire.ParseError(m))
			}
			f.varint = v
			f.pos = base + off
			off += m
		default:
			m := protowire.ConsumeFieldValue(num, typ, b[off:])
			if m < 0 {
				return errorf(base+off, "field %d: %v", num, protowire.ParseError(m))
			}
			off += m
			continue
		}
		if err := visit(f); err != nil {
			return at(f.pos, err)
		}
	}
	return nil
}

func (f field) want(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("field %d: unexpected wire type %d", f.num, f.typ)
	}
	return nil
}

// UnmarshalEvent decodes a TraceEvent message that starts at absolute offset base.
func UnmarshalEvent(msg []byte, base int) (schema.Event, error) {
	var (
		ev       schema.Event
		variants int
	)
	err := walk(msg, base, func(f field) error {
		if f.num >= firstExtensionField {
			return nil
		}
		if err := f.want(protowire.BytesType); err != nil {
			return err
		}
		switch f.num {
		case fieldEventPathID:
			id, err := decodePathID(f)
			ev.PathID = id
			return err
		case fieldEventLocation:
			loc, err := decodeLoc(f)
			ev.Location = loc
			return err
		case fieldMemoryEvent:
			return fmt.Errorf("unsupported event kind: memory_event (tag %d)", f.num)
		}
		p, err := decodePayload(f)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("unrecognized event kind tag %d", f.num)
		}
		variants++
		if variants > 1 {
			return fmt.Errorf("multiple event kinds in one event (second is %s)", p.Kind())
		}
		ev.Payload = p
		return nil
	})
	if err != nil {
		return schema.Event{}, err
	}
	if err := checkRequired(ev.Payload); err != nil {
		return schema.Event{}, at(base, err)
	}
	return ev, nil
}

// decodePayload returns nil, nil for an unknown variant tag.
func decodePayload(f field) (schema.Payload, error) {
	switch f.num {
	case fieldPathSplit:
		p := &schema.PathSplit{}
		return p, walk(f.bytes, f.pos, func(f field) error {
			var err error
			switch f.num {
			case 1:
				p.SplitCondition, err = decodeExprID(f)
			case 2:
				p.ContinuingPathID, err = decodePathID(f)
			}
			return err
		})
	case fieldPathMerge:
		p := &schema.PathMerge{}
		return p, walk(f.bytes, f.pos, func(f field) error {
			var err error
			switch f.num {
			case 1:
				p.MergingPathID, err = decodePathID(f)
			case 2:
				var cond schema.ExpressionID
				cond, err = decodeExprID(f)
				p.MergeCondition = &cond
			case 3:
				p.PathAssumptions, err = decodeAssumptions(f)
			case 4:
				p.OtherAssumptions, err = decodeAssumptions(f)
			case 5:
				p.PathIDAfter, err = decodePathID(f)
			}
			return err
		})
	case fieldBranchSwitch:
		p := &schema.BranchSwitch{}
		return p, walk(f.bytes, f.pos, func(f field) error {
			var err error
			switch f.num {
			case 1:
				p.IDSuspended, err = decodePathID(f)
			case 2:
				p.IDResumed, err = decodePathID(f)
			case 3:
				p.BranchCondition, err = decodeExprID(f)
			case 4:
				p.BranchLocation, err = decodeLoc(f)
			case 5:
				p.SuspendedAssumptions, err = decodeAssumptions(f)
			}
			return err
		})
	case fieldBranchAbort:
		p := &schema.BranchAbort{}
		return p, walk(f.bytes, f.pos, func(f field) error {
			var err error
			switch f.num {
			case 1:
				p.AbortResult, err = decodeAbortedResult(f)
			case 2:
				p.AbortedAssumptions, err = decodeAssumptions(f)
			}
			return err
		})
	case fieldAssume:
		p := &schema.Assume{}
		return p, walk(f.bytes, f.pos, func(f field) error {
			var err error
			switch f.num {
			case 1:
				p.Predicate, err = decodeExprID(f)
			case 2:
				p.NewPathID, err = decodePathID(f)
			}
			return err
		})
	case fieldCheck:
		p := &schema.Check{}
		return p, walk(f.bytes, f.pos, func(f field) error {
			var err error
			switch f.num {
			case 1:
				p.Predicate, err = decodeExprID(f)
			case 2:
				p.NewPathID, err = decodePathID(f)
			}
			return err
		})
	case fieldReturnFromFunction:
		p := &schema.ReturnFromFunction{}
		return p, walk(f.bytes, f.pos, func(f field) error {
			var err error
			if f.num == 1 {
				p.FuncName, err = decodeString(f)
			}
			return err
		})
	case fieldCallFunction:
		p := &schema.CallFunction{}
		return p, walk(f.bytes, f.pos, func(f field) error {
			switch f.num {
			case 1:
				var err error
				p.FuncName, err = decodeString(f)
				return err
			case 2:
				if err := f.want(protowire.VarintType); err != nil {
					return err
				}
				p.IsTailCall = protowire.DecodeBool(f.varint)
			}
			return nil
		})
	case fieldNewSymbolicVariable:
		p := &schema.NewSymbolicVariable{}
		return p, walk(f.bytes, f.pos, func(f field) error {
			var err error
			switch f.num {
			case 1:
				p.Name, err = decodeString(f)
			case 2:
				p.Expression, err = decodeTypedExpr(f)
			}
			return err
		})
	case fieldAssertion:
		p := &schema.Assertion{}
		return p, walk(f.bytes, f.pos, func(f field) error {
			var err error
			switch f.num {
			case 1:
				p.Predicate, err = decodeExprID(f)
			case 2:
				p.Message, err = decodeString(f)
			}
			return err
		})
	case fieldSolverPushFrame:
		p := &schema.SolverPushFrame{}
		return p, walk(f.bytes, f.pos, func(field) error { return nil })
	case fieldSolverPopFrame:
		p := &schema.SolverPopFrame{}
		return p, walk(f.bytes, f.pos, func(f field) error {
			var err error
			if f.num == 1 {
				p.PathIDAfter, err = decodePathID(f)
			}
			return err
		})
	}
	return nil, nil
}

func decodeString(f field) (string, error) {
	if err := f.want(protowire.BytesType); err != nil {
		return "", err
	}
	return string(f.bytes), nil
}

// decodeTextMessage reads a message whose only known field is text=1.
func decodeTextMessage(f field) (string, error) {
	if err := f.want(protowire.BytesType); err != nil {
		return "", err
	}
	var text string
	err := walk(f.bytes, f.pos, func(f field) error {
		if f.num != 1 {
			return nil
		}
		var err error
		text, err = decodeString(f)
		return err
	})
	return text, err
}

func decodePathID(f field) (schema.PathID, error) {
	s, err := decodeTextMessage(f)
	return schema.PathID(s), err
}

func decodeExprID(f field) (schema.ExpressionID, error) {
	s, err := decodeTextMessage(f)
	return schema.ExpressionID(s), err
}

func decodeTypedExpr(f field) (schema.TypedExpression, error) {
	var te schema.TypedExpression
	if err := f.want(protowire.BytesType); err != nil {
		return te, err
	}
	err := walk(f.bytes, f.pos, func(f field) error {
		var err error
		switch f.num {
		case 1:
			te.ID, err = decodeExprID(f)
		case 2:
			te.Type, err = decodeString(f)
		}
		return err
	})
	return te, err
}

func decodeAssumptions(f field) (schema.Assumptions, error) {
	if err := f.want(protowire.BytesType); err != nil {
		return schema.Assumptions{}, err
	}
	var ids []schema.ExpressionID
	err := walk(f.bytes, f.pos, func(f field) error {
		if f.num != 1 {
			return nil
		}
		id, err := decodeExprID(f)
		ids = append(ids, id)
		return err
	})
	return schema.NewAssumptions(ids...), err
}

func decodeLoc(f field) (*schema.ProgramLoc, error) {
	if err := f.want(protowire.BytesType); err != nil {
		return nil, err
	}
	loc := &schema.ProgramLoc{}
	err := walk(f.bytes, f.pos, func(f field) error {
		var err error
		switch f.num {
		case 1:
			loc.Function, err = decodeString(f)
		case 2:
			loc.File, err = decodeString(f)
		case 3:
			loc.Line, err = decodeUint32(f)
		case 4:
			loc.Col, err = decodeUint32(f)
		}
		return err
	})
	return loc, err
}

func decodeUint32(f field) (uint32, error) {
	if err := f.want(protowire.VarintType); err != nil {
		return 0, err
	}
	v, err := safecast.Conv[uint32](f.varint)
	if err != nil {
		return 0, fmt.Errorf("field %d: %w", f.num, err)
	}
	return v, nil
}

func decodeAbortedResult(f field) (schema.AbortedResult, error) {
	var r schema.AbortedResult
	if err := f.want(protowire.BytesType); err != nil {
		return r, err
	}
	err := walk(f.bytes, f.pos, func(f field) error {
		switch f.num {
		case 1:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			r.Code = protowire.DecodeZigZag(f.varint)
		case 2:
			var err error
			r.Message, err = decodeString(f)
			return err
		}
		return nil
	})
	return r, err
}
