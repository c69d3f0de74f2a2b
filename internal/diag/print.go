package diag

import (
	"fmt"
	"strings"

	"github.com/upplang/upp/internal/types"
)

// FormatType pretty-prints a Datatype for use in error messages (§7:
// "rendered ... using the token-range -> text-range mapping", but the
// type/value text itself is produced here).
func FormatType(t *types.Datatype) string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case types.KindUnknown:
		return "unknown"
	case types.KindInvalid:
		return "invalid"
	case types.KindPrimitive:
		return formatPrimitive(t)
	case types.KindPointer:
		if t.Optional {
			return "*?" + FormatType(t.Element)
		}
		return "*" + FormatType(t.Element)
	case types.KindOptional:
		return "?" + FormatType(t.OptionalChild)
	case types.KindArray:
		if !t.ArrayCountKnown {
			return "[]" + FormatType(t.ArrayElement)
		}
		return fmt.Sprintf("[%d]%s", t.ArrayElementCont, FormatType(t.ArrayElement))
	case types.KindSlice:
		return "[..]" + FormatType(t.SliceElement)
	case types.KindConstant:
		return "const " + FormatType(t.ConstantElement)
	case types.KindFunctionPointer:
		var params []string
		if t.Signature != nil {
			for _, p := range t.Signature.Parameters {
				params = append(params, FormatType(p))
			}
		}
		ret := "void"
		if t.Signature != nil && t.Signature.ReturnType != nil {
			ret = FormatType(t.Signature.ReturnType)
		}
		prefix := "func"
		if t.Optional {
			prefix = "?func"
		}
		return fmt.Sprintf("%s(%s) -> %s", prefix, strings.Join(params, ", "), ret)
	case types.KindStruct:
		if t.StructName != nil {
			return t.StructName.String()
		}
		return "struct{}"
	case types.KindEnum:
		if t.EnumName != nil {
			return t.EnumName.String()
		}
		return "enum{}"
	case types.KindPatternVariable:
		if t.PatternVariableName != nil {
			return "$" + t.PatternVariableName.String()
		}
		return "$?"
	case types.KindStructPattern:
		return "pattern(" + FormatType(t.PatternInstance) + ")"
	default:
		return t.Kind.String()
	}
}

func formatPrimitive(t *types.Datatype) string {
	switch t.PrimClass {
	case types.ClassBool:
		return "bool"
	case types.ClassAddress:
		if t.PrimWidth == 0 {
			return "any"
		}
		return "address"
	case types.ClassTypeHandle:
		return "type_handle"
	case types.ClassFloat:
		if t.PrimWidth == 4 {
			return "f32"
		}
		return "f64"
	default: // ClassInt
		sign := "i"
		if !t.PrimSigned {
			sign = "u"
		}
		return fmt.Sprintf("%s%d", sign, t.PrimWidth*8)
	}
}
