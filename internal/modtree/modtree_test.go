package modtree

import (
	"testing"

	"github.com/upplang/upp/internal/types"
)

func TestExitCodeStringsAreStable(t *testing.T) {
	cases := map[ExitCode]string{
		Success:                           "SUCCESS",
		InvalidSwitchCase:                 "INVALID_SWITCH_CASE",
		ExternFunctionCallNotImplemented:  "EXTERN_FUNCTION_CALL_NOT_IMPLEMENTED",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("ExitCode(%d).String() = %q, want %q", code, got, want)
		}
	}
}

func TestHardcodedNamesClosedSet(t *testing.T) {
	if len(HardcodedNames) != 25 {
		t.Fatalf("expected 25 hardcoded names, got %d", len(HardcodedNames))
	}
}

func TestBuildHardcodedSignaturesCoversEveryName(t *testing.T) {
	s := types.New()
	sigs := BuildHardcodedSignatures(s)
	for _, name := range HardcodedNames {
		if _, ok := sigs[name]; !ok {
			t.Errorf("missing fabricated signature for hardcoded function %q", name)
		}
	}
}

func TestIsFullyRunnableRequiresMainAndAllFunctionsRunnable(t *testing.T) {
	p := &Program{}
	if p.IsFullyRunnable() {
		t.Fatal("expected false with no main")
	}
	p.Main = &Function{IsRunnable: true}
	p.Functions = []*Function{p.Main, {IsRunnable: false}}
	if p.IsFullyRunnable() {
		t.Fatal("expected false when some function is not runnable")
	}
	p.Functions = []*Function{p.Main}
	if !p.IsFullyRunnable() {
		t.Fatal("expected true when main is set and all functions runnable")
	}
}
