package extract

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/fridayops/crossing/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func extractSource(t *testing.T, src string) *models.FileFacts {
	t.Helper()
	e := NewExtractor(testLogger(), true)
	facts, err := e.ExtractFile(context.Background(), "app.py", "app", []byte(src))
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	return facts
}

func findFunction(t *testing.T, facts *models.FileFacts, qualified string) *models.FunctionNode {
	t.Helper()
	for _, fn := range facts.Functions {
		if fn.Qualified == qualified {
			return fn
		}
	}
	t.Fatalf("function %s not found in %+v", qualified, facts.Functions)
	return nil
}

func TestExplicitRaiseWithMessage(t *testing.T) {
	facts := extractSource(t, `def f():
    raise ValueError("bad input")
`)
	fn := findFunction(t, facts, "app.f")
	if len(fn.RaiseSites) != 1 {
		t.Fatalf("expected 1 raise site, got %+v", fn.RaiseSites)
	}
	r := fn.RaiseSites[0]
	if r.TypeName != "ValueError" || r.Origin != models.OriginExplicit {
		t.Errorf("unexpected site: %+v", r)
	}
	if r.Message != "bad input" {
		t.Errorf("message = %q, want %q", r.Message, "bad input")
	}
	if r.Location.Line != 2 {
		t.Errorf("line = %d, want 2", r.Location.Line)
	}
}

func TestFStringMessageExcluded(t *testing.T) {
	facts := extractSource(t, `def f(x):
    raise ValueError(f"bad {x}")
`)
	fn := findFunction(t, facts, "app.f")
	if len(fn.RaiseSites) != 1 {
		t.Fatalf("expected 1 raise site, got %+v", fn.RaiseSites)
	}
	if fn.RaiseSites[0].Message != "" {
		t.Errorf("f-string should carry no message template, got %q", fn.RaiseSites[0].Message)
	}
}

func TestBareRaiseIsNotASite(t *testing.T) {
	facts := extractSource(t, `def f():
    try:
        g()
    except ValueError:
        raise
`)
	fn := findFunction(t, facts, "app.f")
	if len(fn.RaiseSites) != 0 {
		t.Errorf("bare raise should not be a site, got %+v", fn.RaiseSites)
	}
	if len(fn.HandlerSites) != 1 || fn.HandlerSites[0].Disposition != models.DispositionReraise {
		t.Errorf("expected re-raise disposition, got %+v", fn.HandlerSites)
	}
}

func TestContextCapturesEnclosingCondition(t *testing.T) {
	facts := extractSource(t, `def validate(x):
    if x < 0:
        raise ValueError("negative")
    elif x > 100:
        raise ValueError("too large")
`)
	fn := findFunction(t, facts, "app.validate")
	if len(fn.RaiseSites) != 2 {
		t.Fatalf("expected 2 raise sites, got %+v", fn.RaiseSites)
	}
	if got := fn.RaiseSites[0].Context; got != "if x < 0" {
		t.Errorf("context = %q, want %q", got, "if x < 0")
	}
	if got := fn.RaiseSites[1].Context; got != "elif x > 100" {
		t.Errorf("context = %q, want %q", got, "elif x > 100")
	}
}

func TestContextPicksNearestControlFlow(t *testing.T) {
	facts := extractSource(t, `def process(items):
    for item in items:
        if not item:
            raise ValueError("empty item")
`)
	fn := findFunction(t, facts, "app.process")
	if len(fn.RaiseSites) != 1 {
		t.Fatalf("expected 1 raise site, got %+v", fn.RaiseSites)
	}
	// The if is closer than the for.
	if got := fn.RaiseSites[0].Context; got != "if not item" {
		t.Errorf("context = %q, want %q", got, "if not item")
	}
}

func TestContextFallsBackToFunctionName(t *testing.T) {
	facts := extractSource(t, `def boom():
    raise RuntimeError("oops")
`)
	fn := findFunction(t, facts, "app.boom")
	if len(fn.RaiseSites) != 1 {
		t.Fatalf("expected 1 raise site, got %+v", fn.RaiseSites)
	}
	if got := fn.RaiseSites[0].Context; got != "in boom" {
		t.Errorf("context = %q, want %q", got, "in boom")
	}
}

func TestImplicitKeyLookup(t *testing.T) {
	facts := extractSource(t, `def f(d, key):
    return d[key]
`)
	fn := findFunction(t, facts, "app.f")
	if len(fn.RaiseSites) != 1 {
		t.Fatalf("expected 1 implicit site, got %+v", fn.RaiseSites)
	}
	r := fn.RaiseSites[0]
	if r.TypeName != "KeyError" || r.Origin != models.OriginKeyLookup {
		t.Errorf("unexpected site: %+v", r)
	}
}

func TestSubscriptStoreIsNotASite(t *testing.T) {
	facts := extractSource(t, `def f(d, key, value):
    d[key] = value
    del d[key]
`)
	fn := findFunction(t, facts, "app.f")
	if len(fn.RaiseSites) != 0 {
		t.Errorf("store and delete contexts should not be sites, got %+v", fn.RaiseSites)
	}
}

func TestImplicitCallShapes(t *testing.T) {
	facts := extractSource(t, `def f(it, obj, s, items):
    a = next(it)
    b = next(it, None)
    c = getattr(obj, "name")
    d = getattr(obj, "name", None)
    e = int(s)
    g = float(s)
    h = items.index(s)
`)
	fn := findFunction(t, facts, "app.f")

	byOrigin := map[models.OriginKind]int{}
	for _, r := range fn.RaiseSites {
		byOrigin[r.Origin]++
	}
	if byOrigin[models.OriginIteration] != 1 {
		t.Errorf("iteration sites = %d, want 1 (next with default is safe)", byOrigin[models.OriginIteration])
	}
	if byOrigin[models.OriginAttribute] != 1 {
		t.Errorf("attribute sites = %d, want 1 (getattr with default is safe)", byOrigin[models.OriginAttribute])
	}
	if byOrigin[models.OriginConversion] != 3 {
		t.Errorf("conversion sites = %d, want 3 (int, float, index)", byOrigin[models.OriginConversion])
	}
}

func TestImplicitDetectionOff(t *testing.T) {
	e := NewExtractor(testLogger(), false)
	facts, err := e.ExtractFile(context.Background(), "app.py", "app", []byte(`def f(d, k, it):
    x = d[k]
    y = next(it)
`))
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	fn := findFunction(t, facts, "app.f")
	if len(fn.RaiseSites) != 0 {
		t.Errorf("implicit detection off should yield no sites, got %+v", fn.RaiseSites)
	}
}

func TestDispositions(t *testing.T) {
	cases := []struct {
		body string
		want models.Disposition
	}{
		{"pass", models.DispositionSuppress},
		{"return None", models.DispositionReturnDefault},
		{"x = 0", models.DispositionAssignDefault},
		{"raise", models.DispositionReraise},
		{`raise RuntimeError("wrapped") from e`, models.DispositionTransformReraise},
	}
	for _, tc := range cases {
		facts := extractSource(t, `def f():
    try:
        g()
    except ValueError as e:
        `+tc.body+`
`)
		fn := findFunction(t, facts, "app.f")
		if len(fn.HandlerSites) != 1 {
			t.Fatalf("%q: expected 1 handler, got %+v", tc.body, fn.HandlerSites)
		}
		if got := fn.HandlerSites[0].Disposition; got != tc.want {
			t.Errorf("%q: disposition = %v, want %v", tc.body, got, tc.want)
		}
	}
}

func TestBareExceptCatchesBaseException(t *testing.T) {
	facts := extractSource(t, `def f():
    try:
        g()
    except:
        pass
`)
	fn := findFunction(t, facts, "app.f")
	if len(fn.HandlerSites) != 1 {
		t.Fatalf("expected 1 handler, got %+v", fn.HandlerSites)
	}
	types := fn.HandlerSites[0].CaughtTypes
	if len(types) != 1 || types[0] != "BaseException" {
		t.Errorf("caught types = %v, want [BaseException]", types)
	}
}

func TestTupleCatchArms(t *testing.T) {
	facts := extractSource(t, `def f():
    try:
        g()
    except (KeyError, IndexError) as e:
        pass
    except ValueError:
        return None
`)
	fn := findFunction(t, facts, "app.f")
	if len(fn.HandlerSites) != 2 {
		t.Fatalf("expected 2 handler clauses, got %+v", fn.HandlerSites)
	}
	first := fn.HandlerSites[0]
	if len(first.CaughtTypes) != 2 || first.CaughtTypes[0] != "KeyError" || first.CaughtTypes[1] != "IndexError" {
		t.Errorf("first clause types = %v", first.CaughtTypes)
	}
	if first.Disposition != models.DispositionSuppress || fn.HandlerSites[1].Disposition != models.DispositionReturnDefault {
		t.Errorf("dispositions = %v, %v", first.Disposition, fn.HandlerSites[1].Disposition)
	}
	if first.GuardedRegion != fn.HandlerSites[1].GuardedRegion {
		t.Error("clauses of one try should share the guarded region")
	}
}

func TestGuardedRegionSpansTryBody(t *testing.T) {
	facts := extractSource(t, `def f():
    try:
        a()
        b()
        c()
    except ValueError:
        pass
`)
	fn := findFunction(t, facts, "app.f")
	region := fn.HandlerSites[0].GuardedRegion
	if region.StartLine != 3 || region.EndLine != 5 {
		t.Errorf("guarded region = %+v, want lines 3-5", region)
	}
}

func TestCallSitesAndReceivers(t *testing.T) {
	facts := extractSource(t, `def f(worker):
    helper()
    worker.run()
    p = Parser()
    p.parse()
`)
	fn := findFunction(t, facts, "app.f")

	byCallee := map[string]models.CallSite{}
	for _, cs := range fn.CallSites {
		byCallee[cs.Callee] = cs
	}
	if cs, ok := byCallee["helper"]; !ok || cs.Receiver != "" {
		t.Errorf("helper call: %+v", byCallee["helper"])
	}
	if cs, ok := byCallee["run"]; !ok || cs.Receiver != "worker" {
		t.Errorf("run call: %+v", byCallee["run"])
	}
	if fn.LocalConstructions["p"] != "Parser" {
		t.Errorf("local constructions = %v", fn.LocalConstructions)
	}
	if cs, ok := byCallee["parse"]; !ok || cs.Receiver != "p" {
		t.Errorf("parse call: %+v", byCallee["parse"])
	}
}

func TestDottedReceiverKeptAsWritten(t *testing.T) {
	facts := extractSource(t, `import lib.text

def f(raw):
    return lib.text.clean(raw)
`)
	fn := findFunction(t, facts, "app.f")
	if len(fn.CallSites) != 1 {
		t.Fatalf("expected 1 call site, got %+v", fn.CallSites)
	}
	cs := fn.CallSites[0]
	if cs.Callee != "clean" || cs.Receiver != "lib.text" {
		t.Errorf("call site = %+v, want clean on lib.text", cs)
	}
}

func TestClassScopeAndBases(t *testing.T) {
	facts := extractSource(t, `class AppError(RuntimeError):
    pass

class Service:
    def run(self):
        self.step()

    def step(self):
        raise AppError("step failed")
`)
	if len(facts.Classes) != 2 {
		t.Fatalf("expected 2 classes, got %+v", facts.Classes)
	}
	if facts.Classes[0].Name != "AppError" || facts.Classes[0].Bases[0] != "RuntimeError" {
		t.Errorf("class decl: %+v", facts.Classes[0])
	}

	run := findFunction(t, facts, "app.Service.run")
	if run.Class != "Service" {
		t.Errorf("run class = %q", run.Class)
	}
	if len(run.CallSites) != 1 || run.CallSites[0].Receiver != "self" {
		t.Errorf("run call sites: %+v", run.CallSites)
	}
	step := findFunction(t, facts, "app.Service.step")
	if len(step.RaiseSites) != 1 || step.RaiseSites[0].TypeName != "AppError" {
		t.Errorf("step raise sites: %+v", step.RaiseSites)
	}
}

func TestAbstractStub(t *testing.T) {
	facts := extractSource(t, `class Base:
    def render(self):
        """Render the widget."""
        raise NotImplementedError

    def ready(self):
        raise NotImplementedError("call connect() first")

    def real(self):
        if True:
            raise NotImplementedError
        return 1
`)
	if !findFunction(t, facts, "app.Base.render").Abstract {
		t.Error("docstring stub should be abstract")
	}
	if !findFunction(t, facts, "app.Base.ready").Abstract {
		t.Error("message stub should be abstract")
	}
	if findFunction(t, facts, "app.Base.real").Abstract {
		t.Error("function with real logic should not be abstract")
	}
}

func TestImports(t *testing.T) {
	facts := extractSource(t, `import os
import os.path
import numpy as np
from util import parse, check
from util.text import clean as scrub
from . import sibling
from helpers import *
`)
	type key struct {
		module, name, alias string
	}
	seen := map[key]models.ImportRecord{}
	for _, imp := range facts.Imports {
		seen[key{imp.Module, imp.Name, imp.Alias}] = imp
	}

	for _, want := range []key{
		{"os", "", "os"},
		{"os.path", "", "os"},
		{"numpy", "", "np"},
		{"util", "parse", "parse"},
		{"util", "check", "check"},
		{"util.text", "clean", "scrub"},
	} {
		if _, ok := seen[want]; !ok {
			t.Errorf("missing import record %+v in %+v", want, facts.Imports)
		}
	}

	var wildcard, relative bool
	for _, imp := range facts.Imports {
		if imp.IsWildcard && imp.Module == "helpers" {
			wildcard = true
		}
		if imp.IsRelative {
			relative = true
		}
	}
	if !wildcard {
		t.Error("wildcard import not recorded")
	}
	if !relative {
		t.Error("relative import not recorded")
	}
}

func TestModulePseudoFunction(t *testing.T) {
	facts := extractSource(t, `setup()

def f():
    pass
`)
	mod := findFunction(t, facts, "app.<module>")
	if len(mod.CallSites) != 1 || mod.CallSites[0].Callee != "setup" {
		t.Errorf("module-level call sites: %+v", mod.CallSites)
	}
}

func TestSyntaxErrorIsParseFailure(t *testing.T) {
	e := NewExtractor(testLogger(), true)
	_, err := e.ExtractFile(context.Background(), "bad.py", "bad", []byte("def broken(:\n"))
	if err == nil {
		t.Fatal("expected an error for broken source")
	}
}

func TestNonUTF8IsParseFailure(t *testing.T) {
	e := NewExtractor(testLogger(), true)
	_, err := e.ExtractFile(context.Background(), "bad.py", "bad", []byte{0xff, 0xfe, 0x00})
	if err == nil {
		t.Fatal("expected an error for non-UTF-8 content")
	}
}

func TestRaiseInsideMessageArguments(t *testing.T) {
	facts := extractSource(t, `def f(d, k):
    raise ValueError(d[k])
`)
	fn := findFunction(t, facts, "app.f")
	byOrigin := map[models.OriginKind]int{}
	for _, r := range fn.RaiseSites {
		byOrigin[r.Origin]++
	}
	if byOrigin[models.OriginExplicit] != 1 {
		t.Errorf("explicit sites = %d, want 1", byOrigin[models.OriginExplicit])
	}
	if byOrigin[models.OriginKeyLookup] != 1 {
		t.Errorf("key lookup inside raise arguments should still be a site, got %+v", fn.RaiseSites)
	}
}
